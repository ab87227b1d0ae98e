package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"phishaware/internal/domain"
)

// memStore is the in-memory Store used by the engine tests. WithTx runs
// the function directly; the tests exercise sequencing, not isolation.
type memStore struct {
	mu sync.Mutex

	seq       int
	events    []domain.TrackingEvent
	sims      map[string]*domain.EmailSimulation
	campaigns map[string]*domain.SimulationCampaign
	targets   map[string][]string
	templates map[string]*domain.SimulationTemplate

	scores  map[string]*domain.RiskScore
	history []domain.RiskScoreHistory

	modules      map[string]*domain.TrainingModule
	modQuestions map[string][]domain.TrainingQuestion
	assignments  map[string]*domain.RemediationTraining

	quizzes       map[string]*domain.Quiz
	quizQuestions map[string][]domain.QuizQuestion
	results       map[string]*domain.QuizResult
}

func newMemStore() *memStore {
	return &memStore{
		sims:          map[string]*domain.EmailSimulation{},
		campaigns:     map[string]*domain.SimulationCampaign{},
		targets:       map[string][]string{},
		templates:     map[string]*domain.SimulationTemplate{},
		scores:        map[string]*domain.RiskScore{},
		modules:       map[string]*domain.TrainingModule{},
		modQuestions:  map[string][]domain.TrainingQuestion{},
		assignments:   map[string]*domain.RemediationTraining{},
		quizzes:       map[string]*domain.Quiz{},
		quizQuestions: map[string][]domain.QuizQuestion{},
		results:       map[string]*domain.QuizResult{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) Events() TrackingEventRepository       { return memEvents{m} }
func (m *memStore) Simulations() SimulationRepository     { return memSims{m} }
func (m *memStore) Campaigns() CampaignRepository         { return memCampaigns{m} }
func (m *memStore) Templates() TemplateRepository         { return memTemplates{m} }
func (m *memStore) Risk() RiskScoreRepository             { return memRisk{m} }
func (m *memStore) History() RiskHistoryRepository        { return memHistory{m} }
func (m *memStore) Modules() TrainingModuleRepository     { return memModules{m} }
func (m *memStore) Questions() TrainingQuestionRepository { return memModQuestions{m} }
func (m *memStore) Assignments() RemediationRepository    { return memAssignments{m} }
func (m *memStore) Quizzes() QuizRepository               { return memQuizzes{m} }
func (m *memStore) Results() QuizResultRepository         { return memResults{m} }

func (m *memStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return fn(m)
}

type memEvents struct{ m *memStore }

func (r memEvents) Append(ctx context.Context, event domain.TrackingEvent) (domain.TrackingEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if event.ID == "" {
		event.ID = r.m.nextID("evt")
	}
	r.m.events = append(r.m.events, event)
	return event, nil
}

func (r memEvents) HasEvent(ctx context.Context, simulationID string, types []domain.EventType, excludeID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, e := range r.m.events {
		if e.SimulationID != simulationID || e.ID == excludeID || !e.Accepted {
			continue
		}
		for _, t := range types {
			if e.EventType == t {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r memEvents) ListBySimulation(ctx context.Context, simulationID string) ([]domain.TrackingEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.TrackingEvent
	for _, e := range r.m.events {
		if e.SimulationID == simulationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memEvents) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.TrackingEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.TrackingEvent
	for _, e := range r.m.events {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memSims struct{ m *memStore }

func (r memSims) Create(ctx context.Context, sim domain.EmailSimulation) (domain.EmailSimulation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if sim.ID == "" {
		sim.ID = r.m.nextID("sim")
	}
	cp := sim
	r.m.sims[sim.ID] = &cp
	return sim, nil
}

func (r memSims) GetByID(ctx context.Context, id string) (*domain.EmailSimulation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sim, ok := r.m.sims[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sim
	return &cp, nil
}

func (r memSims) GetByTrackingToken(ctx context.Context, token string) (*domain.EmailSimulation, error) {
	return r.find(func(s *domain.EmailSimulation) bool { return s.TrackingToken == token })
}

func (r memSims) GetByLinkToken(ctx context.Context, token string) (*domain.EmailSimulation, error) {
	return r.find(func(s *domain.EmailSimulation) bool { return s.LinkToken == token })
}

func (r memSims) GetByCampaignAndEmployee(ctx context.Context, campaignID, employeeRef string) (*domain.EmailSimulation, error) {
	return r.find(func(s *domain.EmailSimulation) bool {
		return s.CampaignID == campaignID && s.EmployeeRef == employeeRef
	})
}

func (r memSims) find(match func(*domain.EmailSimulation) bool) (*domain.EmailSimulation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, sim := range r.m.sims {
		if match(sim) {
			cp := *sim
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memSims) Update(ctx context.Context, sim domain.EmailSimulation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.sims[sim.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := sim
	r.m.sims[sim.ID] = &cp
	return nil
}

func (r memSims) ListByCampaign(ctx context.Context, campaignID string) ([]domain.EmailSimulation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.EmailSimulation
	for _, sim := range r.m.sims {
		if sim.CampaignID == campaignID {
			out = append(out, *sim)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memSims) CountByCampaign(ctx context.Context, campaignID string, f SimulationFilter) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	count := 0
	for _, sim := range r.m.sims {
		if sim.CampaignID != campaignID {
			continue
		}
		if f.Opened != nil && sim.WasOpened != *f.Opened {
			continue
		}
		if f.Clicked != nil && sim.WasClicked != *f.Clicked {
			continue
		}
		if f.Reported != nil && sim.WasReported != *f.Reported {
			continue
		}
		if f.CredentialsEntered != nil && sim.CredentialsEntered != *f.CredentialsEntered {
			continue
		}
		if len(f.StatusIn) > 0 && !statusIn(sim.Status, f.StatusIn) {
			continue
		}
		if len(f.StatusNotIn) > 0 && statusIn(sim.Status, f.StatusNotIn) {
			continue
		}
		count++
	}
	return count, nil
}

func statusIn(s domain.SimulationStatus, set []domain.SimulationStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (r memSims) MarkPendingSent(ctx context.Context, campaignID string, sentAt time.Time) ([]domain.EmailSimulation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var marked []domain.EmailSimulation
	for _, sim := range r.m.sims {
		if sim.CampaignID == campaignID && sim.Status == domain.SimulationPending {
			sim.Status = domain.SimulationSent
			at := sentAt
			sim.SentAt = &at
			sim.UpdatedAt = sentAt
			marked = append(marked, *sim)
		}
	}
	sort.Slice(marked, func(i, j int) bool { return marked[i].ID < marked[j].ID })
	return marked, nil
}

type memCampaigns struct{ m *memStore }

func (r memCampaigns) Create(ctx context.Context, c domain.SimulationCampaign) (domain.SimulationCampaign, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c.ID == "" {
		c.ID = r.m.nextID("cmp")
	}
	cp := c
	r.m.campaigns[c.ID] = &cp
	return c, nil
}

func (r memCampaigns) GetByID(ctx context.Context, id string) (*domain.SimulationCampaign, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCampaigns) Update(ctx context.Context, c domain.SimulationCampaign) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.campaigns[c.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := c
	r.m.campaigns[c.ID] = &cp
	return nil
}

func (r memCampaigns) ListTargets(ctx context.Context, campaignID string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]string(nil), r.m.targets[campaignID]...), nil
}

func (r memCampaigns) AddTargets(ctx context.Context, campaignID string, employeeRefs []string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.targets[campaignID] = append(r.m.targets[campaignID], employeeRefs...)
	return nil
}

type memTemplates struct{ m *memStore }

func (r memTemplates) Create(ctx context.Context, t domain.SimulationTemplate) (domain.SimulationTemplate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t.ID == "" {
		t.ID = r.m.nextID("tpl")
	}
	cp := t
	r.m.templates[t.ID] = &cp
	return t, nil
}

func (r memTemplates) GetByID(ctx context.Context, id string) (*domain.SimulationTemplate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

type memRisk struct{ m *memStore }

func (r memRisk) GetByEmployee(ctx context.Context, employeeRef string) (*domain.RiskScore, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rs, ok := r.m.scores[employeeRef]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rs
	return &cp, nil
}

func (r memRisk) Create(ctx context.Context, rs domain.RiskScore) (domain.RiskScore, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if rs.ID == "" {
		rs.ID = r.m.nextID("rsk")
	}
	cp := rs
	r.m.scores[rs.EmployeeRef] = &cp
	return rs, nil
}

func (r memRisk) Update(ctx context.Context, rs domain.RiskScore) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.scores[rs.EmployeeRef]; !ok {
		return domain.ErrNotFound
	}
	cp := rs
	r.m.scores[rs.EmployeeRef] = &cp
	return nil
}

func (r memRisk) List(ctx context.Context, companyRef string) ([]domain.RiskScore, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.RiskScore
	for _, rs := range r.m.scores {
		if companyRef == "" || rs.CompanyRef == companyRef {
			out = append(out, *rs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeRef < out[j].EmployeeRef })
	return out, nil
}

type memHistory struct{ m *memStore }

func (r memHistory) Append(ctx context.Context, h domain.RiskScoreHistory) (domain.RiskScoreHistory, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if h.ID == "" {
		h.ID = r.m.nextID("his")
	}
	r.m.history = append(r.m.history, h)
	return h, nil
}

func (r memHistory) ListByEmployee(ctx context.Context, employeeRef string, limit int) ([]domain.RiskScoreHistory, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.RiskScoreHistory
	for i := len(r.m.history) - 1; i >= 0; i-- {
		if r.m.history[i].EmployeeRef == employeeRef {
			out = append(out, r.m.history[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memModules struct{ m *memStore }

func (r memModules) Create(ctx context.Context, mod domain.TrainingModule) (domain.TrainingModule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if mod.ID == "" {
		mod.ID = r.m.nextID("mod")
	}
	cp := mod
	r.m.modules[mod.ID] = &cp
	return mod, nil
}

func (r memModules) GetByID(ctx context.Context, id string) (*domain.TrainingModule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	mod, ok := r.m.modules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *mod
	return &cp, nil
}

func (r memModules) Update(ctx context.Context, mod domain.TrainingModule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.modules[mod.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := mod
	r.m.modules[mod.ID] = &cp
	return nil
}

func (r memModules) ListMandatory(ctx context.Context, companyRef string) ([]domain.TrainingModule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.TrainingModule
	for _, mod := range r.m.modules {
		if !mod.Active || !mod.Mandatory {
			continue
		}
		if mod.CompanyRef == "" || mod.CompanyRef == companyRef {
			out = append(out, *mod)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memModules) FirstActiveByCategory(ctx context.Context, companyRef string, category domain.TrainingCategory) (*domain.TrainingModule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []string
	for id := range r.m.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var companyMatch *domain.TrainingModule
	for _, id := range ids {
		mod := r.m.modules[id]
		if !mod.Active || mod.Category != category {
			continue
		}
		if mod.CompanyRef == "" {
			cp := *mod
			return &cp, nil
		}
		if mod.CompanyRef == companyRef && companyMatch == nil {
			cp := *mod
			companyMatch = &cp
		}
	}
	if companyMatch != nil {
		return companyMatch, nil
	}
	return nil, domain.ErrNotFound
}

type memModQuestions struct{ m *memStore }

func (r memModQuestions) Create(ctx context.Context, q domain.TrainingQuestion) (domain.TrainingQuestion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if q.ID == "" {
		q.ID = r.m.nextID("tq")
	}
	r.m.modQuestions[q.ModuleID] = append(r.m.modQuestions[q.ModuleID], q)
	return q, nil
}

func (r memModQuestions) ListByModule(ctx context.Context, moduleID string) ([]domain.TrainingQuestion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]domain.TrainingQuestion(nil), r.m.modQuestions[moduleID]...), nil
}

type memAssignments struct{ m *memStore }

func (r memAssignments) Create(ctx context.Context, t domain.RemediationTraining) (domain.RemediationTraining, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t.ID == "" {
		t.ID = r.m.nextID("trn")
	}
	cp := t
	r.m.assignments[t.ID] = &cp
	return t, nil
}

func (r memAssignments) GetByID(ctx context.Context, id string) (*domain.RemediationTraining, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.assignments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memAssignments) Update(ctx context.Context, t domain.RemediationTraining) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.assignments[t.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := t
	r.m.assignments[t.ID] = &cp
	return nil
}

func (r memAssignments) HasOpen(ctx context.Context, employeeRef, moduleID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.assignments {
		if t.EmployeeRef == employeeRef && t.ModuleID == moduleID && t.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (r memAssignments) ListByEmployee(ctx context.Context, employeeRef string) ([]domain.RemediationTraining, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.RemediationTraining
	for _, t := range r.m.assignments {
		if t.EmployeeRef == employeeRef {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAssignments) ListOverdue(ctx context.Context, now time.Time) ([]domain.RemediationTraining, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.RemediationTraining
	for _, t := range r.m.assignments {
		if t.Overdue(now) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memQuizzes struct{ m *memStore }

func (r memQuizzes) Create(ctx context.Context, q domain.Quiz) (domain.Quiz, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if q.ID == "" {
		q.ID = r.m.nextID("qz")
	}
	cp := q
	r.m.quizzes[q.ID] = &cp
	return q, nil
}

func (r memQuizzes) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	q, ok := r.m.quizzes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (r memQuizzes) Update(ctx context.Context, q domain.Quiz) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.quizzes[q.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := q
	r.m.quizzes[q.ID] = &cp
	return nil
}

func (r memQuizzes) ListQuestions(ctx context.Context, quizID string) ([]domain.QuizQuestion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]domain.QuizQuestion(nil), r.m.quizQuestions[quizID]...), nil
}

func (r memQuizzes) UpdateQuestion(ctx context.Context, q domain.QuizQuestion) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	qs := r.m.quizQuestions[q.QuizID]
	for i := range qs {
		if qs[i].ID == q.ID {
			qs[i] = q
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r memQuizzes) CreateQuestion(ctx context.Context, q domain.QuizQuestion) (domain.QuizQuestion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if q.ID == "" {
		q.ID = r.m.nextID("qq")
	}
	r.m.quizQuestions[q.QuizID] = append(r.m.quizQuestions[q.QuizID], q)
	return q, nil
}

type memResults struct{ m *memStore }

func (r memResults) Create(ctx context.Context, res domain.QuizResult) (domain.QuizResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if res.ID == "" {
		res.ID = r.m.nextID("res")
	}
	cp := res
	r.m.results[res.QuizID] = &cp
	return res, nil
}

func (r memResults) GetByQuiz(ctx context.Context, quizID string) (*domain.QuizResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	res, ok := r.m.results[quizID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

// memDirectory is a fixed employee directory.
type memDirectory struct {
	employees map[string]domain.Employee
}

func (d *memDirectory) Get(ctx context.Context, ref string) (*domain.Employee, error) {
	emp, ok := d.employees[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &emp, nil
}

func (d *memDirectory) ListActiveByCompany(ctx context.Context, companyRef string) ([]domain.Employee, error) {
	var out []domain.Employee
	for _, emp := range d.employees {
		if emp.Active && emp.CompanyRef == companyRef {
			out = append(out, emp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	events  []domain.TrackingEvent
	changes []domain.RiskScoreHistory
}

func (p *capturePublisher) PublishTrackingEvent(ctx context.Context, event domain.TrackingEvent) {
	p.events = append(p.events, event)
}

func (p *capturePublisher) PublishScoreChange(ctx context.Context, h domain.RiskScoreHistory) {
	p.changes = append(p.changes, h)
}

func historyTypes(history []domain.RiskScoreHistory) string {
	var parts []string
	for _, h := range history {
		parts = append(parts, string(h.EventType))
	}
	return strings.Join(parts, ",")
}
