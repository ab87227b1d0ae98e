package domain

import "time"

type CampaignStatus string

const (
	CampaignDraft      CampaignStatus = "DRAFT"
	CampaignScheduled  CampaignStatus = "SCHEDULED"
	CampaignInProgress CampaignStatus = "IN_PROGRESS"
	CampaignCompleted  CampaignStatus = "COMPLETED"
	CampaignPaused     CampaignStatus = "PAUSED"
	CampaignCancelled  CampaignStatus = "CANCELLED"
)

// Trackable reports whether inbound tracking events may still mutate
// simulation state for this campaign.
func (s CampaignStatus) Trackable() bool {
	return s == CampaignInProgress || s == CampaignScheduled
}

// SimulationCampaign sends one EmailSimulation per targeted employee and
// rolls their behavior up into the total_* counters. The counters are a
// materialized view over the simulations: they are recounted from the
// simulation rows on every relevant event, never incremented blindly, so
// replayed or out-of-order events cannot make them drift.
type SimulationCampaign struct {
	ID          string
	CompanyRef  string
	TemplateID  string
	Name        string
	Description string
	CreatedBy   string

	Status   CampaignStatus
	SendDate *time.Time
	EndDate  *time.Time

	TargetAllEmployees bool

	TrackEmailOpens  bool
	TrackLinkClicks  bool
	TrackCredentials bool

	TotalSent               int
	TotalDelivered          int
	TotalOpened             int
	TotalClicked            int
	TotalReported           int
	TotalCredentialsEntered int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	SentAt      *time.Time
	CompletedAt *time.Time
}

// EffectiveSent is the denominator for rate calculations: the stored
// total_sent when present, else the caller-supplied count of dispatched
// simulations, else the total simulation count. Never zero when any
// simulation exists, so rates never divide by zero.
func (c SimulationCampaign) EffectiveSent(dispatched, total int) int {
	if c.TotalSent > 0 {
		return c.TotalSent
	}
	if dispatched > 0 {
		return dispatched
	}
	return total
}

func (c SimulationCampaign) OpenRate(effectiveSent int) float64 {
	return ratePct(c.TotalOpened, effectiveSent)
}

func (c SimulationCampaign) ClickRate(effectiveSent int) float64 {
	return ratePct(c.TotalClicked, effectiveSent)
}

func (c SimulationCampaign) ReportRate(effectiveSent int) float64 {
	return ratePct(c.TotalReported, effectiveSent)
}

// CompromiseRate uses the larger of clicked and credentials-entered:
// every credential entry implies a click, but clicks can be recorded
// without a subsequent submission.
func (c SimulationCampaign) CompromiseRate(effectiveSent int) float64 {
	compromised := c.TotalClicked
	if c.TotalCredentialsEntered > compromised {
		compromised = c.TotalCredentialsEntered
	}
	return ratePct(compromised, effectiveSent)
}

func ratePct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}
