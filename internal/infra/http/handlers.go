package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"phishaware/internal/domain"
	"phishaware/internal/usecase"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) requireAdmin(c *gin.Context) {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		c.Abort()
		return
	}
	key := c.GetHeader("X-Admin-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		c.Abort()
		return
	}
	c.Next()
}

type templateRequest struct {
	CompanyRef  string `json:"company_ref"`
	Name        string `json:"name"`
	Description string `json:"description"`

	SenderName   string `json:"sender_name"`
	SenderEmail  string `json:"sender_email"`
	ReplyToEmail string `json:"reply_to_email"`
	Subject      string `json:"subject"`
	BodyHTML     string `json:"body_html"`
	BodyPlain    string `json:"body_plain"`

	AttackVector string `json:"attack_vector"`
	Difficulty   string `json:"difficulty"`

	RequiresLandingPage bool     `json:"requires_landing_page"`
	LandingPageTitle    string   `json:"landing_page_title"`
	LandingPageMessage  string   `json:"landing_page_message"`
	RedFlags            []string `json:"red_flags"`
}

func (s *Server) handleCreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.Name == "" || req.Subject == "" || req.AttackVector == "" {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "name, subject, and attack_vector are required")
		return
	}
	template := domain.SimulationTemplate{
		CompanyRef:          req.CompanyRef,
		Name:                req.Name,
		Description:         req.Description,
		SenderName:          req.SenderName,
		SenderEmail:         req.SenderEmail,
		ReplyToEmail:        req.ReplyToEmail,
		Subject:             req.Subject,
		BodyHTML:            req.BodyHTML,
		BodyPlain:           req.BodyPlain,
		AttackVector:        domain.AttackVector(req.AttackVector),
		Difficulty:          req.Difficulty,
		RequiresLandingPage: req.RequiresLandingPage,
		LandingPageTitle:    req.LandingPageTitle,
		LandingPageMessage:  req.LandingPageMessage,
		RedFlags:            req.RedFlags,
		Active:              true,
	}
	created, err := s.store.Templates().Create(c.Request.Context(), template)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	template, err := s.store.Templates().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

type campaignRequest struct {
	CompanyRef  string `json:"company_ref"`
	TemplateID  string `json:"template_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`

	TargetAllEmployees bool     `json:"target_all_employees"`
	TargetRefs         []string `json:"target_refs"`

	TrackEmailOpens  *bool `json:"track_email_opens"`
	TrackLinkClicks  *bool `json:"track_link_clicks"`
	TrackCredentials bool  `json:"track_credentials"`
}

func (s *Server) handleCreateCampaign(c *gin.Context) {
	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	campaign := domain.SimulationCampaign{
		CompanyRef:         req.CompanyRef,
		TemplateID:         req.TemplateID,
		Name:               req.Name,
		Description:        req.Description,
		CreatedBy:          req.CreatedBy,
		TargetAllEmployees: req.TargetAllEmployees,
		TrackEmailOpens:    true,
		TrackLinkClicks:    true,
		TrackCredentials:   req.TrackCredentials,
	}
	if req.TrackEmailOpens != nil {
		campaign.TrackEmailOpens = *req.TrackEmailOpens
	}
	if req.TrackLinkClicks != nil {
		campaign.TrackLinkClicks = *req.TrackLinkClicks
	}
	created, err := s.campaigns.Create(c.Request.Context(), campaign, req.TargetRefs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (s *Server) handleCampaignSummary(c *gin.Context) {
	summary, err := s.campaigns.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleCampaignAnalytics(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("event_limit"))
	analytics, err := s.campaigns.Analytics(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (s *Server) handleGeneratePackage(c *gin.Context) {
	packages, err := s.campaigns.GeneratePackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("format") == "csv" {
		out, err := usecase.PackageCSV(packages)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="campaign-package.csv"`)
		c.Data(http.StatusOK, "text/csv", out)
		return
	}
	c.JSON(http.StatusOK, gin.H{"emails": packages})
}

func (s *Server) handleMarkSent(c *gin.Context) {
	marked, err := s.campaigns.BulkMarkSent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_sent": marked})
}

func (s *Server) handlePauseCampaign(c *gin.Context) {
	s.campaignTransition(c, s.campaigns.Pause)
}

func (s *Server) handleResumeCampaign(c *gin.Context) {
	s.campaignTransition(c, s.campaigns.Resume)
}

func (s *Server) handleCompleteCampaign(c *gin.Context) {
	s.campaignTransition(c, s.campaigns.Complete)
}

func (s *Server) campaignTransition(c *gin.Context, fn func(ctx context.Context, id string) (*domain.SimulationCampaign, error)) {
	campaign, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

type dispatchRequest struct {
	EventType string `json:"event_type"`
}

func (s *Server) handleDispatchEvent(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	result, err := s.tracker.RecordDispatch(c.Request.Context(), c.Param("id"), domain.EventType(req.EventType), s.eventMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	s.applyRisk(c, result)
	c.JSON(http.StatusOK, gin.H{
		"accepted":   result.Accepted,
		"simulation": result.Simulation,
	})
}

type createQuizRequest struct {
	EmployeeRef string   `json:"employee_ref"`
	CompanyRef  string   `json:"company_ref"`
	CampaignRef string   `json:"campaign_ref"`
	Emails      []string `json:"emails"`
}

func (s *Server) handleCreateQuiz(c *gin.Context) {
	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	emails := make([]domain.EmailType, 0, len(req.Emails))
	for _, t := range req.Emails {
		emails = append(emails, domain.EmailType(t))
	}
	quiz, questions, err := s.quizzes.Create(c.Request.Context(), req.EmployeeRef, req.CompanyRef, req.CampaignRef, emails)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quiz": quiz, "questions": questions})
}

func (s *Server) handleStartQuiz(c *gin.Context) {
	quiz, err := s.quizzes.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

type answerRequest struct {
	QuestionID       string `json:"question_id"`
	Answer           string `json:"answer"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
}

func (s *Server) handleAnswerQuiz(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	question, err := s.quizzes.Answer(c.Request.Context(), c.Param("id"), req.QuestionID, domain.EmailType(req.Answer), req.TimeSpentSeconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (s *Server) handleSubmitQuiz(c *gin.Context) {
	result, err := s.quizzes.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type moduleRequest struct {
	CompanyRef  string `json:"company_ref"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Category    string `json:"category"`
	ContentType string `json:"content_type"`
	Difficulty  string `json:"difficulty"`
	ContentHTML string `json:"content_html"`
	VideoURL    string `json:"video_url"`

	DurationMinutes int `json:"duration_minutes"`

	PassingScore         int `json:"passing_score"`
	MinQuestionsRequired int `json:"min_questions_required"`
	ScoreReductionOnPass int `json:"score_reduction_on_pass"`

	Mandatory bool `json:"mandatory"`

	Questions []moduleQuestionRequest `json:"questions"`
}

type moduleQuestionRequest struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

func (s *Server) handleCreateModule(c *gin.Context) {
	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.Title == "" || req.Category == "" {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "title and category are required")
		return
	}
	for i, q := range req.Questions {
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			writeErrorCode(c, http.StatusBadRequest, "VALIDATION",
				"question "+strconv.Itoa(i+1)+" correct_index out of range")
			return
		}
	}
	passing := req.PassingScore
	if passing <= 0 {
		passing = 70
	}
	module := domain.TrainingModule{
		CompanyRef:           req.CompanyRef,
		Title:                req.Title,
		Description:          req.Description,
		Category:             domain.TrainingCategory(req.Category),
		ContentType:          req.ContentType,
		Difficulty:           req.Difficulty,
		ContentHTML:          req.ContentHTML,
		VideoURL:             req.VideoURL,
		DurationMinutes:      req.DurationMinutes,
		PassingScore:         passing,
		MinQuestionsRequired: req.MinQuestionsRequired,
		ScoreReductionOnPass: req.ScoreReductionOnPass,
		Active:               true,
		Mandatory:            req.Mandatory,
	}

	var questions []domain.TrainingQuestion
	err := s.store.WithTx(c.Request.Context(), func(st usecase.Store) error {
		created, err := st.Modules().Create(c.Request.Context(), module)
		if err != nil {
			return err
		}
		module = created
		for i, q := range req.Questions {
			question, err := st.Questions().Create(c.Request.Context(), domain.TrainingQuestion{
				ModuleID:     module.ID,
				Number:       i + 1,
				Text:         q.Text,
				Options:      q.Options,
				CorrectIndex: q.CorrectIndex,
				Explanation:  q.Explanation,
				Active:       true,
			})
			if err != nil {
				return err
			}
			questions = append(questions, question)
		}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"module": module, "questions": questions})
}

func (s *Server) handleGetModule(c *gin.Context) {
	module, err := s.store.Modules().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	questions, err := s.store.Questions().ListByModule(c.Request.Context(), module.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"module": module, "questions": questions})
}

type assignRequest struct {
	EmployeeRef string `json:"employee_ref"`
	CompanyRef  string `json:"company_ref"`
	ModuleID    string `json:"module_id"`
	AssignedBy  string `json:"assigned_by"`
	DueDate     string `json:"due_date,omitempty"`
}

func (s *Server) handleAssignTraining(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.EmployeeRef == "" || req.ModuleID == "" {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "employee_ref and module_id are required")
		return
	}
	var due *time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "invalid due_date")
			return
		}
		parsed = parsed.UTC()
		due = &parsed
	}
	assignment, err := s.training.Assign(c.Request.Context(), req.EmployeeRef, req.CompanyRef, req.ModuleID, req.AssignedBy, due)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

func (s *Server) handleStartAssignment(c *gin.Context) {
	assignment, err := s.training.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

func (s *Server) handleContentViewed(c *gin.Context) {
	assignment, err := s.training.MarkContentViewed(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

type trainingQuizRequest struct {
	Answers map[string]int `json:"answers"`
}

func (s *Server) handleTrainingQuiz(c *gin.Context) {
	var req trainingQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	outcome, err := s.training.SubmitQuiz(c.Request.Context(), c.Param("id"), req.Answers)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"assignment": outcome.Assignment,
		"score":      outcome.Score,
		"passed":     outcome.Passed,
		"correct":    outcome.Correct,
		"total":      outcome.Total,
	})
}

func (s *Server) handleExpireOverdue(c *gin.Context) {
	expired, err := s.training.ExpireOverdue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

func (s *Server) handleGetRisk(c *gin.Context) {
	rs, err := s.store.Risk().GetByEmployee(c.Request.Context(), c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (s *Server) handleRiskHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = 50
	}
	history, err := s.store.History().ListByEmployee(c.Request.Context(), c.Param("ref"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) handleListAssignments(c *gin.Context) {
	assignments, err := s.store.Assignments().ListByEmployee(c.Request.Context(), c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

type adjustRequest struct {
	CompanyRef string `json:"company_ref"`
	Delta      int    `json:"delta"`
	Reason     string `json:"reason"`
	AdjustedBy string `json:"adjusted_by"`
}

func (s *Server) handleAdjustRisk(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	rs, err := s.engine.AdjustScore(c.Request.Context(), req.CompanyRef, c.Param("ref"), req.Delta, req.Reason, req.AdjustedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (s *Server) handleListRisk(c *gin.Context) {
	scores, err := s.store.Risk().List(c.Request.Context(), c.Query("company_ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

type recalculateRequest struct {
	CompanyRef string `json:"company_ref"`
}

func (s *Server) handleRecalculate(c *gin.Context) {
	var req recalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	changed, err := s.engine.Recalculate(c.Request.Context(), req.CompanyRef)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrInvalidState):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
