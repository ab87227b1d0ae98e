package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"phishaware/internal/config"
	"phishaware/internal/domain"
	"phishaware/internal/infra/ratelimit"
	"phishaware/internal/usecase"
)

type Server struct {
	cfg    config.Config
	store  usecase.Store
	r      *gin.Engine
	logger *zap.Logger

	tracker   *usecase.Tracker
	engine    *usecase.RiskEngine
	campaigns *usecase.CampaignService
	quizzes   *usecase.QuizService
	training  *usecase.TrainingService

	adminAPIKey string

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

type ServerDeps struct {
	Tracker     *usecase.Tracker
	RiskEngine  *usecase.RiskEngine
	Campaigns   *usecase.CampaignService
	Quizzes     *usecase.QuizService
	Training    *usecase.TrainingService
	Store       usecase.Store
	Logger      *zap.Logger
	RateLimiter domain.RateLimiter
	AdminAPIKey string
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:         cfg,
		store:       deps.Store,
		r:           r,
		logger:      logger,
		tracker:     deps.Tracker,
		engine:      deps.RiskEngine,
		campaigns:   deps.Campaigns,
		quizzes:     deps.Quizzes,
		training:    deps.Training,
		adminAPIKey: deps.AdminAPIKey,
	}
	if s.adminAPIKey == "" {
		s.adminAPIKey = cfg.AdminAPIKey
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "no-store"
		if s.store != nil {
			mode = "store"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
	})

	track := s.r.Group("/track")
	{
		track.GET("/open/:token", s.rateLimited("open"), s.handleTrackOpen)
		track.GET("/click/:token", s.rateLimited("click"), s.handleTrackClick)
		track.GET("/landing/:token", s.rateLimited("landing"), s.handleTrackLanding)
		track.POST("/report/:token", s.rateLimited("report"), s.handleTrackReport)
		track.POST("/credentials/:token", s.rateLimited("credentials"), s.handleTrackCredentials)
	}

	v1 := s.r.Group("/v1", s.requireAdmin)
	{
		v1.POST("/templates", s.handleCreateTemplate)
		v1.GET("/templates/:id", s.handleGetTemplate)

		v1.POST("/campaigns", s.handleCreateCampaign)
		v1.GET("/campaigns/:id/summary", s.handleCampaignSummary)
		v1.GET("/campaigns/:id/analytics", s.handleCampaignAnalytics)
		v1.POST("/campaigns/:id/package", s.handleGeneratePackage)
		v1.POST("/campaigns/:id/mark-sent", s.handleMarkSent)
		v1.POST("/campaigns/:id/pause", s.handlePauseCampaign)
		v1.POST("/campaigns/:id/resume", s.handleResumeCampaign)
		v1.POST("/campaigns/:id/complete", s.handleCompleteCampaign)

		v1.POST("/simulations/:id/dispatch", s.handleDispatchEvent)

		v1.POST("/quizzes", s.handleCreateQuiz)
		v1.POST("/quizzes/:id/start", s.handleStartQuiz)
		v1.POST("/quizzes/:id/answers", s.handleAnswerQuiz)
		v1.POST("/quizzes/:id/submit", s.handleSubmitQuiz)

		v1.POST("/training/modules", s.handleCreateModule)
		v1.GET("/training/modules/:id", s.handleGetModule)
		v1.POST("/training/assignments", s.handleAssignTraining)
		v1.POST("/training/assignments/:id/start", s.handleStartAssignment)
		v1.POST("/training/assignments/:id/content-viewed", s.handleContentViewed)
		v1.POST("/training/assignments/:id/quiz", s.handleTrainingQuiz)
		v1.POST("/training/expire-overdue", s.handleExpireOverdue)

		v1.GET("/employees/:ref/risk", s.handleGetRisk)
		v1.GET("/employees/:ref/risk/history", s.handleRiskHistory)
		v1.GET("/employees/:ref/assignments", s.handleListAssignments)
		v1.POST("/employees/:ref/risk/adjust", s.handleAdjustRisk)
		v1.GET("/risk", s.handleListRisk)
		v1.POST("/risk/recalculate", s.handleRecalculate)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}
