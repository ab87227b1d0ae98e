package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"phishaware/internal/domain"
	"phishaware/internal/usecase"
)

// trackingPixel is a 1x1 transparent GIF. Served unconditionally so the
// response never reveals whether a token exists.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func (s *Server) eventMeta(c *gin.Context) usecase.EventMeta {
	return usecase.EventMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// applyRisk feeds an accepted tracking event to the risk engine. Failures
// here are logged, not surfaced: the public response is already decided.
func (s *Server) applyRisk(c *gin.Context, result usecase.RecordResult) {
	if !result.Accepted || s.engine == nil {
		return
	}
	if _, err := s.engine.ApplySimulationEvent(c.Request.Context(), result); err != nil {
		s.logger.Error("apply simulation event",
			zap.String("event_id", result.Event.ID),
			zap.Error(err))
	}
}

func (s *Server) handleTrackOpen(c *gin.Context) {
	result, err := s.tracker.HandleOpen(c.Request.Context(), c.Param("token"), s.eventMeta(c))
	if err != nil {
		s.logTrackingError(c, "open", err)
	} else {
		s.applyRisk(c, result)
	}
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Data(http.StatusOK, "image/gif", trackingPixel)
}

func (s *Server) handleTrackClick(c *gin.Context) {
	token := c.Param("token")
	result, err := s.tracker.HandleClick(c.Request.Context(), token, s.eventMeta(c))
	if err != nil {
		s.logTrackingError(c, "click", err)
	} else {
		s.applyRisk(c, result)
	}
	c.Redirect(http.StatusFound, "/track/landing/"+token)
}

type landingResponse struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	RedFlags []string `json:"red_flags,omitempty"`
}

// genericLanding is served when the token resolves to nothing, so the
// landing page leaks nothing about token validity either.
var genericLanding = landingResponse{
	Title:   "This was a phishing simulation",
	Message: "The link you followed was part of a security awareness exercise. No real credentials or systems were involved.",
}

func (s *Server) handleTrackLanding(c *gin.Context) {
	lc, err := s.tracker.HandleLanding(c.Request.Context(), c.Param("token"), s.eventMeta(c))
	if err != nil {
		s.logTrackingError(c, "landing", err)
		c.JSON(http.StatusOK, genericLanding)
		return
	}
	out := landingResponse{
		Title:    lc.Template.LandingPageTitle,
		Message:  lc.Template.LandingPageMessage,
		RedFlags: lc.Template.RedFlags,
	}
	if out.Title == "" {
		out.Title = genericLanding.Title
	}
	if out.Message == "" {
		out.Message = genericLanding.Message
	}
	c.JSON(http.StatusOK, out)
}

type reportRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleTrackReport(c *gin.Context) {
	var req reportRequest
	_ = c.ShouldBindJSON(&req)

	result, err := s.tracker.HandleReport(c.Request.Context(), c.Param("token"), req.Reason, s.eventMeta(c))
	if err != nil {
		s.logTrackingError(c, "report", err)
	} else {
		s.applyRisk(c, result)
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleTrackCredentials reduces the submission to field-presence
// booleans immediately. The values themselves go no further than this
// stack frame.
func (s *Server) handleTrackCredentials(c *gin.Context) {
	var req credentialsRequest
	_ = c.ShouldBindJSON(&req)
	usernameFilled := req.Username != ""
	passwordFilled := req.Password != ""
	req = credentialsRequest{}

	result, err := s.tracker.HandleCredentials(c.Request.Context(), c.Param("token"), usernameFilled, passwordFilled, s.eventMeta(c))
	if err != nil {
		s.logTrackingError(c, "credentials", err)
	} else {
		s.applyRisk(c, result)
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (s *Server) logTrackingError(c *gin.Context, endpoint string, err error) {
	if isNotFoundErr(err) {
		s.logger.Debug("tracking token unknown", zap.String("endpoint", endpoint))
		return
	}
	s.logger.Warn("tracking request failed",
		zap.String("endpoint", endpoint),
		zap.Error(err))
}

func isNotFoundErr(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
