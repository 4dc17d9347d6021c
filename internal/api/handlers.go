package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/middleware"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/service"
)

const maxClassifyBody = 10 << 20

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Mode           string `json:"mode"`
	Message        string `json:"message"`
}

type snapshotResponse struct {
	FetchedAt time.Time         `json:"fetched_at"`
	Entries   int               `json:"entries"`
	Counts    map[string]int    `json:"counts"`
	Failed    map[string]string `json:"failed"`
	Persons   []domain.Person   `json:"persons"`
}

func (s *Server) handlePatients(c *gin.Context) {
	persons, err := s.deps.Health.Patients(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": persons})
}

// handleSnapshot runs the dashboard batch. With ?cached=true it answers from
// the last snapshot committed for the caller's credentials instead.
func (s *Server) handleSnapshot(c *gin.Context) {
	var snap *service.Snapshot
	if c.Query("cached") == "true" {
		snap = s.deps.Health.CachedSnapshot(c.Request.Context())
		if snap == nil {
			s.respondError(c, domain.NewServiceError(domain.ErrNotFoundCode, "Ingen data hentet endnu", "", ""))
			return
		}
	} else {
		var err error
		if snap, err = s.deps.Health.Refresh(c.Request.Context()); err != nil {
			s.respondError(c, err)
			return
		}
	}

	failed := make(map[string]string, len(snap.Batch.Failed))
	for kind, reason := range snap.Batch.Failed {
		failed[string(kind)] = reason
	}
	c.JSON(http.StatusOK, snapshotResponse{
		FetchedAt: snap.FetchedAt.UTC(),
		Entries:   snap.Entries,
		Counts:    snap.Counts,
		Failed:    failed,
		Persons:   snap.Persons,
	})
}

func (s *Server) handlePatientSummary(c *gin.Context) {
	doc, err := s.deps.Health.PatientSummary(c.Request.Context(), c.Param("patientID"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handlePrioritized(c *gin.Context) {
	out, err := s.deps.Health.Prioritized(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleLabPanel(c *gin.Context) {
	out, err := s.deps.Health.LabPanel(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleTrends(c *gin.Context) {
	out, err := s.deps.Health.Trends(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trends": out})
}

func (s *Server) handleExplanations(c *gin.Context) {
	out, err := s.deps.Health.Explanations(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanations": out})
}

// handleClassify classifies a posted bundle without touching the upstream.
// ?mode=threshold selects the lab panel view.
func (s *Server) handleClassify(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxClassifyBody))
	if err != nil {
		s.respondError(c, domain.NewValidationError("body", "could not read request body", nil))
		return
	}
	kind, err := domain.ResourceTypeOf(raw)
	if err != nil || (kind != domain.KindBundle && kind != domain.KindObservation) {
		s.respondError(c, domain.NewValidationError("body", "must be a FHIR Bundle or Observation", string(kind)))
		return
	}
	bundle, err := domain.ParseBundle(raw)
	if err != nil {
		s.respondError(c, domain.NewValidationError("body", "must be a FHIR Bundle", err.Error()))
		return
	}

	observations := bundle.Observations()
	switch mode := c.DefaultQuery("mode", "interpretation"); mode {
	case "interpretation":
		c.JSON(http.StatusOK, service.Classify(observations))
	case "threshold":
		c.JSON(http.StatusOK, service.Panel(observations))
	default:
		s.respondError(c, domain.NewValidationError("mode", "must be interpretation or threshold", mode))
	}
}

func (s *Server) handleDashboards(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"dashboards": service.DashboardDefinitions})
}

func (s *Server) handleDashboard(c *gin.Context) {
	dash, err := s.deps.Health.Dashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (s *Server) handleSleep(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(c, domain.NewValidationError("days", "must be an integer", raw))
			return
		}
		days = n
	}

	summary, err := s.deps.Health.Sleep(c.Request.Context(), days)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleHealthKitStatus(c *gin.Context) {
	status, err := s.deps.Health.HealthKitStatus(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleRecommendations(c *gin.Context) {
	set, err := s.deps.Health.Recommendations(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (s *Server) handleGetProfile(c *gin.Context) {
	settings, err := s.deps.Health.Settings(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// handlePutProfile replaces the stored profile. The chat transcript is kept
// unless the document carries one.
func (s *Server) handlePutProfile(c *gin.Context) {
	settings := domain.DefaultSettings()
	settings.ChatMessages = nil
	if err := c.ShouldBindJSON(&settings); err != nil {
		s.respondError(c, domain.NewValidationError("body", "invalid profile document", err.Error()))
		return
	}
	if settings.ChatMessages == nil {
		history, err := s.deps.Chat.History(c.Request.Context())
		if err != nil {
			s.respondError(c, err)
			return
		}
		settings.ChatMessages = append([]domain.ChatMessage{}, history...)
	}
	if err := s.deps.Health.SaveSettings(c.Request.Context(), settings); err != nil {
		s.respondError(c, err)
		return
	}
	s.handleGetProfile(c)
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("body", "invalid chat request", err.Error()))
		return
	}
	id, err := parseConversationID(req.ConversationID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	reply, err := s.deps.Chat.Send(c.Request.Context(), id, service.ChatMode(req.Mode), req.Message)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) handleChatHistory(c *gin.Context) {
	messages, err := s.deps.Chat.History(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) handleClearChat(c *gin.Context) {
	if err := s.deps.Chat.Clear(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleChatSocket answers every text frame with exactly one JSON frame: the
// ChatReply, or a ServiceError when the message was rejected.
func (s *Server) handleChatSocket(c *gin.Context) {
	id, err := parseConversationID(c.Query("conversation_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	mode := service.ChatMode(c.Query("mode"))
	correlationID := c.GetString(middleware.CorrelationIDKey)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, http.Header{middleware.CorrelationIDHeader: []string{correlationID}})
	if err != nil {
		s.logger.WithError(err).WithField("correlation_id", correlationID).Warn("Chat socket upgrade failed")
		return
	}
	defer conn.Close()

	logger := s.logger.WithFields(logrus.Fields{"correlation_id": correlationID})
	logger.Debug("Chat socket opened")
	timeout := s.configManager.GetServerConfig().RequestTimeout

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Debug("Chat socket read ended")
			}
			return
		}
		if kind != websocket.TextMessage {
			if err := conn.WriteJSON(domain.NewServiceError(domain.ErrInvalidInput, "Kun tekstbeskeder understøttes", "", correlationID)); err != nil {
				return
			}
			continue
		}

		reply, err := s.sendFrame(c.Request.Context(), timeout, id, mode, string(data))

		if err != nil {
			if werr := conn.WriteJSON(s.renderError(err, correlationID)); werr != nil {
				return
			}
			continue
		}
		id = reply.ConversationID
		if err := conn.WriteJSON(reply); err != nil {
			logger.WithError(err).Debug("Chat socket write failed")
			return
		}
	}
}

func (s *Server) sendFrame(parent context.Context, timeout time.Duration, id uuid.UUID, mode service.ChatMode, text string) (*service.ChatReply, error) {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}
	return s.deps.Chat.Send(ctx, id, mode, text)
}

func parseConversationID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("conversation_id", "must be a UUID", raw)
	}
	return id, nil
}

// respondError renders err as a ServiceError carrying the request's correlation ID.
func (s *Server) respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	out := s.renderError(err, c.GetString(middleware.CorrelationIDKey))
	c.AbortWithStatusJSON(out.HTTPStatus(), out)
}

func (s *Server) renderError(err error, requestID string) *domain.ServiceError {
	var validationErr *domain.ValidationError
	var serviceErr *domain.ServiceError
	switch {
	case errors.As(err, &validationErr):
		details := validationErr.Field
		if validationErr.Value != nil {
			if v, mErr := json.Marshal(validationErr.Value); mErr == nil {
				details += "=" + string(v)
			}
		}
		return domain.NewServiceError(domain.ErrValidation, validationErr.Message, details, requestID)
	case errors.As(err, &serviceErr):
		out := *serviceErr
		out.RequestID = requestID
		return &out
	default:
		s.logger.WithError(err).WithField("correlation_id", requestID).Error("Unhandled request error")
		return domain.NewServiceError(domain.ErrInternalServer, "Internal server error", "", requestID)
	}
}
