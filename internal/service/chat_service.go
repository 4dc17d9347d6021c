package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

// ChatMode selects the system prompt of a conversation.
type ChatMode string

const (
	CHAT_LAB    ChatMode = "lab"
	CHAT_HEALTH ChatMode = "health"
)

// IsValid checks if the chat mode is valid
func (m ChatMode) IsValid() bool {
	switch m {
	case CHAT_LAB, CHAT_HEALTH:
		return true
	default:
		return false
	}
}

const maxChatMessageLength = 4000

// ObservationSource provides the lab observations a prompt is built from.
type ObservationSource interface {
	LabObservations(ctx context.Context) ([]domain.Observation, error)
}

// ChatArchiver stores finished exchanges outside the profile store.
type ChatArchiver interface {
	Append(ctx context.Context, conversationID uuid.UUID, messages ...domain.ChatMessage) error
}

// ChatReply is the result of one exchange.
type ChatReply struct {
	ConversationID uuid.UUID          `json:"conversation_id"`
	Message        domain.ChatMessage `json:"message"`
	Degraded       bool               `json:"degraded,omitempty"`
}

// ChatService runs the lab and health chats. The transcript lives in the profile store.
type ChatService struct {
	client  external.ChatCompleter
	labs    ObservationSource
	store   profile.Store
	archive ChatArchiver
	logger  *logrus.Logger
	now     func() time.Time

	// the transcript is read, extended and written back as one step
	mu sync.Mutex
}

// NewChatService creates a chat service. archive may be nil.
func NewChatService(client external.ChatCompleter, labs ObservationSource, store profile.Store, archive ChatArchiver, logger *logrus.Logger) *ChatService {
	return &ChatService{
		client:  client,
		labs:    labs,
		store:   store,
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
}

// Send appends the user message, asks the model for a reply and stores both.
// A failing model call yields the apology as the reply.
func (s *ChatService) Send(ctx context.Context, conversationID uuid.UUID, mode ChatMode, text string) (*ChatReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewValidationError("message", "must not be empty", text)
	}
	if len(text) > maxChatMessageLength {
		return nil, domain.NewValidationError("message", "is too long", len(text))
	}
	if mode == "" {
		mode = CHAT_LAB
	}
	if !mode.IsValid() {
		return nil, domain.NewValidationError("mode", "must be lab or health", mode)
	}
	if conversationID == uuid.Nil {
		conversationID = uuid.New()
	}

	system, err := s.systemPrompt(ctx, mode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	transcript, err := profile.LoadChatMessages(ctx, s.store, s.logger)
	if err != nil {
		return nil, domain.NewServiceError(domain.ErrProfileStore, "Kunne ikke læse samtalen", err.Error(), "")
	}

	question := domain.ChatMessage{Role: domain.RoleUser, Content: text, Timestamp: s.now()}
	transcript = append(transcript, question)

	answer := s.client.Complete(ctx, system, transcript)
	reply := domain.ChatMessage{Role: domain.RoleAssistant, Content: answer, Timestamp: s.now()}
	transcript = append(transcript, reply)

	if err := profile.SaveChatMessages(ctx, s.store, transcript); err != nil {
		return nil, domain.NewServiceError(domain.ErrProfileStore, "Kunne ikke gemme samtalen", err.Error(), "")
	}

	if s.archive != nil {
		if err := s.archive.Append(ctx, conversationID, question, reply); err != nil {
			s.logger.WithError(err).WithField("conversation_id", conversationID).Warn("Failed to archive chat exchange")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"mode":            mode,
		"messages":        len(transcript),
	}).Debug("Chat exchange completed")

	return &ChatReply{
		ConversationID: conversationID,
		Message:        reply,
		Degraded:       answer == external.ChatApology,
	}, nil
}

// History returns the stored transcript.
func (s *ChatService) History(ctx context.Context) ([]domain.ChatMessage, error) {
	messages, err := profile.LoadChatMessages(ctx, s.store, s.logger)
	if err != nil {
		return nil, domain.NewServiceError(domain.ErrProfileStore, "Kunne ikke læse samtalen", err.Error(), "")
	}
	return messages, nil
}

// Clear empties the stored transcript. Archived exchanges are kept.
func (s *ChatService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := profile.SaveChatMessages(ctx, s.store, nil); err != nil {
		return domain.NewServiceError(domain.ErrProfileStore, "Kunne ikke rydde samtalen", err.Error(), "")
	}
	return nil
}

// systemPrompt builds the prompt for mode. Missing lab data leaves the lab section empty.
func (s *ChatService) systemPrompt(ctx context.Context, mode ChatMode) (string, error) {
	var observations []domain.Observation
	if s.labs != nil {
		obs, err := s.labs.LabObservations(ctx)
		if err != nil {
			s.logger.WithError(err).Info("Chat prompt without lab data")
		} else {
			observations = obs
		}
	}

	if mode == CHAT_LAB {
		return BuildLabSystemPrompt(observations), nil
	}

	settings, err := profile.LoadSettings(ctx, s.store, s.logger)
	if err != nil {
		return "", domain.NewServiceError(domain.ErrProfileStore, "Kunne ikke læse profil", err.Error(), "")
	}
	return BuildHealthSystemPrompt(&settings, observations), nil
}
