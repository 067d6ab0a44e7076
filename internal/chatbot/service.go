package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/safehug/internal/llm"
	"github.com/wolfman30/safehug/pkg/logging"
)

const (
	MaxMessageRunes = 500

	replyMaxTokens   = 500
	replyTemperature = 0.7
)

var (
	ErrInvalidMessage = errors.New("chatbot: invalid message")
	ErrNoReply        = errors.New("chatbot: model returned no text")
)

// Exchange is one question and answer as kept in the log.
type Exchange struct {
	UserID    string
	SessionID string
	Crisis    Crisis
	Message   string
	Response  string
}

type exchangeLog interface {
	Save(ctx context.Context, e Exchange) error
}

type replyRecorder interface {
	ObserveReply(crisis, status string)
}

// Request is a user's chat message. An empty SessionID starts a new session.
type Request struct {
	UserID    string
	SessionID string
	Message   string
}

// Reply is the bot's answer with follow-up choices for the client.
type Reply struct {
	SessionID string   `json:"session_id"`
	Message   string   `json:"message"`
	Options   []string `json:"options"`
	Crisis    Crisis   `json:"crisis,omitempty"`
}

type Service struct {
	client  llm.Client
	log     exchangeLog
	metrics replyRecorder
	tracer  trace.Tracer
	logger  *logging.Logger
}

// NewService builds the chatbot. log and metrics may be nil.
func NewService(client llm.Client, log exchangeLog, metrics replyRecorder, logger *logging.Logger) *Service {
	if client == nil {
		panic("chatbot: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		client:  client,
		log:     log,
		metrics: metrics,
		tracer:  otel.Tracer("safehug.internal.chatbot"),
		logger:  logger,
	}
}

func (s *Service) Reply(ctx context.Context, req Request) (*Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(message) > MaxMessageRunes {
		return nil, fmt.Errorf("%w: message longer than %d characters", ErrInvalidMessage, MaxMessageRunes)
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	crisis := Detect(message)
	ctx, span := s.tracer.Start(ctx, "chatbot.reply", trace.WithAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("crisis", string(crisis)),
	))
	defer span.End()

	resp, err := s.client.Complete(ctx, llm.Request{
		System:      []string{SystemPrompt(crisis)},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: message}},
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = ErrNoReply
	}
	if err != nil {
		span.RecordError(err)
		s.observe(crisis, "error")
		return nil, fmt.Errorf("chatbot: complete: %w", err)
	}
	s.observe(crisis, "success")

	text := strings.TrimSpace(resp.Text)
	if crisis != CrisisNone {
		s.logger.Info("crisis message answered", "session_id", sessionID, "crisis", string(crisis))
	}
	if s.log != nil {
		if err := s.log.Save(ctx, Exchange{
			UserID:    req.UserID,
			SessionID: sessionID,
			Crisis:    crisis,
			Message:   message,
			Response:  text,
		}); err != nil {
			s.logger.Warn("chatbot log write failed", "error", err, "session_id", sessionID)
		}
	}
	return &Reply{SessionID: sessionID, Message: text, Options: Options(text), Crisis: crisis}, nil
}

func (s *Service) observe(crisis Crisis, status string) {
	if s.metrics == nil {
		return
	}
	label := string(crisis)
	if label == "" {
		label = "none"
	}
	s.metrics.ObserveReply(label, status)
}
