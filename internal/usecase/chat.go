package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dining-concierge/internal/dialogue"
	"dining-concierge/internal/domain"
	"dining-concierge/internal/retry"
)

const (
	defaultClassifierTimeout = 3 * time.Second
	defaultMaxUtterance      = 300
)

type Classifier interface {
	Classify(ctx context.Context, in domain.ClassifyRequest) (domain.Classification, error)
}

type SessionStore interface {
	Load(ctx context.Context, sessionID string) (domain.ConversationState, bool, error)
	Save(ctx context.Context, state domain.ConversationState) error
}

type RequestQueue interface {
	Enqueue(ctx context.Context, req domain.DiningRequest) error
}

type ChatService struct {
	classifier        Classifier
	sessions          SessionStore
	queue             RequestQueue
	collector         *dialogue.Collector
	classifierTimeout time.Duration
	maxUtteranceLen   int
	location          *time.Location
}

type ChatInput struct {
	SessionID string
	Utterance string
}

type ChatOutput struct {
	Response  string
	SessionID string
	Stage     domain.Stage
	Enqueued  bool
}

// NewChatService builds the turn service. Dates the user says are interpreted
// in loc; nil means UTC.
func NewChatService(c Classifier, s SessionStore, q RequestQueue, classifierTimeout time.Duration, maxUtteranceLen int, loc *time.Location) (*ChatService, error) {
	if c == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if q == nil {
		return nil, errors.New("usecase: request queue must not be nil")
	}
	if classifierTimeout <= 0 {
		classifierTimeout = defaultClassifierTimeout
	}
	if maxUtteranceLen <= 0 {
		maxUtteranceLen = defaultMaxUtterance
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ChatService{
		classifier:        c,
		sessions:          s,
		queue:             q,
		collector:         dialogue.NewCollector(),
		classifierTimeout: classifierTimeout,
		maxUtteranceLen:   maxUtteranceLen,
		location:          loc,
	}, nil
}

// Chat runs one conversational turn: load, classify, advance, enqueue on
// completion, save.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	utterance := strings.TrimSpace(in.Utterance)
	if utterance == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(utterance) > s.maxUtteranceLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}

	state, found, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "session_load_error", err)
	}
	if !found {
		state = domain.NewConversationState(sessionID)
	}

	classification, err := s.classify(ctx, state, utterance)
	if err != nil {
		return ChatOutput{}, newError(ErrorClassifierUnavailable, "classifier_error", err)
	}

	now := timeNow()
	next, res := s.collector.HandleTurn(state, dialogue.TurnInput{
		Utterance:      utterance,
		Classification: classification,
		Now:            now.In(s.location),
	})
	if res.Failure != nil {
		slog.InfoContext(ctx, "slot answer rejected",
			"session_id", sessionID,
			"slot", res.Failure.Slot,
			"kind", res.Failure.Kind,
			"reason", res.Failure.Reason,
		)
	}

	if res.Request != nil {
		req := *res.Request
		err := retry.Do(ctx, retry.QueuePolicy(), "enqueue_request", func(ctx context.Context) error {
			return s.queue.Enqueue(ctx, req)
		})
		if err != nil {
			return ChatOutput{}, newError(ErrorUpstream, "queue_enqueue_error", err)
		}
		slog.InfoContext(ctx, "dining request enqueued",
			"session_id", sessionID,
			"cuisine", req.Cuisine,
			"party_size", req.PartySize,
		)
	}

	next.Turns = state.Turns + 1
	next.UpdatedAt = now.UTC()
	if err := s.sessions.Save(ctx, next); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "session_save_error", err)
	}

	return ChatOutput{
		Response:  res.Response,
		SessionID: sessionID,
		Stage:     next.Stage(),
		Enqueued:  res.Request != nil,
	}, nil
}

func (s *ChatService) classify(ctx context.Context, state domain.ConversationState, utterance string) (domain.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.classifierTimeout)
	defer cancel()

	expected, _ := state.Pending()
	return retry.DoValue(ctx, retry.ClassifierPolicy(), "classify_utterance", func(ctx context.Context) (domain.Classification, error) {
		return s.classifier.Classify(ctx, domain.ClassifyRequest{
			SessionID:    state.SessionID,
			Utterance:    utterance,
			ExpectedSlot: expected,
		})
	})
}

var newUUID = func() string {
	return uuid.NewString()
}

var timeNow = time.Now
