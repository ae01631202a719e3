package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dining-concierge/internal/domain"
)

var fixedNow = time.Date(2025, 11, 1, 15, 0, 0, 0, time.UTC)

type mockClassifier struct {
	intent   domain.Intent
	err      error
	calls    int
	requests []domain.ClassifyRequest
}

func (m *mockClassifier) Classify(_ context.Context, in domain.ClassifyRequest) (domain.Classification, error) {
	m.calls++
	m.requests = append(m.requests, in)
	if m.err != nil {
		return domain.Classification{}, m.err
	}
	intent := m.intent
	if intent == 0 {
		intent = domain.IntentProvideSlotValue
	}
	return domain.Classification{Intent: intent}, nil
}

type memorySessions struct {
	states  map[string]domain.ConversationState
	loadErr error
	saveErr error
	saves   int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{states: map[string]domain.ConversationState{}}
}

func (m *memorySessions) Load(_ context.Context, id string) (domain.ConversationState, bool, error) {
	if m.loadErr != nil {
		return domain.ConversationState{}, false, m.loadErr
	}
	s, ok := m.states[id]
	return s.Clone(), ok, nil
}

func (m *memorySessions) Save(_ context.Context, s domain.ConversationState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.states[s.SessionID] = s.Clone()
	return nil
}

type mockQueue struct {
	enqueued []domain.DiningRequest
	err      error
}

func (m *mockQueue) Enqueue(_ context.Context, req domain.DiningRequest) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, req)
	return nil
}

func newTestChatService(t *testing.T, c Classifier, s SessionStore, q RequestQueue) *ChatService {
	t.Helper()
	prevNow, prevUUID := timeNow, newUUID
	timeNow = func() time.Time { return fixedNow }
	newUUID = func() string { return "generated-session" }
	t.Cleanup(func() {
		timeNow = prevNow
		newUUID = prevUUID
	})

	svc, err := NewChatService(c, s, q, time.Second, 0, nil)
	require.NoError(t, err)
	return svc
}

func chat(t *testing.T, svc *ChatService, sessionID, utterance string) ChatOutput {
	t.Helper()
	out, err := svc.Chat(context.Background(), ChatInput{SessionID: sessionID, Utterance: utterance})
	require.NoError(t, err)
	return out
}

func TestNewChatService_RequiresDependencies(t *testing.T) {
	_, err := NewChatService(nil, newMemorySessions(), &mockQueue{}, 0, 0, nil)
	require.Error(t, err)
	_, err = NewChatService(&mockClassifier{}, nil, &mockQueue{}, 0, 0, nil)
	require.Error(t, err)
	_, err = NewChatService(&mockClassifier{}, newMemorySessions(), nil, 0, 0, nil)
	require.Error(t, err)
}

func TestChat_FullConversationEnqueuesOnce(t *testing.T) {
	classifier := &mockClassifier{}
	sessions := newMemorySessions()
	queue := &mockQueue{}
	svc := newTestChatService(t, classifier, sessions, queue)

	classifier.intent = domain.IntentGreeting
	out := chat(t, svc, "s1", "hello")
	require.Contains(t, out.Response, "Where would you like to eat")
	require.Equal(t, domain.StageAwaitingLocation, out.Stage)

	classifier.intent = domain.IntentProvideSlotValue
	for _, answer := range []string{"Manhattan", "japanese", "4", "2025-11-15", "7:30 PM"} {
		out = chat(t, svc, "s1", answer)
		require.False(t, out.Enqueued)
	}
	require.Empty(t, queue.enqueued)

	out = chat(t, svc, "s1", "user@example.com")
	require.True(t, out.Enqueued)
	require.Equal(t, domain.StageComplete, out.Stage)
	require.Contains(t, out.Response, "Japanese")
	require.Contains(t, out.Response, "user@example.com")

	require.Len(t, queue.enqueued, 1)
	req := queue.enqueued[0]
	require.Equal(t, "s1", req.SessionID)
	require.Equal(t, "Manhattan", req.Location)
	require.Equal(t, domain.Cuisine("Japanese"), req.Cuisine)
	require.Equal(t, 4, req.PartySize)
	require.Equal(t, "2025-11-15", req.Date)
	require.Equal(t, "19:30", req.Time)

	saved := sessions.states["s1"]
	require.True(t, saved.Complete)
	require.Equal(t, 7, saved.Turns)
	require.Equal(t, fixedNow, saved.UpdatedAt)

	classifier.intent = domain.IntentThanks
	chat(t, svc, "s1", "thanks")
	require.Len(t, queue.enqueued, 1)
}

func TestChat_PassesPendingSlotToClassifier(t *testing.T) {
	classifier := &mockClassifier{}
	sessions := newMemorySessions()
	svc := newTestChatService(t, classifier, sessions, &mockQueue{})

	chat(t, svc, "s1", "Brooklyn")
	chat(t, svc, "s1", "Thai")

	require.Len(t, classifier.requests, 2)
	require.Equal(t, domain.SlotLocation, classifier.requests[0].ExpectedSlot)
	require.Equal(t, domain.SlotCuisine, classifier.requests[1].ExpectedSlot)
	require.Equal(t, "s1", classifier.requests[1].SessionID)
}

func TestChat_GeneratesSessionID(t *testing.T) {
	svc := newTestChatService(t, &mockClassifier{intent: domain.IntentGreeting}, newMemorySessions(), &mockQueue{})

	out := chat(t, svc, "  ", "hi")
	require.Equal(t, "generated-session", out.SessionID)
}

func TestChat_RejectsInvalidInput(t *testing.T) {
	classifier := &mockClassifier{}
	svc := newTestChatService(t, classifier, newMemorySessions(), &mockQueue{})

	_, err := svc.Chat(context.Background(), ChatInput{SessionID: "s1", Utterance: "   "})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInvalidInput, ucErr.Code)
	require.Equal(t, "empty_message", ucErr.Reason)

	_, err = svc.Chat(context.Background(), ChatInput{SessionID: "s1", Utterance: strings.Repeat("a", 301)})
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, "message_too_long", ucErr.Reason)

	require.Zero(t, classifier.calls)
}

func TestChat_SlotFailureKeepsStateAndSaves(t *testing.T) {
	sessions := newMemorySessions()
	svc := newTestChatService(t, &mockClassifier{}, sessions, &mockQueue{})

	chat(t, svc, "s1", "Manhattan")
	out := chat(t, svc, "s1", "Martian")

	require.Contains(t, out.Response, "Japanese")
	require.Equal(t, domain.StageAwaitingCuisine, out.Stage)
	saved := sessions.states["s1"]
	_, set := saved.Value(domain.SlotCuisine)
	require.False(t, set)
	require.Equal(t, 2, saved.Turns)
}

func TestChat_ClassifierFailure(t *testing.T) {
	classifier := &mockClassifier{err: errors.New("lex down")}
	sessions := newMemorySessions()
	svc := newTestChatService(t, classifier, sessions, &mockQueue{})

	_, err := svc.Chat(context.Background(), ChatInput{SessionID: "s1", Utterance: "hi"})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorClassifierUnavailable, ucErr.Code)
	require.Equal(t, 2, classifier.calls)
	require.Zero(t, sessions.saves)
}

func TestChat_EnqueueFailureDoesNotSave(t *testing.T) {
	sessions := newMemorySessions()
	queue := &mockQueue{}
	svc := newTestChatService(t, &mockClassifier{}, sessions, queue)

	for _, answer := range []string{"Manhattan", "Korean", "2", "tomorrow", "noon"} {
		chat(t, svc, "s1", answer)
	}
	before := sessions.states["s1"]

	queue.err = errors.New("sqs throttled")
	_, err := svc.Chat(context.Background(), ChatInput{SessionID: "s1", Utterance: "a@b.co"})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorUpstream, ucErr.Code)
	require.Equal(t, before, sessions.states["s1"])

	queue.err = nil
	out := chat(t, svc, "s1", "a@b.co")
	require.True(t, out.Enqueued)
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, "2025-11-02", queue.enqueued[0].Date)
	require.Equal(t, "12:00", queue.enqueued[0].Time)
}

func TestChat_SessionStoreErrors(t *testing.T) {
	sessions := newMemorySessions()
	sessions.loadErr = errors.New("dynamo unavailable")
	svc := newTestChatService(t, &mockClassifier{}, sessions, &mockQueue{})

	_, err := svc.Chat(context.Background(), ChatInput{SessionID: "s1", Utterance: "Manhattan"})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInternal, ucErr.Code)
	require.Equal(t, "session_load_error", ucErr.Reason)

	sessions.loadErr = nil
	sessions.saveErr = errors.New("conditional check failed")
	_, err = svc.Chat(context.Background(), ChatInput{SessionID: "s1", Utterance: "Manhattan"})
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, "session_save_error", ucErr.Reason)
}

func TestChat_ReadsDatesInServiceLocation(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	prevNow := timeNow
	timeNow = func() time.Time { return time.Date(2025, 12, 2, 1, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = prevNow })

	sessions := newMemorySessions()
	queue := &mockQueue{}
	svc, err := NewChatService(&mockClassifier{}, sessions, queue, time.Second, 0, newYork)
	require.NoError(t, err)

	for _, answer := range []string{"Manhattan", "italian", "2", "today", "8 PM", "user@example.com"} {
		chat(t, svc, "s-ny", answer)
	}
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, "2025-12-01", queue.enqueued[0].Date)
	require.Equal(t, time.Date(2025, 12, 2, 1, 0, 0, 0, time.UTC), sessions.states["s-ny"].UpdatedAt)
}

func TestChat_SaveFailureAfterEnqueueAllowsResend(t *testing.T) {
	sessions := newMemorySessions()
	queue := &mockQueue{}
	svc := newTestChatService(t, &mockClassifier{}, sessions, queue)

	for _, answer := range []string{"Manhattan", "thai", "2", "2025-11-20", "18:00"} {
		chat(t, svc, "s1", answer)
	}

	sessions.saveErr = errors.New("throttled")
	_, err := svc.Chat(context.Background(), ChatInput{SessionID: "s1", Utterance: "user@example.com"})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInternal, ucErr.Code)
	require.Len(t, queue.enqueued, 1)
	require.False(t, sessions.states["s1"].Complete)

	sessions.saveErr = nil
	out := chat(t, svc, "s1", "user@example.com")
	require.True(t, out.Enqueued)
	require.Len(t, queue.enqueued, 2)
	require.True(t, sessions.states["s1"].Complete)
}
