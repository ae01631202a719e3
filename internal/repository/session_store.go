package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"dining-concierge/internal/domain"
)

const (
	skState        = "STATE"
	defaultSession = 24 * time.Hour
)

// SessionStore keeps one conversation state item per session in a
// single-table layout (PK=SESSION#<id>, SK=STATE) with a DynamoDB TTL.
type SessionStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewSessionStore creates a DynamoDB-backed session store.
func NewSessionStore(api dynamodbAPI, tableName string, ttl time.Duration) (*SessionStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultSession
	}
	return &SessionStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// Load returns the stored state. A missing item reports false without error.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (domain.ConversationState, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skState},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ConversationState{}, false, nil
	}

	// An expired item can outlive its TTL until DynamoDB sweeps it.
	if exp, err := intAttr(out.Item, "ttl"); err == nil && int64(exp) <= s.now().Unix() {
		return domain.ConversationState{}, false, nil
	}

	state, err := itemToState(sessionID, out.Item)
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: Load decode: %w", err)
	}
	return state, true, nil
}

// Save replaces the stored state and pushes the expiry forward.
func (s *SessionStore) Save(ctx context.Context, state domain.ConversationState) error {
	if strings.TrimSpace(state.SessionID) == "" {
		return errors.New("repository: Save: session id is required")
	}
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      s.stateItem(state),
	})
	if err != nil {
		return fmt.Errorf("repository: Save: %w", err)
	}
	return nil
}

func (s *SessionStore) stateItem(state domain.ConversationState) map[string]types.AttributeValue {
	slots := make(map[string]types.AttributeValue, len(state.Slots))
	for slot, v := range state.Slots {
		slots[string(slot)] = &types.AttributeValueMemberS{Value: v}
	}
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: sessionPK(state.SessionID)},
		"SK":           &types.AttributeValueMemberS{Value: skState},
		"sessionId":    &types.AttributeValueMemberS{Value: state.SessionID},
		"slots":        &types.AttributeValueMemberM{Value: slots},
		"lastPrompted": &types.AttributeValueMemberS{Value: string(state.LastPrompted)},
		"complete":     &types.AttributeValueMemberBOOL{Value: state.Complete},
		"turns":        numAttr(int64(state.Turns)),
		"updatedAt":    &types.AttributeValueMemberS{Value: updated.UTC().Format(time.RFC3339Nano)},
		"ttl":          numAttr(s.now().Add(s.ttl).Unix()),
	}
}

func itemToState(sessionID string, item map[string]types.AttributeValue) (domain.ConversationState, error) {
	state := domain.NewConversationState(sessionID)

	if m, ok := item["slots"].(*types.AttributeValueMemberM); ok && len(m.Value) > 0 {
		state.Slots = make(map[domain.Slot]string, len(m.Value))
		for k, v := range m.Value {
			slot := domain.Slot(k)
			if !slot.Valid() {
				return domain.ConversationState{}, fmt.Errorf("repository: unknown slot %q", k)
			}
			sv, ok := v.(*types.AttributeValueMemberS)
			if !ok {
				return domain.ConversationState{}, fmt.Errorf("repository: slot %q is not a string", k)
			}
			state.Slots[slot] = sv.Value
		}
	}
	state.LastPrompted = domain.Slot(optStrAttr(item, "lastPrompted"))
	if b, ok := item["complete"].(*types.AttributeValueMemberBOOL); ok {
		state.Complete = b.Value
	}
	if turns, err := intAttr(item, "turns"); err == nil {
		state.Turns = turns
	}
	if ts := optStrAttr(item, "updatedAt"); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return domain.ConversationState{}, fmt.Errorf("repository: parse updatedAt: %w", err)
		}
		state.UpdatedAt = parsed
	}
	return state, nil
}
