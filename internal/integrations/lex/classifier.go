// Package lex classifies utterances with an Amazon Lex V2 bot. The bot only
// does NLU here: dialogue state stays with the collector and every request
// carries an ElicitSlot hint for the slot the collector is waiting on.
package lex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimev2"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimev2/types"

	"dining-concierge/internal/domain"
)

const (
	intentGreeting    = "GreetingIntent"
	intentThanks      = "ThankYouIntent"
	intentSuggestions = "DiningSuggestionsIntent"
	intentFallback    = "FallbackIntent"
)

// botSlots maps collector slots to the bot's slot names.
var botSlots = map[domain.Slot]string{
	domain.SlotLocation:  "Location",
	domain.SlotCuisine:   "Cuisine",
	domain.SlotPartySize: "NumberOfPeople",
	domain.SlotDate:      "DiningDate",
	domain.SlotTime:      "DiningTime",
	domain.SlotEmail:     "Email",
}

// lexAPI is the minimal Lex runtime interface required by Classifier.
type lexAPI interface {
	RecognizeText(ctx context.Context, in *lexruntimev2.RecognizeTextInput, optFns ...func(*lexruntimev2.Options)) (*lexruntimev2.RecognizeTextOutput, error)
}

type Classifier struct {
	api      lexAPI
	botID    string
	aliasID  string
	localeID string
}

func NewClassifier(api lexAPI, botID, aliasID, localeID string) (*Classifier, error) {
	if api == nil {
		return nil, errors.New("lex: api must not be nil")
	}
	if strings.TrimSpace(botID) == "" || strings.TrimSpace(aliasID) == "" {
		return nil, errors.New("lex: bot id and alias id are required")
	}
	if strings.TrimSpace(localeID) == "" {
		localeID = "en_US"
	}
	return &Classifier{api: api, botID: botID, aliasID: aliasID, localeID: localeID}, nil
}

func (c *Classifier) Classify(ctx context.Context, in domain.ClassifyRequest) (domain.Classification, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return domain.Classification{}, errors.New("lex: session id is required")
	}

	out, err := c.api.RecognizeText(ctx, &lexruntimev2.RecognizeTextInput{
		BotId:        aws.String(c.botID),
		BotAliasId:   aws.String(c.aliasID),
		LocaleId:     aws.String(c.localeID),
		SessionId:    aws.String(in.SessionID),
		Text:         aws.String(in.Utterance),
		SessionState: elicitation(in.ExpectedSlot),
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("lex: recognize text: %w", err)
	}
	if out == nil || out.SessionState == nil || out.SessionState.Intent == nil {
		return domain.Classification{}, errors.New("lex: response has no intent")
	}
	return classify(*out.SessionState.Intent, in.ExpectedSlot), nil
}

func elicitation(expected domain.Slot) *types.SessionState {
	name, ok := botSlots[expected]
	if !ok {
		return nil
	}
	return &types.SessionState{
		DialogAction: &types.DialogAction{
			Type:         types.DialogActionTypeElicitSlot,
			SlotToElicit: aws.String(name),
		},
		Intent: &types.Intent{Name: aws.String(intentSuggestions)},
	}
}

func classify(intent types.Intent, expected domain.Slot) domain.Classification {
	switch aws.ToString(intent.Name) {
	case intentGreeting:
		return domain.Classification{Intent: domain.IntentGreeting}
	case intentThanks:
		return domain.Classification{Intent: domain.IntentThanks}
	case intentSuggestions:
		if v, ok := slotValue(intent, expected); ok {
			return domain.Classification{Intent: domain.IntentProvideSlotValue, Value: v}
		}
		if anySlotFilled(intent) {
			return domain.Classification{Intent: domain.IntentProvideSlotValue}
		}
		return domain.Classification{Intent: domain.IntentRequestSuggestions}
	default:
		// FallbackIntent and anything unmodeled: let the collector validate
		// the raw utterance against the pending slot.
		return domain.Classification{Intent: domain.IntentProvideSlotValue}
	}
}

func slotValue(intent types.Intent, slot domain.Slot) (string, bool) {
	name, ok := botSlots[slot]
	if !ok {
		return "", false
	}
	s, ok := intent.Slots[name]
	if !ok || s.Value == nil {
		return "", false
	}
	if v := strings.TrimSpace(aws.ToString(s.Value.InterpretedValue)); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(aws.ToString(s.Value.OriginalValue)); v != "" {
		return v, true
	}
	return "", false
}

func anySlotFilled(intent types.Intent) bool {
	for _, s := range intent.Slots {
		if s.Value != nil && aws.ToString(s.Value.InterpretedValue) != "" {
			return true
		}
	}
	return false
}
