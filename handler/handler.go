// Package handler adapts Lambda events to the chat and fulfillment use cases.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"dining-concierge/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	apologyMessage    = "Sorry, I'm having trouble right now. Please try again in a moment."
)

// ChatUseCase is the conversational turn consumed by the front door.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

// ChatRequest is the front door request body. "utterance" is accepted as an
// alias of "message".
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Utterance string `json:"utterance,omitempty"`
}

// Input converts the wire request to the use case input.
func (r ChatRequest) Input() usecase.ChatInput {
	msg := r.Message
	if strings.TrimSpace(msg) == "" {
		msg = r.Utterance
	}
	return usecase.ChatInput{SessionID: r.SessionID, Utterance: msg}
}

type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler serves API Gateway proxy requests for the chat front door.
type Handler struct {
	chat ChatUseCase
}

func NewHandler(chat ChatUseCase) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	return &Handler{chat: chat}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := slog.With("correlation_id", correlationID)

	if req.HTTPMethod == http.MethodOptions {
		return respond(http.StatusNoContent, correlationID, nil), nil
	}

	var body ChatRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		log.InfoContext(ctx, "invalid chat request body", "err", err)
		return respond(http.StatusBadRequest, correlationID, ErrorResponse{
			Error:   string(usecase.ErrorInvalidInput),
			Message: "Request body must be JSON with a message field.",
		}), nil
	}

	out, err := h.chat.Chat(ctx, body.Input())
	if err != nil {
		status, payload := ErrorStatus(err)
		log.ErrorContext(ctx, "chat turn failed", "status", status, "err", err)
		return respond(status, correlationID, payload), nil
	}

	log.InfoContext(ctx, "chat turn handled", "session_id", out.SessionID, "stage", out.Stage, "enqueued", out.Enqueued)
	return respond(http.StatusOK, correlationID, ChatResponse{Response: out.Response, SessionID: out.SessionID}), nil
}

// ErrorStatus maps a chat failure to an HTTP status and the body shown to the
// user. Only input errors carry a specific message.
func ErrorStatus(err error) (int, ErrorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, ErrorResponse{Error: string(usecase.ErrorInternal), Message: apologyMessage}
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		msg := "Please send a message."
		if ucErr.Reason == "message_too_long" {
			msg = "That message is too long. Please keep it short."
		}
		return http.StatusBadRequest, ErrorResponse{Error: string(ucErr.Code), Message: msg}
	case usecase.ErrorClassifierUnavailable:
		return http.StatusServiceUnavailable, ErrorResponse{Error: string(ucErr.Code), Message: apologyMessage}
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, ErrorResponse{Error: string(ucErr.Code), Message: apologyMessage}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: string(usecase.ErrorInternal), Message: apologyMessage}
	}
}

// CORSHeaders are returned on every front door response.
func CORSHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,X-Correlation-Id",
		"Access-Control-Allow-Methods": "POST,OPTIONS",
	}
}

func respond(status int, correlationID string, payload any) events.APIGatewayProxyResponse {
	headers := CORSHeaders()
	headers[correlationHeader] = correlationID
	resp := events.APIGatewayProxyResponse{StatusCode: status, Headers: headers}
	if payload == nil {
		return resp
	}
	headers["Content-Type"] = "application/json"
	raw, err := json.Marshal(payload)
	if err != nil {
		resp.StatusCode = http.StatusInternalServerError
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	resp.Body = string(raw)
	return resp
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
