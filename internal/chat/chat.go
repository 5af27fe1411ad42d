// Package chat answers follow-up questions about an analyzed property.
package chat

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrEmptyMessage is returned for a blank message.
var ErrEmptyMessage = eris.New("chat: message cannot be empty")

// Apology is returned to the user when the model call fails.
const Apology = "Sorry, I encountered an error while processing your message. Please try again."

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// maxContextChars bounds how much prior analysis is sent with a question.
const maxContextChars = 8000

// Chatter is an LLM that answers a single question.
type Chatter interface {
	Chat(ctx context.Context, system, message string) (string, error)
}

// Request is a follow-up question.
type Request struct {
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"`
	Address   string `json:"address,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Response is the answer returned to the client.
type Response struct {
	Response string `json:"response"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Responder answers chat requests.
type Responder struct {
	llm Chatter
}

// NewResponder creates a Responder.
func NewResponder(llm Chatter) *Responder { return &Responder{llm: llm} }

// Respond answers req. The only error returned is ErrEmptyMessage; model
// failures become a Response with StatusError.
func (r *Responder) Respond(ctx context.Context, req Request) (Response, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return Response{}, ErrEmptyMessage
	}
	log := zap.L().With(zap.String("session_id", req.SessionID), zap.String("address", req.Address))

	answer, err := r.llm.Chat(ctx, SystemPrompt(req.Address, req.Context), msg)
	if err != nil {
		log.Error("chat: model call failed", zap.Error(err))
		return Response{Response: Apology, Status: StatusError, Error: err.Error()}, nil
	}
	log.Info("chat: response generated", zap.Int("chars", len(answer)))
	return Response{Response: answer, Status: StatusSuccess}, nil
}

// SystemPrompt frames the follow-up around the property and any prior
// analysis text.
func SystemPrompt(address, analysis string) string {
	var b strings.Builder
	b.WriteString("You are a real estate analysis assistant specializing in Los Angeles properties. ")
	b.WriteString("Answer follow-up questions concisely using the property analysis provided. ")
	b.WriteString("If the analysis does not contain the answer, say so rather than guessing.")
	if address != "" {
		b.WriteString("\n\nProperty: ")
		b.WriteString(address)
	}
	if analysis = strings.TrimSpace(analysis); analysis != "" {
		if r := []rune(analysis); len(r) > maxContextChars {
			analysis = string(r[:maxContextChars]) + "..."
		}
		b.WriteString("\n\nPrevious analysis:\n")
		b.WriteString(analysis)
	}
	return b.String()
}
