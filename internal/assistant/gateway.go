// Package assistant composes the brand system instruction with a
// bounded conversation window and the external completion call. Errors
// from the provider pass through typed; presentation is the HTTP
// boundary's job, not this layer's.
package assistant

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/tashakor/supportbot/internal/archive"
	"github.com/tashakor/supportbot/internal/conversation"
	"github.com/tashakor/supportbot/internal/openai"
	"github.com/tashakor/supportbot/internal/policy"
	"github.com/tashakor/supportbot/internal/records"
)

// Options tunes the gateway. Zero values fall back to the defaults the
// service has always run with.
type Options struct {
	MaxHistory     int
	RequestTimeout time.Duration
}

const (
	defaultMaxHistory = 10
	defaultTimeout    = 60 * time.Second
)

// Gateway owns the chat flow for one process.
type Gateway struct {
	completer     openai.Completer
	conversations *conversation.Store
	archive       archive.Store
	maxHistory    int
	timeout       time.Duration
	now           func() time.Time
}

func New(completer openai.Completer, conversations *conversation.Store, archiveStore archive.Store, opts Options) *Gateway {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = defaultMaxHistory
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultTimeout
	}
	if archiveStore == nil {
		archiveStore = archive.NopStore{}
	}
	return &Gateway{
		completer:     completer,
		conversations: conversations,
		archive:       archiveStore,
		maxHistory:    opts.MaxHistory,
		timeout:       opts.RequestTimeout,
		now:           time.Now,
	}
}

// BotName returns the assistant's display name.
func (g *Gateway) BotName() string { return BotName }

// Reply appends the user turn, asks the provider for a completion over
// the windowed transcript, normalizes and appends the reply, and
// returns it. On provider failure the error is returned as-is; the user
// turn stays in the transcript so a retry carries the question.
func (g *Gateway) Reply(ctx context.Context, sessionKey, userText string) (string, error) {
	g.conversations.Append(sessionKey, conversation.RoleUser, userText)
	g.archiveTurn(ctx, sessionKey, conversation.RoleUser, userText)

	window := g.conversations.Window(sessionKey, g.maxHistory)
	messages := make([]openai.Message, 0, len(window))
	for _, turn := range window {
		messages = append(messages, openai.Message{Role: string(turn.Role), Content: turn.Content})
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.completer.Complete(callCtx, systemInstruction(g.now()), messages)
	if err != nil {
		return "", err
	}

	text = Normalize(text)
	g.conversations.Append(sessionKey, conversation.RoleAssistant, text)
	g.archiveTurn(ctx, sessionKey, conversation.RoleAssistant, text)
	return text, nil
}

func (g *Gateway) archiveTurn(ctx context.Context, sessionKey string, role conversation.Role, content string) {
	masked, changed := policy.MaskCardNumbers(content)
	if changed {
		log.Printf("assistant: masked card number in archived turn for %s", sessionKey)
	}
	if err := g.archive.SaveTurn(ctx, archive.TurnRecord{
		SessionID: sessionKey,
		Role:      string(role),
		Content:   masked,
	}); err != nil {
		log.Printf("assistant: archive turn for %s failed: %v", sessionKey, err)
	}
}

type extractedFields struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Product  string `json:"product"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Notes    string `json:"notes"`
}

// Extract asks the provider to pull structured order fields out of a
// conversation text. Output that is not the demanded JSON object counts
// as a provider failure.
func (g *Gateway) Extract(ctx context.Context, conversationText string) (records.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.completer.Complete(callCtx, extractionInstruction, []openai.Message{
		{Role: "user", Content: conversationText},
	})
	if err != nil {
		return records.Record{}, err
	}

	var fields extractedFields
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &fields); err != nil {
		return records.Record{}, &openai.ProviderError{
			Op:     "extract",
			Detail: "model did not return the requested JSON object",
			Err:    err,
		}
	}

	return records.Record{
		Name:     fields.Name,
		Phone:    fields.Phone,
		Email:    fields.Email,
		Address:  fields.Address,
		Product:  fields.Product,
		Quantity: fields.Quantity,
		Price:    fields.Price,
		Notes:    fields.Notes,
	}, nil
}

// Models occasionally wrap JSON in markdown fences despite the
// instruction not to.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
