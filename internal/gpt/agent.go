package gpt

import (
	"context"
	"fmt"
	"strings"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

// Compile-time interface check.
var _ domain.LLM = (*Agent)(nil)

// Agent wraps the chat Client with walk-context building. It is the
// single entry point the orchestrator calls for conversational replies.
type Agent struct {
	client  *Client
	context func() domain.Context
	log     *logger.Logger
}

// NewAgent creates a companion agent backed by the given Client. context
// supplies the current walk context on every call; it may be nil.
func NewAgent(client *Client, context func() domain.Context, log *logger.Logger) *Agent {
	return &Agent{client: client, context: context, log: log}
}

// Complete sends the user's transcript to the model together with the
// current walk context and returns the spoken reply.
func (a *Agent) Complete(ctx context.Context, transcript string) (string, error) {
	msgs := []Message{
		TextMessage(RoleSystem, PromptCompanion),
	}

	if block := a.buildContext(); block != "" {
		msgs = append(msgs, TextMessage(RoleUser, block))
		// Fake an ack so the model treats context as established.
		msgs = append(msgs, TextMessage(RoleAssistant, "Got it, I have the context."))
	}

	msgs = append(msgs, TextMessage(RoleUser, transcript))
	return a.client.Chat(ctx, msgs)
}

// buildContext serializes the current walk context into a plain-text
// block the model can reason over.
func (a *Agent) buildContext() string {
	if a.context == nil {
		return ""
	}
	wc := a.context()

	var b strings.Builder
	b.WriteString("[Current Walk Context]\n")
	fmt.Fprintf(&b, "Walk state: %s\n", wc.Walk)
	if wc.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", wc.Location)
	}
	if wc.Destination != "" {
		fmt.Fprintf(&b, "Destination: %s\n", wc.Destination)
	}
	if wc.RouteSummary != "" {
		fmt.Fprintf(&b, "Route: %s\n", wc.RouteSummary)
	}
	if wc.SafetyScore > 0 {
		fmt.Fprintf(&b, "Area safety score: %d out of 100\n", wc.SafetyScore)
	}
	if len(wc.DangerZones) > 0 {
		fmt.Fprintf(&b, "Flagged areas on route: %s\n", strings.Join(wc.DangerZones, "; "))
	}
	if summary := wc.ContactSummary(); summary != "" {
		fmt.Fprintf(&b, "Trusted contacts: %s\n", summary)
	}
	return b.String()
}
