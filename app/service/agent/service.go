package agent

import (
	"context"
	"log/slog"
	"strings"

	"deskbot/app/client/llm"
	"deskbot/app/service/history"
	"deskbot/app/service/router"

	"github.com/samber/do"
)

const (
	// FallbackReply is returned for messages the router could not place.
	FallbackReply = "I don't understand that yet. Try asking a question, or upload a document and ask about it."
	// ErrorReply substitutes a collaborator failure; the turn is still recorded.
	ErrorReply = "Sorry, something went wrong while answering that. Please try again."

	maxHistoryContext = 10
)

type Memory interface {
	Get(ctx context.Context, userID string) ([]history.Turn, error)
	Append(ctx context.Context, userID string, turn history.Turn) error
}

type Router interface {
	Route(ctx context.Context, message string) router.Route
}

type Retriever interface {
	Query(ctx context.Context, owner, query string) ([]string, error)
}

// Service orchestrates one inbound message: load memory, route, execute
// the routed action, record the turn, reply. It holds no state of its own
// between messages.
type Service struct {
	memory    Memory
	router    Router
	retriever Retriever
	completer llm.Completer
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		memory:    do.MustInvoke[*history.Service](di),
		router:    do.MustInvoke[*router.Service](di),
		retriever: do.MustInvoke[Retriever](di),
		completer: do.MustInvoke[llm.Completer](di),
	}, nil
}

func NewWithDeps(memory Memory, routerSvc Router, retriever Retriever, completer llm.Completer) *Service {
	return &Service{
		memory:    memory,
		router:    routerSvc,
		retriever: retriever,
		completer: completer,
	}
}

// Respond runs the full turn. The returned reply is always usable; a
// collaborator failure degrades to ErrorReply rather than an error, so
// the caller never leaves the user unacknowledged. Storage failures are
// the one thing still surfaced alongside the reply.
func (s *Service) Respond(ctx context.Context, userID, message string) (string, error) {
	turns, err := s.memory.Get(ctx, userID)
	if err != nil {
		return ErrorReply, err
	}

	route := s.router.Route(ctx, message)

	reply, err := s.execute(ctx, route, userID, message, turns)
	if err != nil {
		slog.Error("Route action failed",
			"user_id", userID,
			"route", string(route),
			"error", err,
		)
		reply = ErrorReply
	}

	if err := s.memory.Append(ctx, userID, history.Turn{
		UserInput:   message,
		BotResponse: reply,
	}); err != nil {
		return reply, err
	}

	slog.Info("Processed message",
		"user_id", userID,
		"route", string(route),
		"reply_len", len(reply),
	)

	return reply, nil
}

func (s *Service) execute(ctx context.Context, route router.Route, userID, message string, turns []history.Turn) (string, error) {
	switch route {
	case router.RouteDocQA:
		return s.answerFromDocuments(ctx, userID, message)
	case router.RouteMath:
		return s.completer.Complete(ctx,
			"You are a precise math assistant. Solve the problem and answer with just the result.",
			message)
	case router.RouteEmail:
		return s.completer.Complete(ctx,
			"You are an email assistant. Draft or answer the email the user asks for, plain text only.",
			message)
	case router.RouteGeneralQA:
		return s.completer.Complete(ctx,
			"You are a helpful assistant. Answer concisely."+historyContext(turns),
			message)
	default:
		return FallbackReply, nil
	}
}

func (s *Service) answerFromDocuments(ctx context.Context, userID, message string) (string, error) {
	passages, err := s.retriever.Query(ctx, userID, message)
	if err != nil {
		return "", err
	}

	if len(passages) == 0 {
		return "I couldn't find anything about that in your documents. Upload a document first, or rephrase the question.", nil
	}

	instruction := "Answer the question using only the following passages from the user's documents:\n\n" +
		strings.Join(passages, "\n---\n")

	return s.completer.Complete(ctx, instruction, message)
}

func historyContext(turns []history.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	if len(turns) > maxHistoryContext {
		turns = turns[len(turns)-maxHistoryContext:]
	}

	var builder strings.Builder
	builder.WriteString("\n\nRecent conversation:\n")
	for _, turn := range turns {
		builder.WriteString("user: " + turn.UserInput + "\n")
		builder.WriteString("assistant: " + turn.BotResponse + "\n")
	}

	return builder.String()
}
