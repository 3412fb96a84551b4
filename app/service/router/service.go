package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"deskbot/app/client/llm"

	_ "embed"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

//go:embed route_prompt_template.txt
var routePromptTemplate string

// Route is the closed set of handling strategies for an inbound message.
type Route string

const (
	RouteDocQA     Route = "doc_qa"
	RouteMath      Route = "math"
	RouteEmail     Route = "email"
	RouteGeneralQA Route = "general_qa"
	RouteFallback  Route = "fallback"
)

var knownRoutes = []Route{RouteDocQA, RouteMath, RouteEmail, RouteGeneralQA, RouteFallback}

type routeResponse struct {
	Tool string `json:"tool"`
}

type Service struct {
	completer llm.Completer
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		completer: do.MustInvoke[llm.Completer](di),
	}, nil
}

func NewWithCompleter(completer llm.Completer) *Service {
	return &Service{completer: completer}
}

// Route classifies the message with a single collaborator call. Whatever
// comes back is coerced into a known label; classification failure is
// data, not an error, and turns into RouteFallback.
func (s *Service) Route(ctx context.Context, message string) Route {
	prompt := strings.ReplaceAll(routePromptTemplate, "{message}", message)

	raw, err := s.completer.CompleteJSON(ctx, prompt)
	if err != nil {
		slog.Warn("Route classification failed", "error", err)
		return RouteFallback
	}

	var response routeResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		slog.Warn("Route classification returned malformed output", "raw", raw)
		return RouteFallback
	}

	label := Route(strings.ToLower(strings.TrimSpace(response.Tool)))
	if !pie.Contains(knownRoutes, label) {
		slog.Warn("Route classification returned unknown label", "label", string(label))
		return RouteFallback
	}

	return label
}
