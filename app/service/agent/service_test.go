package agent

import (
	"context"
	"errors"
	"testing"

	"deskbot/app/client/kv"
	"deskbot/app/service/history"
	"deskbot/app/service/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRouter struct {
	route router.Route
}

func (f fixedRouter) Route(context.Context, string) router.Route {
	return f.route
}

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeCompleter) CompleteJSON(context.Context, string) (string, error) {
	f.calls++
	return f.response, f.err
}

type fakeRetriever struct {
	passages []string
	err      error
}

func (f *fakeRetriever) Query(context.Context, string, string) ([]string, error) {
	return f.passages, f.err
}

func newTestAgent(route router.Route, completer *fakeCompleter, retriever *fakeRetriever) (*Service, *history.Service) {
	memory := history.NewWithStore(kv.NewMemoryStore())
	return NewWithDeps(memory, fixedRouter{route: route}, retriever, completer), memory
}

func TestMathScenario(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{response: "4"}
	svc, memory := newTestAgent(router.RouteMath, completer, &fakeRetriever{})

	reply, err := svc.Respond(ctx, "alice", "What's 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", reply)

	turns, err := memory.Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, history.Turn{UserInput: "What's 2+2?", BotResponse: "4"}, turns[0])
}

func TestCollaboratorFailureStillRecordsTurn(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{err: errors.New("model unavailable")}
	svc, memory := newTestAgent(router.RouteGeneralQA, completer, &fakeRetriever{})

	reply, err := svc.Respond(ctx, "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, ErrorReply, reply)

	turns, err := memory.Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello", turns[0].UserInput)
	assert.Equal(t, ErrorReply, turns[0].BotResponse)
}

func TestFallbackDoesNotInvokeCollaborator(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{response: "should not be used"}
	svc, memory := newTestAgent(router.RouteFallback, completer, &fakeRetriever{})

	reply, err := svc.Respond(ctx, "alice", "asdfgh")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply)
	assert.Zero(t, completer.calls)

	turns, err := memory.Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 1)
}

func TestDocQAWithoutDocuments(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{response: "should not be used"}
	svc, _ := newTestAgent(router.RouteDocQA, completer, &fakeRetriever{})

	reply, err := svc.Respond(ctx, "alice", "what does my report say?")
	require.NoError(t, err)
	assert.Contains(t, reply, "couldn't find anything")
	assert.Zero(t, completer.calls)
}

func TestDocQAAnswersFromPassages(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{response: "the report says revenue grew"}
	retriever := &fakeRetriever{passages: []string{"revenue grew 10% in Q3"}}
	svc, _ := newTestAgent(router.RouteDocQA, completer, retriever)

	reply, err := svc.Respond(ctx, "alice", "what does my report say?")
	require.NoError(t, err)
	assert.Equal(t, "the report says revenue grew", reply)
	assert.Equal(t, 1, completer.calls)
}

func TestRetrieverFailureDegradesToErrorReply(t *testing.T) {
	ctx := context.Background()
	retriever := &fakeRetriever{err: errors.New("index unavailable")}
	svc, memory := newTestAgent(router.RouteDocQA, &fakeCompleter{}, retriever)

	reply, err := svc.Respond(ctx, "alice", "what does my report say?")
	require.NoError(t, err)
	assert.Equal(t, ErrorReply, reply)

	turns, err := memory.Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 1)
}

func TestSequentialTurnsAccumulate(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{response: "answer"}
	svc, memory := newTestAgent(router.RouteGeneralQA, completer, &fakeRetriever{})

	_, err := svc.Respond(ctx, "alice", "first")
	require.NoError(t, err)
	_, err = svc.Respond(ctx, "alice", "second")
	require.NoError(t, err)

	turns, err := memory.Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].UserInput)
	assert.Equal(t, "second", turns[1].UserInput)
}
