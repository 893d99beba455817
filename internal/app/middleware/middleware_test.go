package middleware_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donateo/internal/app/commands"
	"donateo/internal/app/middleware"
	"donateo/internal/app/queries"
)

type echoCommand struct {
	actor string
	text  string
	key   string
}

func (c echoCommand) Key() string   { return "test.echo" }
func (c echoCommand) Actor() string { return c.actor }

func (c echoCommand) Validate() error {
	if c.text == "" {
		return errInvalid
	}
	return nil
}

func (c echoCommand) IdempotencyKey() string { return c.key }
func (c echoCommand) ResultPrototype() any   { return new(echoResult) }

type echoResult struct {
	Text  string
	Calls int
}

type echoQuery struct{ actor string }

func (q echoQuery) Key() string   { return "test.query" }
func (q echoQuery) Actor() string { return q.actor }

var errInvalid = errors.New("text required")

type mapStore struct {
	mu    sync.Mutex
	items map[string]middleware.IdempotencyRecord
}

func (s *mapStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

func newEchoBus(t *testing.T, fail *bool) (commands.Bus, *int) {
	t.Helper()
	calls := 0
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[echoCommand, echoResult](bus, "test.echo",
		commands.HandlerFunc[echoCommand, echoResult](func(_ context.Context, cmd echoCommand) (echoResult, error) {
			calls++
			if fail != nil && *fail {
				return echoResult{}, errors.New("boom")
			}
			return echoResult{Text: cmd.text, Calls: calls}, nil
		}))
	store := &mapStore{items: map[string]middleware.IdempotencyRecord{}}
	return middleware.ChainCommands(bus,
		middleware.Logging(nil),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Validation(middleware.SelfValidation{}),
		middleware.Idempotency(store, nil),
	), &calls
}

func TestCommandPipelineOrder(t *testing.T) {
	bus, calls := newEchoBus(t, nil)
	ctx := context.Background()

	_, err := commands.Dispatch[echoCommand, echoResult](ctx, bus, echoCommand{text: ""})
	assert.ErrorIs(t, err, middleware.ErrUnauthenticated)

	_, err = commands.Dispatch[echoCommand, echoResult](ctx, bus, echoCommand{actor: "u1"})
	assert.ErrorIs(t, err, errInvalid)
	assert.Zero(t, *calls)

	res, err := commands.Dispatch[echoCommand, echoResult](ctx, bus, echoCommand{actor: "u1", text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, echoResult{Text: "hi", Calls: 1}, res)
}

func TestIdempotencyReplaysStoredResult(t *testing.T) {
	bus, calls := newEchoBus(t, nil)
	ctx := context.Background()
	cmd := echoCommand{actor: "u1", text: "hi", key: "k1"}

	first, err := commands.Dispatch[echoCommand, echoResult](ctx, bus, cmd)
	require.NoError(t, err)
	again, err := commands.Dispatch[echoCommand, echoResult](ctx, bus, cmd)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, 1, *calls)

	_, err = commands.Dispatch[echoCommand, echoResult](ctx, bus, echoCommand{actor: "u1", text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
}

func TestIdempotencyForgetsFailures(t *testing.T) {
	fail := true
	bus, calls := newEchoBus(t, &fail)
	ctx := context.Background()
	cmd := echoCommand{actor: "u1", text: "hi", key: "k1"}

	_, err := commands.Dispatch[echoCommand, echoResult](ctx, bus, cmd)
	require.Error(t, err)

	fail = false
	res, err := commands.Dispatch[echoCommand, echoResult](ctx, bus, cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Calls)
	assert.Equal(t, 2, *calls)
}

func TestQueryPipeline(t *testing.T) {
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler[echoQuery, string](bus, "test.query",
		queries.HandlerFunc[echoQuery, string](func(_ context.Context, q echoQuery) (string, error) {
			return "hello " + q.actor, nil
		}))
	chained := middleware.ChainQueries(bus,
		middleware.QueryAuthorization(middleware.RequireActor{}),
		middleware.QueryValidation(middleware.SelfValidation{}),
	)

	_, err := queries.Ask[echoQuery, string](context.Background(), chained, echoQuery{actor: "  "})
	assert.ErrorIs(t, err, middleware.ErrUnauthenticated)

	out, err := queries.Ask[echoQuery, string](context.Background(), chained, echoQuery{actor: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "hello u1", out)
}

func TestMiddlewareConstructorsRequireDependencies(t *testing.T) {
	assert.Panics(t, func() { middleware.Authorization(nil) })
	assert.Panics(t, func() { middleware.Validation(nil) })
	assert.Panics(t, func() { middleware.Idempotency(nil, nil) })
}

func TestIdempotencySerialisesSameKey(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	release := make(chan struct{})
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[echoCommand, echoResult](bus, "test.echo",
		commands.HandlerFunc[echoCommand, echoResult](func(_ context.Context, cmd echoCommand) (echoResult, error) {
			<-release
			mu.Lock()
			defer mu.Unlock()
			calls++
			return echoResult{Text: cmd.text, Calls: calls}, nil
		}))
	chained := middleware.ChainCommands(bus, middleware.Idempotency(&mapStore{items: map[string]middleware.IdempotencyRecord{}}, nil))

	cmd := echoCommand{actor: "u1", text: "hi", key: "k1"}
	results := make([]echoResult, 6)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := commands.Dispatch[echoCommand, echoResult](context.Background(), chained, cmd)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, 1, calls)
	for _, res := range results {
		assert.Equal(t, echoResult{Text: "hi", Calls: 1}, res)
	}
}
