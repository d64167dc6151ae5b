package stategraph

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// Helper node functions

// set returns a node that writes fixed updates.
func set(u Updates) NodeFunc {
	return func(ctx Context, s State) (Outcome, error) {
		return u, nil
	}
}

// noop changes nothing.
func noop(ctx Context, s State) (Outcome, error) {
	return nil, nil
}

// incrementInt returns a node that adds one to an int field.
func incrementInt(field string) NodeFunc {
	return func(ctx Context, s State) (Outcome, error) {
		n, _ := s.Int(field)
		return Updates{field: n + 1}, nil
	}
}

// makeFailingNode creates a node that returns the given error.
func makeFailingNode(err error) NodeFunc {
	return func(ctx Context, s State) (Outcome, error) {
		return nil, err
	}
}

// makePanicNode creates a node that panics with the given value.
func makePanicNode(value any) NodeFunc {
	return func(ctx Context, s State) (Outcome, error) {
		panic(value)
	}
}

// tracker records node executions from concurrent goroutines.
type tracker struct {
	mu    sync.Mutex
	calls []string
}

func (t *tracker) node(name string, u Updates) NodeFunc {
	return func(ctx Context, s State) (Outcome, error) {
		t.mu.Lock()
		t.calls = append(t.calls, name)
		t.mu.Unlock()
		return u, nil
	}
}

func (t *tracker) executed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// testCtx creates a simple test context with a discarding logger.
func testCtx() Context {
	return NewContext(context.Background(), WithLogger(slog.New(slog.NewTextHandler(discard{}, nil))))
}

// bufferedCtx creates a test context that logs JSON at debug level into buf.
func bufferedCtx(buf *bytes.Buffer) Context {
	h := slog.NewJSONHandler(&lockedWriter{w: buf}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewContext(context.Background(), WithLogger(slog.New(h)), WithRunID("test-run"))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// lockedWriter serializes writes from concurrently running nodes.
type lockedWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// mustCompile compiles g or panics; used where compilation is not under test.
func mustCompile(g *Graph) *CompiledGraph {
	cg, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return cg
}
