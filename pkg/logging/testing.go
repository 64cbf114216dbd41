package logging

import (
	"bytes"
	"log/slog"
	"sync"
)

// TB is the subset of testing.TB used by ForTest.
type TB interface {
	Helper()
	Log(args ...any)
	Cleanup(func())
}

// ForTest returns a logger that writes each record through t.Log, so
// output is attached to the test that produced it. Records emitted after
// the test finishes are dropped.
func ForTest(t TB, level Level) *slog.Logger {
	w := &testWriter{t: t}
	t.Cleanup(w.stop)
	return slog.New(newHandler(w, FormatText, level))
}

type testWriter struct {
	mu   sync.Mutex
	t    TB
	done bool
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.done {
		w.t.Helper()
		w.t.Log(string(bytes.TrimRight(p, "\n")))
	}
	return len(p), nil
}

func (w *testWriter) stop() {
	w.mu.Lock()
	w.done = true
	w.mu.Unlock()
}
