package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getmockd/mockd-statsd/internal/matching"
	"github.com/getmockd/mockd-statsd/pkg/logging"
	"github.com/getmockd/mockd-statsd/pkg/metrics"
)

// Verification modes.
const (
	ModeAwait  = "await"
	ModeAbsent = "absent"
	ModeCount  = "count"
)

const (
	// DefaultPollInterval bounds how long a waiter can miss an append
	// notification.
	DefaultPollInterval = 25 * time.Millisecond

	// DefaultNearMisses is how many near misses a failed Result carries.
	DefaultNearMisses = 3
)

// NearMiss is an observed record that partially satisfied a matcher.
type NearMiss struct {
	Record    Record              `json:"record"`
	Breakdown *matching.Breakdown `json:"breakdown"`
}

// Result is the outcome of a verification. A failed verification is a
// normal Result, not an error.
type Result struct {
	Passed     bool          `json:"passed"`
	Mode       string        `json:"mode"`
	Matcher    string        `json:"matcher"`
	Expected   int           `json:"expected,omitempty"`
	Matched    []Record      `json:"matched,omitempty"`
	Observed   []Record      `json:"observed"`
	NearMisses []NearMiss    `json:"nearMisses,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Message    string        `json:"message,omitempty"`
}

// String returns the result message, or "ok" for a passing result.
func (r Result) String() string {
	if r.Passed {
		return "ok"
	}
	return r.Message
}

// First returns the first matching record, if any.
func (r Result) First() (Record, bool) {
	if len(r.Matched) == 0 {
		return Record{}, false
	}
	return r.Matched[0], true
}

// Verifier waits on a Store for matchers to be satisfied.
type Verifier struct {
	store        *Store
	pollInterval time.Duration
	nearMisses   int
	log          *slog.Logger
	metrics      metrics.Collector
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithPollInterval sets the fallback poll interval.
func WithPollInterval(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.pollInterval = d
		}
	}
}

// WithNearMisses sets how many near misses failed results report.
func WithNearMisses(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.nearMisses = n
		}
	}
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(log *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if log != nil {
			v.log = log
		}
	}
}

// WithVerifierMetrics sets the telemetry collector.
func WithVerifierMetrics(c metrics.Collector) VerifierOption {
	return func(v *Verifier) {
		if c != nil {
			v.metrics = c
		}
	}
}

// NewVerifier creates a verifier reading from store.
func NewVerifier(store *Store, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		store:        store,
		pollInterval: DefaultPollInterval,
		nearMisses:   DefaultNearMisses,
		log:          logging.Nop(),
		metrics:      metrics.Noop{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Await waits until at least one record matches m, or timeout elapses or
// ctx is done. It returns as soon as a match exists.
func (v *Verifier) Await(ctx context.Context, m *Matcher, timeout time.Duration) Result {
	return v.AwaitCount(ctx, m, 1, timeout)
}

// AwaitCount waits until at least n records match m.
func (v *Verifier) AwaitCount(ctx context.Context, m *Matcher, n int, timeout time.Duration) Result {
	mode := ModeCount
	if n == 1 {
		mode = ModeAwait
	}
	if n < 1 {
		n = 1
	}

	start := time.Now()
	res := Result{Mode: mode, Matcher: m.String(), Expected: n}
	if err := m.Err(); err != nil {
		return v.finish(res, m, start, nil, "invalid matcher: "+err.Error())
	}

	done := func(matched []Record) bool { return len(matched) >= n }
	matched, cause := v.wait(ctx, m, timeout, done)
	if done(matched) {
		res.Passed = true
		res.Matched = matched
		return v.finish(res, m, start, nil, "")
	}

	res.Matched = matched
	snapshot := v.store.Snapshot()
	var msg string
	if n == 1 {
		msg = fmt.Sprintf("expected metric matching {%s} within %s, none received (%s)", res.Matcher, timeout, cause)
	} else {
		msg = fmt.Sprintf("expected %d metrics matching {%s} within %s, got %d (%s)", n, res.Matcher, timeout, len(matched), cause)
	}
	return v.finish(res, m, start, snapshot, msg)
}

// AwaitNone checks that no record matches m for the whole quiet period.
// It fails as soon as a match appears and passes only after the full
// period has elapsed without one.
func (v *Verifier) AwaitNone(ctx context.Context, m *Matcher, quiet time.Duration) Result {
	start := time.Now()
	res := Result{Mode: ModeAbsent, Matcher: m.String()}
	if err := m.Err(); err != nil {
		return v.finish(res, m, start, nil, "invalid matcher: "+err.Error())
	}

	matched, cause := v.wait(ctx, m, quiet, func(matched []Record) bool { return len(matched) > 0 })
	if len(matched) > 0 {
		res.Matched = matched
		msg := fmt.Sprintf("expected no metric matching {%s} for %s, received %d after %s",
			res.Matcher, quiet, len(matched), time.Since(start).Round(time.Millisecond))
		return v.finish(res, m, start, v.store.Snapshot(), msg)
	}
	if cause != causeTimeout {
		msg := fmt.Sprintf("could not confirm absence of {%s} for %s (%s)", res.Matcher, quiet, cause)
		return v.finish(res, m, start, v.store.Snapshot(), msg)
	}

	res.Passed = true
	return v.finish(res, m, start, nil, "")
}

const causeTimeout = "timed out"

// wait re-evaluates m whenever the store changes, and at least every poll
// interval, until done reports true, the timeout fires, or ctx ends. The
// final evaluation happens after the deadline so an append racing the
// timer is not missed.
func (v *Verifier) wait(ctx context.Context, m *Matcher, timeout time.Duration, done func([]Record) bool) ([]Record, string) {
	if ctx == nil {
		ctx = context.Background()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	for {
		changed := v.store.Changed()
		matched := v.store.Find(m)
		if done(matched) {
			return matched, ""
		}

		select {
		case <-changed:
		case <-ticker.C:
		case <-timer.C:
			return v.store.Find(m), causeTimeout
		case <-ctx.Done():
			return v.store.Find(m), ctx.Err().Error()
		}
	}
}

func (v *Verifier) finish(res Result, m *Matcher, start time.Time, snapshot []Record, msg string) Result {
	res.Elapsed = time.Since(start)
	if !res.Passed {
		res.Observed = snapshot
		if res.Observed == nil {
			res.Observed = []Record{}
		}
		if res.Mode != ModeAbsent {
			res.NearMisses = v.closest(m, snapshot)
		}
		res.Message = formatFailure(msg, res)
		v.log.Debug("verification failed", "mode", res.Mode, "matcher", res.Matcher, "observed", len(res.Observed))
	} else {
		v.log.Debug("verification passed", "mode", res.Mode, "matcher", res.Matcher, "elapsed", res.Elapsed)
	}
	v.metrics.VerificationCompleted(res.Mode, res.Passed, res.Elapsed)
	return res
}

// closest ranks observed records by how much of m they satisfy.
func (v *Verifier) closest(m *Matcher, snapshot []Record) []NearMiss {
	if m == nil || m.Err() != nil || len(snapshot) == 0 {
		return nil
	}
	candidates := make([]NearMiss, 0, len(snapshot))
	for _, r := range snapshot {
		candidates = append(candidates, NearMiss{Record: r, Breakdown: m.breakdown(r)})
	}
	return matching.TopN(candidates, v.nearMisses, func(nm NearMiss) *matching.Breakdown { return nm.Breakdown })
}

func formatFailure(head string, res Result) string {
	var b strings.Builder
	b.WriteString(head)

	if len(res.Observed) == 0 {
		b.WriteString("\nobserved: no metrics received")
	} else {
		fmt.Fprintf(&b, "\nobserved %d metric(s):", len(res.Observed))
		for _, r := range res.Observed {
			b.WriteString("\n  ")
			b.WriteString(r.String())
		}
	}

	if len(res.NearMisses) > 0 {
		b.WriteString("\nclosest:")
		for _, nm := range res.NearMisses {
			fmt.Fprintf(&b, "\n  %s (%d%%): %s", nm.Record.String(), nm.Breakdown.MatchPercentage, nm.Breakdown.Reason)
		}
	}
	return b.String()
}
