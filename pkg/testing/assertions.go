package testing

import (
	"context"
	"testing"
	"time"

	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// AssertReceived asserts that a metric matching matcher arrives within the
// default timeout.
func (m *MockStatsD) AssertReceived(t testing.TB, matcher *statsd.Matcher) statsd.Result {
	t.Helper()
	return m.Expect(matcher).ToArrive(t)
}

// AssertReceivedTimes asserts that at least n matching metrics arrive
// within the default timeout.
func (m *MockStatsD) AssertReceivedTimes(t testing.TB, matcher *statsd.Matcher, n int) statsd.Result {
	t.Helper()
	return m.Expect(matcher).Times(n).ToArrive(t)
}

// AssertNotReceived asserts that no matching metric arrives during the
// default quiet period.
func (m *MockStatsD) AssertNotReceived(t testing.TB, matcher *statsd.Matcher) statsd.Result {
	t.Helper()
	return m.Expect(matcher).NotToArrive(t)
}

// AssertCall asserts that the raw datagram msg was received, and consumes it.
func (m *MockStatsD) AssertCall(t testing.TB, msg string) {
	t.Helper()

	timeout := m.server.Config().DefaultTimeout
	deadline := time.Now().Add(timeout)
	for {
		err := m.server.VerifyCall(msg)
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Errorf("%v\nreceived calls: %q", err, m.server.Calls())
			return
		}
		time.Sleep(statsd.DefaultPollInterval)
	}
}

// AssertNoCall asserts that msg is not among the unconsumed datagrams.
func (m *MockStatsD) AssertNoCall(t testing.TB, msg string) {
	t.Helper()

	if err := m.server.VerifyNoMoreCalls(msg); err != nil {
		t.Errorf("%v", err)
	}
}

// AssertValue asserts that the aggregated value of the named series reaches
// want within the default timeout.
func (m *MockStatsD) AssertValue(t testing.TB, name string, want float64, tags ...string) {
	t.Helper()

	timeout := m.server.Config().DefaultTimeout
	deadline := time.Now().Add(timeout)
	for {
		got, ok := m.server.Value(name, tags...)
		if ok && got == want {
			return
		}
		if time.Now().After(deadline) {
			if !ok {
				t.Errorf("expected %s%v = %v, but no such series was received", name, tags, want)
			} else {
				t.Errorf("expected %s%v = %v, got %v", name, tags, want, got)
			}
			return
		}
		time.Sleep(statsd.DefaultPollInterval)
	}
}

// Expectation is a fluent verification builder returned by Expect.
type Expectation struct {
	mock    *MockStatsD
	matcher *statsd.Matcher
	within  time.Duration
	times   int
	ctx     context.Context
}

// Expect starts an expectation for matcher.
func (m *MockStatsD) Expect(matcher *statsd.Matcher) *Expectation {
	return &Expectation{mock: m, matcher: matcher, times: 1, ctx: context.Background()}
}

// Within sets how long to wait. For NotToArrive it is the quiet period.
func (e *Expectation) Within(d time.Duration) *Expectation {
	e.within = d
	return e
}

// Times requires at least n matching metrics.
func (e *Expectation) Times(n int) *Expectation {
	e.times = n
	return e
}

// WithContext bounds the wait by ctx as well.
func (e *Expectation) WithContext(ctx context.Context) *Expectation {
	e.ctx = ctx
	return e
}

// ToArrive waits for the expected metrics and reports a failure on t.
func (e *Expectation) ToArrive(t testing.TB) statsd.Result {
	t.Helper()

	var res statsd.Result
	if e.times > 1 {
		res = e.mock.server.VerifyCount(e.ctx, e.matcher, e.times, e.within)
	} else {
		res = e.mock.server.Verify(e.ctx, e.matcher, e.within)
	}
	if !res.Passed {
		t.Errorf("%s", res.Message)
	}
	return res
}

// NotToArrive checks that no matching metric arrives for the period and
// reports a failure on t.
func (e *Expectation) NotToArrive(t testing.TB) statsd.Result {
	t.Helper()

	res := e.mock.server.VerifyNoMetric(e.ctx, e.matcher, e.within)
	if !res.Passed {
		t.Errorf("%s", res.Message)
	}
	return res
}
