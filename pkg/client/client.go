// Package client is a StatsD sender for exercising the mock server, built
// on the unbuffered cactus client. Each call writes one datagram and
// client-side sampling is disabled, so every call reaches the server.
package client

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"
)

// ErrInvalidTag is returned for tags that are not key:value pairs.
var ErrInvalidTag = errors.New("tag must be key:value")

// Client sends StatsD lines over UDP. It is safe for concurrent use.
type Client struct {
	sender  statsd.Sender
	statter *statsd.Client
	prefix  string
	tags    []statsd.Tag
}

// Option configures a Client.
type Option func(*options)

type options struct {
	prefix string
	tags   []string
}

// WithPrefix prepends prefix to every metric name. No separator is added.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithTags adds key:value tags to every metric.
func WithTags(tags ...string) Option {
	return func(o *options) { o.tags = append(o.tags, tags...) }
}

// New resolves addr ("host:port") and opens a socket for it.
func New(addr string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	tags, err := ParseTags(o.tags...)
	if err != nil {
		return nil, err
	}

	sender, err := statsd.NewSimpleSender(addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	st, err := statsd.NewClientWithSender(sender, "", statsd.SuffixOctothorpe)
	if err != nil {
		_ = sender.Close()
		return nil, err
	}
	statter := st.(*statsd.Client)
	statter.SetSamplerFunc(func(float32) bool { return true })

	return &Client{sender: sender, statter: statter, prefix: o.prefix, tags: tags}, nil
}

// ParseTags converts "key:value" strings into cactus tags, splitting on the
// first ':'.
func ParseTags(tags ...string) ([]statsd.Tag, error) {
	out := make([]statsd.Tag, 0, len(tags))
	for _, t := range tags {
		k, v, ok := strings.Cut(t, ":")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTag, t)
		}
		out = append(out, statsd.Tag{k, v})
	}
	return out, nil
}

// Increment adds one to a counter.
func (c *Client) Increment(name string, tags ...string) error {
	return c.Count(name, 1, 1, tags...)
}

// Decrement subtracts one from a counter.
func (c *Client) Decrement(name string, tags ...string) error {
	return c.Count(name, -1, 1, tags...)
}

// Count adds delta to a counter at the given sample rate. A rate outside
// (0,1) omits the rate segment.
func (c *Client) Count(name string, delta int64, rate float64, tags ...string) error {
	t, err := c.allTags(tags)
	if err != nil {
		return err
	}
	return c.statter.Inc(c.prefix+name, delta, sampleRate(rate), t...)
}

// Timing records a duration in milliseconds.
func (c *Client) Timing(name string, d time.Duration, tags ...string) error {
	t, err := c.allTags(tags)
	if err != nil {
		return err
	}
	return c.statter.TimingDuration(c.prefix+name, d, 1, t...)
}

// Gauge sets a gauge to an absolute value. Negative values are sent as
// "0" followed by the value, so they are not read as a delta.
func (c *Client) Gauge(name string, value float64, tags ...string) error {
	t, err := c.allTags(tags)
	if err != nil {
		return err
	}
	if value < 0 {
		if err := c.statter.GaugeFloat(c.prefix+name, 0, 1, t...); err != nil {
			return err
		}
	}
	return c.statter.GaugeFloat(c.prefix+name, value, 1, t...)
}

// GaugeDelta adjusts a gauge by delta.
func (c *Client) GaugeDelta(name string, delta float64, tags ...string) error {
	t, err := c.allTags(tags)
	if err != nil {
		return err
	}
	return c.statter.GaugeFloatDelta(c.prefix+name, delta, 1, t...)
}

// Histogram records a histogram sample.
func (c *Client) Histogram(name string, value float64, tags ...string) error {
	return c.Metric(name, formatFloat(value), "h", 1, tags...)
}

// Distribution records a distribution sample.
func (c *Client) Distribution(name string, value float64, tags ...string) error {
	return c.Metric(name, formatFloat(value), "d", 1, tags...)
}

// Set adds member to a set.
func (c *Client) Set(name, member string, tags ...string) error {
	t, err := c.allTags(tags)
	if err != nil {
		return err
	}
	return c.statter.Set(c.prefix+name, member, 1, t...)
}

// Metric sends one line of any type from a preformatted value, for types
// the cactus client has no method for.
func (c *Client) Metric(name, value, typ string, rate float64, tags ...string) error {
	t, err := c.allTags(tags)
	if err != nil {
		return err
	}
	return c.statter.Raw(c.prefix+name, value+"|"+typ, sampleRate(rate), t...)
}

// Send writes raw as a single datagram, unmodified.
func (c *Client) Send(raw string) error {
	if _, err := c.sender.Send([]byte(raw)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.statter.Close()
}

func (c *Client) allTags(extra []string) ([]statsd.Tag, error) {
	if len(extra) == 0 {
		return c.tags, nil
	}
	t, err := ParseTags(extra...)
	if err != nil {
		return nil, err
	}
	return append(slices.Clip(c.tags), t...), nil
}

// sampleRate maps rates outside (0,1) to 1, which cactus leaves off the line.
func sampleRate(rate float64) float32 {
	if rate <= 0 || rate >= 1 {
		return 1
	}
	return float32(rate)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
