package statsd

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MetricType identifies a StatsD metric type by its wire token.
type MetricType string

// Supported metric types.
const (
	Counter      MetricType = "c"
	Gauge        MetricType = "g"
	Timer        MetricType = "ms"
	Set          MetricType = "s"
	Histogram    MetricType = "h"
	Distribution MetricType = "d"
)

// AllTypes lists every metric type the decoder understands, in wire order.
var AllTypes = []MetricType{Counter, Gauge, Timer, Set, Histogram, Distribution}

// String returns a readable name for the type.
func (t MetricType) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Timer:
		return "timer"
	case Set:
		return "set"
	case Histogram:
		return "histogram"
	case Distribution:
		return "distribution"
	default:
		return string(t)
	}
}

// Valid reports whether t is one of the known types.
func (t MetricType) Valid() bool {
	for _, k := range AllTypes {
		if t == k {
			return true
		}
	}
	return false
}

// ParseType accepts either the wire token ("c", "ms") or the readable name
// ("counter", "timer"), case-insensitively.
func ParseType(s string) (MetricType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range AllTypes {
		if s == string(t) || s == t.String() {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Tag is a DogStatsD tag. Bare labels have an empty Value and Bare set.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	Bare  bool   `json:"bare,omitempty"`
}

// ParseTag splits a tag on its first ':'. A tag without ':' is a bare label.
func ParseTag(s string) Tag {
	k, v, ok := strings.Cut(s, ":")
	if !ok {
		return Tag{Key: s, Bare: true}
	}
	return Tag{Key: k, Value: v}
}

// String returns the wire form of the tag.
func (t Tag) String() string {
	if t.Bare {
		return t.Key
	}
	return t.Key + ":" + t.Value
}

// Record is one decoded metric line. Records are values and are never
// modified after decoding.
type Record struct {
	Name       string     `json:"name"`
	Value      float64    `json:"value"`
	Delta      bool       `json:"delta,omitempty"`
	Type       MetricType `json:"type"`
	SampleRate float64    `json:"sampleRate"`
	Tags       []Tag      `json:"tags,omitempty"`

	// Sets carry arbitrary members; Raw keeps the value field as sent.
	Raw string `json:"raw"`

	ReceivedAt time.Time `json:"receivedAt"`
	Seq        uint64    `json:"seq"`
	Line       string    `json:"line"`
	Source     string    `json:"source,omitempty"`
}

// clone returns r with its own copy of Tags.
func (r Record) clone() Record {
	r.Tags = slices.Clone(r.Tags)
	return r
}

// IntValue returns Value truncated to an int64.
func (r Record) IntValue() int64 {
	return int64(r.Value)
}

// TagStrings returns the tags in wire form, preserving order.
func (r Record) TagStrings() []string {
	if len(r.Tags) == 0 {
		return nil
	}
	out := make([]string, len(r.Tags))
	for i, t := range r.Tags {
		out[i] = t.String()
	}
	return out
}

// HasTag reports whether the record carries the tag key:value.
func (r Record) HasTag(key, value string) bool {
	for _, t := range r.Tags {
		if !t.Bare && t.Key == key && t.Value == value {
			return true
		}
	}
	return false
}

// String renders the record in wire form, suitable for failure messages.
func (r Record) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	b.WriteByte(':')
	b.WriteString(r.valueString())
	b.WriteByte('|')
	b.WriteString(string(r.Type))
	if r.SampleRate != 0 && r.SampleRate != 1 {
		b.WriteString("|@")
		b.WriteString(strconv.FormatFloat(r.SampleRate, 'g', -1, 64))
	}
	if len(r.Tags) > 0 {
		b.WriteString("|#")
		b.WriteString(strings.Join(r.TagStrings(), ","))
	}
	return b.String()
}

func (r Record) valueString() string {
	if r.Type == Set && r.Raw != "" {
		return r.Raw
	}
	if r.Delta && r.Value >= 0 {
		return "+" + formatValue(r.Value)
	}
	return formatValue(r.Value)
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
