package admin

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// VerifyRequest is the body of POST /verify. At most one of Name, Glob and
// Regexp may be set; none matches any name.
type VerifyRequest struct {
	Name   string `json:"name,omitempty"`
	Glob   string `json:"glob,omitempty"`
	Regexp string `json:"regexp,omitempty"`
	Type   string `json:"type,omitempty"`

	Value *float64 `json:"value,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Expr  string   `json:"expr,omitempty"`

	Tags       []string `json:"tags,omitempty"`
	SampleRate *float64 `json:"sampleRate,omitempty"`

	// Mode is await (default), absent or count.
	Mode string `json:"mode,omitempty"`
	// Count is the number of records required in count mode.
	Count int `json:"count,omitempty"`
	// Timeout is a Go duration such as "500ms". Empty uses the server
	// default; in absent mode it is the quiet period.
	Timeout string `json:"timeout,omitempty"`
}

// Matcher builds the statsd.Matcher the request describes.
func (req *VerifyRequest) Matcher() (*statsd.Matcher, error) {
	var m *statsd.Matcher
	set := 0
	for _, s := range []string{req.Name, req.Glob, req.Regexp} {
		if s != "" {
			set++
		}
	}
	if set > 1 {
		return nil, errors.New("only one of name, glob and regexp may be set")
	}

	switch {
	case req.Name != "":
		m = statsd.Name(req.Name)
	case req.Glob != "":
		m = statsd.NameGlob(req.Glob)
	case req.Regexp != "":
		m = statsd.NameRegexp(req.Regexp)
	default:
		m = statsd.AnyName()
	}

	if req.Type != "" {
		t, err := statsd.ParseType(req.Type)
		if err != nil {
			return nil, err
		}
		m.OfType(t)
	}

	if req.Value != nil {
		m.WithValue(*req.Value)
	}
	switch {
	case req.Min != nil && req.Max != nil:
		m.WithValueBetween(*req.Min, *req.Max)
	case req.Min != nil:
		lo := *req.Min
		m.WithValueFunc(">= "+strconv.FormatFloat(lo, 'g', -1, 64), func(v float64) bool { return v >= lo })
	case req.Max != nil:
		hi := *req.Max
		m.WithValueFunc("<= "+strconv.FormatFloat(hi, 'g', -1, 64), func(v float64) bool { return v <= hi })
	}
	if req.Expr != "" {
		m.WithValueExpr(req.Expr)
	}

	if len(req.Tags) > 0 {
		m.WithTags(req.Tags...)
	}
	if req.SampleRate != nil {
		m.WithSampleRate(*req.SampleRate)
	}

	if err := m.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// timeout parses Timeout, returning 0 for the server default.
func (req *VerifyRequest) timeout() (time.Duration, error) {
	if req.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(req.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", req.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", req.Timeout)
	}
	if d > MaxVerifyTimeout {
		return 0, fmt.Errorf("timeout %s exceeds maximum %s", d, MaxVerifyTimeout)
	}
	return d, nil
}

func (req *VerifyRequest) validate() error {
	switch req.Mode {
	case "", statsd.ModeAwait, statsd.ModeAbsent:
		if req.Count != 0 {
			return errors.New("count is only valid in count mode")
		}
	case statsd.ModeCount:
		if req.Count < 1 {
			return errors.New("count mode requires count >= 1")
		}
	default:
		return fmt.Errorf("unknown mode %q (want await, absent or count)", req.Mode)
	}
	return nil
}
