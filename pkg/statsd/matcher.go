package statsd

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/getmockd/mockd-statsd/internal/matching"
)

type nameKind int

const (
	nameExact nameKind = iota
	nameGlob
	nameRegexp
)

type valueCheck struct {
	desc string
	fn   func(Record) bool
}

// Matcher describes the metric a test expects. Build one with Name,
// NameGlob or NameRegexp and refine it with the With* and type methods.
// Builder methods modify and return the receiver.
type Matcher struct {
	name   string
	kind   nameKind
	re     *regexp.Regexp
	typ    MetricType
	values []valueCheck
	tags   []string
	rate   float64
	err    error
}

// Name matches records whose name equals name exactly.
func Name(name string) *Matcher {
	m := &Matcher{name: name}
	if name == "" {
		m.setErr(ErrEmptyName)
	}
	return m
}

// NameGlob matches names against a glob such as "api.*.count".
func NameGlob(pattern string) *Matcher {
	m := &Matcher{name: pattern, kind: nameGlob}
	if err := matching.ValidateGlob(pattern); err != nil {
		m.setErr(fmt.Errorf("invalid name glob %q: %w", pattern, err))
	}
	return m
}

// NameRegexp matches names against a regular expression.
func NameRegexp(pattern string) *Matcher {
	m := &Matcher{name: pattern, kind: nameRegexp}
	re, err := regexp.Compile(pattern)
	if err != nil {
		m.setErr(fmt.Errorf("invalid name regexp %q: %w", pattern, err))
		return m
	}
	m.re = re
	return m
}

// AnyName matches every record.
func AnyName() *Matcher {
	return NameGlob("**")
}

func (m *Matcher) setErr(err error) {
	if m.err == nil {
		m.err = err
	}
}

// Err returns the first error recorded while building the matcher.
func (m *Matcher) Err() error {
	if m == nil {
		return errors.New("nil matcher")
	}
	return m.err
}

// OfType restricts matches to type t.
func (m *Matcher) OfType(t MetricType) *Matcher {
	if !t.Valid() {
		m.setErr(fmt.Errorf("%w: %q", ErrUnknownType, string(t)))
	}
	m.typ = t
	return m
}

// Counter is shorthand for OfType(Counter).
func (m *Matcher) Counter() *Matcher { return m.OfType(Counter) }

// Gauge is shorthand for OfType(Gauge).
func (m *Matcher) Gauge() *Matcher { return m.OfType(Gauge) }

// Timer is shorthand for OfType(Timer).
func (m *Matcher) Timer() *Matcher { return m.OfType(Timer) }

// Set is shorthand for OfType(Set).
func (m *Matcher) Set() *Matcher { return m.OfType(Set) }

// Histogram is shorthand for OfType(Histogram).
func (m *Matcher) Histogram() *Matcher { return m.OfType(Histogram) }

// Distribution is shorthand for OfType(Distribution).
func (m *Matcher) Distribution() *Matcher { return m.OfType(Distribution) }

// WithValue requires the value to equal v.
func (m *Matcher) WithValue(v float64) *Matcher {
	return m.WithValueFunc("= "+formatValue(v), func(x float64) bool { return x == v })
}

// WithValueBetween requires lo <= value <= hi.
func (m *Matcher) WithValueBetween(lo, hi float64) *Matcher {
	if lo > hi {
		m.setErr(fmt.Errorf("invalid value range [%v, %v]", lo, hi))
	}
	desc := fmt.Sprintf("in [%s, %s]", formatValue(lo), formatValue(hi))
	return m.WithValueFunc(desc, func(x float64) bool { return x >= lo && x <= hi })
}

// WithValueFunc requires fn(value) to return true. desc is shown in
// failure messages.
func (m *Matcher) WithValueFunc(desc string, fn func(float64) bool) *Matcher {
	if fn == nil {
		m.setErr(errors.New("nil value predicate"))
		return m
	}
	m.values = append(m.values, valueCheck{desc: desc, fn: func(r Record) bool { return fn(r.Value) }})
	return m
}

// WithValueExpr requires an expr-lang boolean expression to hold. The
// expression sees value, raw, name, type, rate and tags, for example
// `value > 100 && "env:prod" in tags`.
func (m *Matcher) WithValueExpr(expression string) *Matcher {
	program, err := expr.Compile(expression, expr.Env(exprEnv(Record{})), expr.AsBool())
	if err != nil {
		m.setErr(fmt.Errorf("compile %q: %w", expression, err))
		return m
	}
	m.values = append(m.values, valueCheck{
		desc: "expr " + expression,
		fn: func(r Record) bool {
			out, err := expr.Run(program, exprEnv(r))
			if err != nil {
				return false
			}
			ok, _ := out.(bool)
			return ok
		},
	})
	return m
}

func exprEnv(r Record) map[string]any {
	tags := r.TagStrings()
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"value": r.Value,
		"raw":   r.Raw,
		"name":  r.Name,
		"type":  string(r.Type),
		"rate":  r.SampleRate,
		"tags":  tags,
	}
}

// WithTag requires the tag key:value.
func (m *Matcher) WithTag(key, value string) *Matcher {
	m.tags = append(m.tags, Tag{Key: key, Value: value}.String())
	return m
}

// WithLabel requires the bare label.
func (m *Matcher) WithLabel(label string) *Matcher {
	m.tags = append(m.tags, label)
	return m
}

// WithTags requires each tag, given in wire form ("env:prod" or "label").
func (m *Matcher) WithTags(tags ...string) *Matcher {
	for _, t := range tags {
		if t == "" {
			m.setErr(errors.New("empty tag"))
			continue
		}
		m.tags = append(m.tags, t)
	}
	return m
}

// WithSampleRate requires the given sample rate.
func (m *Matcher) WithSampleRate(rate float64) *Matcher {
	if rate <= 0 || rate > 1 {
		m.setErr(fmt.Errorf("%w: %v", ErrInvalidSampleRate, rate))
	}
	m.rate = rate
	return m
}

func (m *Matcher) nameScore(name string) int {
	switch m.kind {
	case nameRegexp:
		return matching.MatchNamePattern(m.re, name)
	case nameGlob:
		return matching.MatchName(m.name, name)
	default:
		if m.name == name {
			return matching.ScoreNameExact
		}
		return 0
	}
}

// Matches reports whether r satisfies every constraint. A matcher with a
// build error matches nothing.
func (m *Matcher) Matches(r Record) bool {
	if m == nil || m.err != nil {
		return false
	}
	if m.nameScore(r.Name) == 0 {
		return false
	}
	if m.typ != "" && r.Type != m.typ {
		return false
	}
	if m.rate != 0 && r.SampleRate != m.rate {
		return false
	}
	if len(m.tags) > 0 && !matching.ContainsTags(r.TagStrings(), m.tags) {
		return false
	}
	for _, v := range m.values {
		if !v.fn(r) {
			return false
		}
	}
	return true
}

// breakdown scores every constraint against r for near-miss reporting.
func (m *Matcher) breakdown(r Record) *matching.Breakdown {
	b := &matching.Breakdown{}

	nameMax := matching.ScoreNameExact
	switch m.kind {
	case nameGlob:
		nameMax = matching.ScoreNameGlob
	case nameRegexp:
		nameMax = matching.ScoreNamePattern
	}
	b.Add("name", m.nameScore(r.Name) > 0, nameMax, m.nameDesc(), r.Name)

	if m.typ != "" {
		b.Add("type", r.Type == m.typ, matching.ScoreType, m.typ.String(), r.Type.String())
	}
	if len(m.tags) > 0 {
		missing := matching.MissingTags(r.TagStrings(), m.tags)
		b.Add("tags", len(missing) == 0, matching.ScoreTag*len(m.tags), missing, r.TagStrings())
	}
	for _, v := range m.values {
		b.Add("value", v.fn(r), matching.ScoreValue, v.desc, formatValue(r.Value))
	}
	if m.rate != 0 {
		b.Add("sampleRate", r.SampleRate == m.rate, matching.ScoreSampleRate, m.rate, r.SampleRate)
	}

	b.Finish()
	return b
}

func (m *Matcher) nameDesc() string {
	switch m.kind {
	case nameGlob:
		return "glob " + strconv.Quote(m.name)
	case nameRegexp:
		return "regexp " + strconv.Quote(m.name)
	default:
		return strconv.Quote(m.name)
	}
}

// String describes the matcher for failure messages.
func (m *Matcher) String() string {
	if m == nil {
		return "<nil matcher>"
	}
	parts := []string{"name " + m.nameDesc()}
	if m.typ != "" {
		parts = append(parts, "type "+m.typ.String())
	}
	for _, v := range m.values {
		parts = append(parts, "value "+v.desc)
	}
	if len(m.tags) > 0 {
		parts = append(parts, "tags ["+strings.Join(m.tags, ",")+"]")
	}
	if m.rate != 0 {
		parts = append(parts, "rate @"+strconv.FormatFloat(m.rate, 'g', -1, 64))
	}
	return strings.Join(parts, ", ")
}
