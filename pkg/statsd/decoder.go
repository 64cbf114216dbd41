package statsd

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DecodeResult is the outcome of decoding one datagram.
type DecodeResult struct {
	Records []Record
	// Invalid counts rejected non-empty lines.
	Invalid int
	Errors  []*LineError
}

// Decoder parses StatsD payloads. The zero value accepts every known type.
type Decoder struct {
	types map[MetricType]struct{}
}

// NewDecoder returns a decoder restricted to the given types.
// With no types it accepts all of AllTypes.
func NewDecoder(types ...MetricType) *Decoder {
	if len(types) == 0 {
		return &Decoder{}
	}
	d := &Decoder{types: make(map[MetricType]struct{}, len(types))}
	for _, t := range types {
		d.types[t] = struct{}{}
	}
	return d
}

// Supports reports whether the decoder accepts t.
func (d *Decoder) Supports(t MetricType) bool {
	if !t.Valid() {
		return false
	}
	if d == nil || d.types == nil {
		return true
	}
	_, ok := d.types[t]
	return ok
}

// Decode splits payload on newlines and parses every non-empty line.
// Bad lines are skipped and reported in the result; Decode never fails.
func (d *Decoder) Decode(payload []byte) DecodeResult {
	var res DecodeResult
	for len(payload) > 0 {
		var line []byte
		if i := bytes.IndexByte(payload, '\n'); i >= 0 {
			line, payload = payload[:i], payload[i+1:]
		} else {
			line, payload = payload, nil
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		rec, err := d.ParseLine(string(line))
		if err != nil {
			res.Invalid++
			res.Errors = append(res.Errors, &LineError{Line: string(line), Err: err})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// ParseLine parses a single line of the form
//
//	name:value|type[|@rate][|#tag1,tag2]
//
// DogStatsD container (c:), external env (e:), timestamp (T) and
// cardinality (card:) segments are accepted and ignored.
func (d *Decoder) ParseLine(line string) (Record, error) {
	name, rest, ok := strings.Cut(line, ":")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing ':'", ErrMalformedLine)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Record{}, ErrEmptyName
	}

	segments := strings.Split(rest, "|")
	if len(segments) < 2 {
		return Record{}, fmt.Errorf("%w: missing '|'", ErrMalformedLine)
	}

	rec := Record{
		Name:       name,
		Type:       MetricType(segments[1]),
		SampleRate: 1,
		Raw:        segments[0],
		Line:       line,
	}
	if !d.Supports(rec.Type) {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownType, segments[1])
	}

	if err := parseValue(&rec, segments[0]); err != nil {
		return Record{}, err
	}

	var sawRate, sawTags bool
	for _, seg := range segments[2:] {
		switch {
		case strings.HasPrefix(seg, "@"):
			if sawRate {
				return Record{}, fmt.Errorf("%w: duplicate sample rate", ErrMalformedLine)
			}
			sawRate = true
			rate, ok := parseNumber(seg[1:])
			if !ok || rate <= 0 || rate > 1 {
				return Record{}, fmt.Errorf("%w: %q", ErrInvalidSampleRate, seg[1:])
			}
			rec.SampleRate = rate
		case strings.HasPrefix(seg, "#"):
			if sawTags {
				return Record{}, fmt.Errorf("%w: duplicate tag segment", ErrMalformedLine)
			}
			sawTags = true
			rec.Tags = parseTags(seg[1:])
		case strings.HasPrefix(seg, "c:"), strings.HasPrefix(seg, "e:"), strings.HasPrefix(seg, "card:"):
		case strings.HasPrefix(seg, "T"):
			if _, err := strconv.ParseInt(seg[1:], 10, 64); err != nil {
				return Record{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedLine, seg)
			}
		default:
			return Record{}, fmt.Errorf("%w: unexpected segment %q", ErrMalformedLine, seg)
		}
	}

	return rec, nil
}

// ParseLine parses a single line accepting every known type.
func ParseLine(line string) (Record, error) {
	return (*Decoder)(nil).ParseLine(line)
}

// parseValue fills Value (and Delta for signed gauges). Set members may be
// any non-empty string; numeric members also populate Value.
func parseValue(rec *Record, raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidValue)
	}

	if rec.Type == Set {
		if v, ok := parseNumber(raw); ok {
			rec.Value = v
		}
		return nil
	}

	v, ok := parseNumber(raw)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidValue, raw)
	}
	rec.Value = v
	if rec.Type == Gauge && (raw[0] == '+' || raw[0] == '-') {
		rec.Delta = true
	}
	return nil
}

// parseNumber accepts plain decimal and exponent notation only. Go literal
// forms such as 1_000, 0x1p4, Inf and NaN are not StatsD values.
func parseNumber(raw string) (float64, bool) {
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; {
		case c >= '0' && c <= '9', c == '.', c == '+', c == '-', c == 'e', c == 'E':
		default:
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseTags(s string) []Tag {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]Tag, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		tags = append(tags, ParseTag(p))
	}
	return tags
}
