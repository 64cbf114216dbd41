package statsd

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Record
	}{
		{
			name: "counter",
			line: "requests.count:1|c",
			want: Record{Name: "requests.count", Value: 1, Type: Counter, SampleRate: 1, Raw: "1"},
		},
		{
			name: "counter with rate and tags",
			line: "requests.count:3|c|@0.5|#env:test,canary",
			want: Record{
				Name: "requests.count", Value: 3, Type: Counter, SampleRate: 0.5, Raw: "3",
				Tags: []Tag{{Key: "env", Value: "test"}, {Key: "canary", Bare: true}},
			},
		},
		{
			name: "tags before rate",
			line: "api.latency:12.5|ms|#region:us|@0.1",
			want: Record{
				Name: "api.latency", Value: 12.5, Type: Timer, SampleRate: 0.1, Raw: "12.5",
				Tags: []Tag{{Key: "region", Value: "us"}},
			},
		},
		{
			name: "absolute gauge",
			line: "queue.depth:42|g",
			want: Record{Name: "queue.depth", Value: 42, Type: Gauge, SampleRate: 1, Raw: "42"},
		},
		{
			name: "gauge delta",
			line: "queue.depth:-3|g",
			want: Record{Name: "queue.depth", Value: -3, Delta: true, Type: Gauge, SampleRate: 1, Raw: "-3"},
		},
		{
			name: "gauge positive delta",
			line: "queue.depth:+2|g",
			want: Record{Name: "queue.depth", Value: 2, Delta: true, Type: Gauge, SampleRate: 1, Raw: "+2"},
		},
		{
			name: "set with string member",
			line: "users.unique:alice|s",
			want: Record{Name: "users.unique", Type: Set, SampleRate: 1, Raw: "alice"},
		},
		{
			name: "histogram",
			line: "payload.size:512|h",
			want: Record{Name: "payload.size", Value: 512, Type: Histogram, SampleRate: 1, Raw: "512"},
		},
		{
			name: "distribution",
			line: "render.time:0.25|d",
			want: Record{Name: "render.time", Value: 0.25, Type: Distribution, SampleRate: 1, Raw: "0.25"},
		},
		{
			name: "tag value containing colon",
			line: "x:1|c|#url:http://host",
			want: Record{Name: "x", Value: 1, Type: Counter, SampleRate: 1, Raw: "1", Tags: []Tag{{Key: "url", Value: "http://host"}}},
		},
		{
			name: "dogstatsd extension segments ignored",
			line: "x:1|c|#a:b|c:abc123|T1700000000|card:low|e:it-false,cn-x",
			want: Record{Name: "x", Value: 1, Type: Counter, SampleRate: 1, Raw: "1", Tags: []Tag{{Key: "a", Value: "b"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			require.NoError(t, err)
			tt.want.Line = tt.line
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_Errors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"no-colon", ErrMalformedLine},
		{":1|c", ErrEmptyName},
		{"x:1", ErrMalformedLine},
		{"x:abc|c", ErrInvalidValue},
		{"x:|c", ErrInvalidValue},
		{"x:NaN|g", ErrInvalidValue},
		{"x:Inf|ms", ErrInvalidValue},
		{"x:1_000|c", ErrInvalidValue},
		{"x:0x1p4|g", ErrInvalidValue},
		{"x:0x10|ms", ErrInvalidValue},
		{"x:1|c|@0_5", ErrInvalidSampleRate},
		{"x:1|q", ErrUnknownType},
		{"x:1|", ErrUnknownType},
		{"x:1|c|@0", ErrInvalidSampleRate},
		{"x:1|c|@1.5", ErrInvalidSampleRate},
		{"x:1|c|@abc", ErrInvalidSampleRate},
		{"x:1|c|@0.5|@0.5", ErrMalformedLine},
		{"x:1|c|#a|#b", ErrMalformedLine},
		{"x:1|c|junk", ErrMalformedLine},
		{"x:1|c|Tnow", ErrMalformedLine},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestDecode_MultiLine(t *testing.T) {
	payload := []byte("a:1|c\r\nbad line\n\n  b:2|g  \nc:x|ms\nd:3|h")

	res := NewDecoder().Decode(payload)

	require.Len(t, res.Records, 3)
	assert.Equal(t, "a", res.Records[0].Name)
	assert.Equal(t, "b", res.Records[1].Name)
	assert.Equal(t, "d", res.Records[2].Name)
	assert.Equal(t, 2, res.Invalid)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "bad line", res.Errors[0].Line)
	assert.ErrorIs(t, res.Errors[1], ErrInvalidValue)
}

func TestDecode_Empty(t *testing.T) {
	res := NewDecoder().Decode(nil)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Invalid)

	res = NewDecoder().Decode([]byte("\n\n \n"))
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Invalid)
}

func TestDecoder_RestrictedTypes(t *testing.T) {
	d := NewDecoder(Counter, Gauge)

	res := d.Decode([]byte("a:1|c\nb:2|ms\nc:3|g"))

	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Invalid)
	assert.ErrorIs(t, res.Errors[0], ErrUnknownType)
	assert.False(t, d.Supports(Timer))
	assert.True(t, NewDecoder().Supports(Timer))
	assert.False(t, NewDecoder().Supports(MetricType("x")))
}

func TestParseType(t *testing.T) {
	for _, mt := range AllTypes {
		got, err := ParseType(string(mt))
		require.NoError(t, err)
		assert.Equal(t, mt, got)

		got, err = ParseType(strings.ToUpper(mt.String()))
		require.NoError(t, err)
		assert.Equal(t, mt, got)
	}

	_, err := ParseType("meter")
	assert.ErrorIs(t, err, ErrUnknownType)
}

var (
	nameGen   = rapid.StringMatching(`[a-z][a-z0-9_]{0,8}(\.[a-z0-9_]{1,8}){0,3}`)
	tagGen    = rapid.StringMatching(`[a-z]{1,6}(:[a-z0-9_.\-/]{0,8})?`)
	memberGen = rapid.StringMatching(`[a-z0-9]{1,10}`)
)

// A line assembled from valid components decodes back into those components.
func TestParseLine_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := nameGen.Draw(t, "name")
		typ := rapid.SampledFrom(AllTypes).Draw(t, "type")
		tags := rapid.SliceOfN(tagGen, 0, 5).Draw(t, "tags")
		rate := rapid.SampledFrom([]float64{0, 0.01, 0.1, 0.25, 0.5, 1}).Draw(t, "rate")

		var raw string
		var value float64
		if typ == Set {
			raw = memberGen.Draw(t, "member")
			if v, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
				value = v
			}
		} else {
			n := rapid.IntRange(-100000, 100000).Draw(t, "value")
			raw = strconv.Itoa(n)
			value = float64(n)
		}

		line := name + ":" + raw + "|" + string(typ)
		if rate != 0 {
			line += "|@" + strconv.FormatFloat(rate, 'g', -1, 64)
		}
		if len(tags) > 0 {
			line += "|#" + strings.Join(tags, ",")
		}

		rec, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q): %v", line, err)
		}

		wantRate := rate
		if wantRate == 0 {
			wantRate = 1
		}
		if rec.Name != name || rec.Type != typ || rec.Raw != raw || rec.Value != value || rec.SampleRate != wantRate {
			t.Fatalf("ParseLine(%q) = %+v", line, rec)
		}
		if typ == Gauge && rec.Delta != strings.HasPrefix(raw, "-") {
			t.Fatalf("gauge delta flag wrong for %q", line)
		}
		got := rec.TagStrings()
		if len(got) != len(tags) {
			t.Fatalf("tags = %v, want %v", got, tags)
		}
		for i := range tags {
			if got[i] != tags[i] {
				t.Fatalf("tags = %v, want %v", got, tags)
			}
		}
	})
}

// Garbage lines never panic and never hide good lines in the same payload.
func TestDecode_MalformedDoesNotPoisonPayload(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		junk := rapid.StringMatching(`[^\n]{0,40}`).Draw(t, "junk")
		payload := "good.before:1|c\n" + junk + "\ngood.after:2|g"

		res := NewDecoder().Decode([]byte(payload))

		names := make(map[string]bool)
		for _, r := range res.Records {
			names[r.Name] = true
		}
		if !names["good.before"] || !names["good.after"] {
			t.Fatalf("good lines lost for junk %q: %+v", junk, res.Records)
		}
		if len(res.Records)+res.Invalid > 3 {
			t.Fatalf("more outcomes than lines for junk %q", junk)
		}
	})
}
