package matching

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchName(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		metric    string
		wantScore int
	}{
		{name: "exact", pattern: "api.requests", metric: "api.requests", wantScore: ScoreNameExact},
		{name: "exact mismatch", pattern: "api.requests", metric: "api.errors", wantScore: 0},
		{name: "star spans dots", pattern: "api.*", metric: "api.requests.count", wantScore: ScoreNameGlob},
		{name: "question mark", pattern: "api.request?", metric: "api.requests", wantScore: ScoreNameGlob},
		{name: "alternation", pattern: "api.{requests,errors}", metric: "api.errors", wantScore: ScoreNameGlob},
		{name: "glob mismatch", pattern: "db.*", metric: "api.requests", wantScore: 0},
		{name: "empty pattern", pattern: "", metric: "api.requests", wantScore: 0},
		{name: "invalid glob", pattern: "api.[", metric: "api.[", wantScore: ScoreNameExact},
		{name: "invalid glob never matches others", pattern: "api.[", metric: "api.x", wantScore: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantScore, MatchName(tt.pattern, tt.metric))
		})
	}
}

func TestMatchNamePattern(t *testing.T) {
	re := regexp.MustCompile(`^api\.(requests|errors)$`)
	assert.Equal(t, ScoreNamePattern, MatchNamePattern(re, "api.errors"))
	assert.Equal(t, 0, MatchNamePattern(re, "api.latency"))
	assert.Equal(t, 0, MatchNamePattern(nil, "api.errors"))
}

func TestIsGlob(t *testing.T) {
	assert.True(t, IsGlob("api.*"))
	assert.True(t, IsGlob("api.{a,b}"))
	assert.False(t, IsGlob("api.requests"))
}

func TestValidateGlob(t *testing.T) {
	assert.NoError(t, ValidateGlob("api.*"))
	assert.Error(t, ValidateGlob("api.["))
}
