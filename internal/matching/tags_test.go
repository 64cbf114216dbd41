package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingTags(t *testing.T) {
	tests := []struct {
		name string
		have []string
		want []string
		miss []string
	}{
		{name: "nothing wanted", have: []string{"env:prod"}, want: nil, miss: nil},
		{name: "subset", have: []string{"env:prod", "region:us"}, want: []string{"region:us"}, miss: nil},
		{name: "missing one", have: []string{"env:prod"}, want: []string{"env:prod", "region:us"}, miss: []string{"region:us"}},
		{name: "multiset needs duplicates", have: []string{"shard:1"}, want: []string{"shard:1", "shard:1"}, miss: []string{"shard:1"}},
		{name: "duplicates present", have: []string{"shard:1", "shard:1"}, want: []string{"shard:1", "shard:1"}, miss: nil},
		{name: "empty have", have: nil, want: []string{"bare"}, miss: []string{"bare"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.miss, MissingTags(tt.have, tt.want))
			assert.Equal(t, tt.miss == nil, ContainsTags(tt.have, tt.want))
		})
	}
}
