package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSemantic(t *testing.T) {
	assert.Equal(t, Major+"."+Minor+"."+Patch, Semantic())
}

func TestRevision(t *testing.T) {
	tests := []struct {
		name     string
		settings []debug.BuildSetting
		want     string
	}{
		{"none", nil, ""},
		{"short", []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}}, " (abc123)"},
		{
			"truncated dirty",
			[]debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.modified", Value: "true"},
			},
			" (0123456789ab-dirty)",
		},
		{"modified only", []debug.BuildSetting{{Key: "vcs.modified", Value: "true"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, revision(tt.settings))
		})
	}
}
