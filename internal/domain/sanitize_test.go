package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain name", "My Favorite Track", "My Favorite Track"},
		{"reserved characters", `a/b\c:d*e?f"g<h>i|j`, "abcdefghij"},
		{"consecutive spaces", "too   many    spaces", "too many spaces"},
		{"consecutive dots", "track...final..mix", "track.final.mix"},
		{"leading and trailing junk", "  ..track..  ", "track"},
		{"control characters", "bad\x00name\x1f", "badname"},
		{"only reserved characters", `\/:*?"<>|`, FallbackName},
		{"empty input", "", FallbackName},
		{"whitespace only", "    ", FallbackName},
		{"unicode preserved", "Träck Nämé ☂", "Träck Nämé ☂"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeName(tt.input))
		})
	}
}

func TestSanitizeName_LengthCap(t *testing.T) {
	long := strings.Repeat("x", 500)
	out := SanitizeName(long)
	assert.Len(t, []rune(out), MaxNameLength)
}

func TestSanitizeName_Invariants(t *testing.T) {
	inputs := []string{
		"normal title",
		strings.Repeat("a b..c/d ", 60),
		`<<<>>>|||???`,
		"....    ....",
		strings.Repeat(".", 300),
		"mixed " + strings.Repeat("~", 250) + ` \ / end`,
	}

	for _, input := range inputs {
		out := SanitizeName(input)

		assert.NotEmpty(t, out)
		assert.LessOrEqual(t, len([]rune(out)), MaxNameLength)
		assert.NotContains(t, out, "  ")
		assert.NotContains(t, out, "..")
		for _, c := range `\/:*?"<>|` {
			assert.NotContains(t, out, string(c))
		}
	}
}
