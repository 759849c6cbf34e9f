package domain

import (
	"regexp"
	"strings"
)

const (
	// MaxNameLength caps sanitized names so they stay well inside
	// filesystem filename limits
	MaxNameLength = 200

	// FallbackName is used when sanitization leaves nothing usable
	FallbackName = "untitled"
)

var (
	reservedChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	multiSpace    = regexp.MustCompile(` {2,}`)
	multiDot      = regexp.MustCompile(`\.{2,}`)
)

// SanitizeName derives a filesystem-safe name from raw metadata text.
// The result contains no reserved characters, no run of consecutive spaces
// or dots, is at most MaxNameLength characters long and is never empty.
func SanitizeName(raw string) string {
	name := reservedChars.ReplaceAllString(raw, "")
	name = controlChars.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	name = multiDot.ReplaceAllString(name, ".")
	name = strings.Trim(name, " .")

	if runes := []rune(name); len(runes) > MaxNameLength {
		name = strings.Trim(string(runes[:MaxNameLength]), " .")
	}

	if name == "" {
		return FallbackName
	}
	return name
}
