package overlay

import (
	"os"
	"unicode/utf8"
)

const (
	maxRunes = 96
	ellipsis = "…"
)

// Compose joins a title and an optional publish date into a single overlay
// line. The rune budget applies to the whole line; when it overflows, the
// title is cut and marked with an ellipsis while the date suffix always
// survives intact, even if that means the title shrinks to nothing.
func Compose(title, date string) string {
	suffix := ""
	if date != "" {
		suffix = " | " + date
	}

	if utf8.RuneCountInString(title)+utf8.RuneCountInString(suffix) <= maxRunes {
		return title + suffix
	}

	budget := maxRunes - utf8.RuneCountInString(suffix) - utf8.RuneCountInString(ellipsis)
	if budget < 0 {
		budget = 0
	}
	runes := []rune(title)
	if budget > len(runes) {
		budget = len(runes)
	}
	return string(runes[:budget]) + ellipsis + suffix
}

// Write replaces the overlay file contents in full. The transcoder watches
// the file and reloads it on change, so a plain overwrite is enough.
func Write(path, text string) error {
	return os.WriteFile(path, []byte(text), 0o644)
}
