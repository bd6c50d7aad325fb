// Package redact masks transcript text before it reaches the logs.
package redact

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// MaxRunes is how much of a transcript survives in logs while redaction is on.
const MaxRunes = 16

var enabled atomic.Bool

type rule struct {
	re   *regexp.Regexp
	mask string
}

// Contact details are masked before truncation. Phone digits may be Latin or
// Arabic-Indic.
var rules = []rule{
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\+?[0-9٠-٩][0-9٠-٩\s\-]{7,}[0-9٠-٩]`), "[REDACTED_PHONE]"},
}

func SetEnabled(v bool) { enabled.Store(v) }

func Enabled() bool { return enabled.Load() }

// Text returns in unchanged unless redaction is on.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := in
	for _, r := range rules {
		out = r.re.ReplaceAllString(out, r.mask)
	}
	n := utf8.RuneCountInString(out)
	if n <= MaxRunes {
		return out
	}
	cut := cutIndex(out, MaxRunes)
	if cut >= len(out) {
		return out
	}
	return out[:cut] + "…(+" + strconv.Itoa(n-utf8.RuneCountInString(out[:cut])) + ")"
}

var maskToken = regexp.MustCompile(`\[REDACTED_[A-Z]+\]`)

// cutIndex returns the byte offset after limit runes, moved past any mask the
// offset would otherwise split.
func cutIndex(s string, limit int) int {
	cut := len(s)
	runes := 0
	for i := range s {
		if runes == limit {
			cut = i
			break
		}
		runes++
	}
	for _, span := range maskToken.FindAllStringIndex(s, -1) {
		if span[0] < cut && cut < span[1] {
			return span[1]
		}
	}
	return cut
}

// String is slog.String with the value passed through Text.
func String(key, text string) slog.Attr {
	return slog.String(key, Text(text))
}
