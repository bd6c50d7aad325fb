// Package segment splits recognized speech into translatable sentences.
package segment

import (
	"strings"
	"unicode/utf8"
)

const (
	// MinInputLen is the shortest trimmed input worth scanning.
	MinInputLen = 3
	// MinSentenceLen is exclusive: terminated candidates must be longer.
	MinSentenceLen = 5
	// MinTrailingLen is exclusive: an unterminated tail must be longer.
	MinTrailingLen = 10
)

// Terminators closes a sentence. Arabic full stop and question mark sit next
// to their Latin counterparts.
var Terminators = []rune{'۔', '؟', '!', '.', '?'}

// ExtractSentences scans text and returns every complete sentence in order.
// Short terminated fragments are dropped, as is a short unterminated tail.
func ExtractSentences(text string) []string {
	if runeLen(strings.TrimSpace(text)) < MinInputLen {
		return []string{}
	}

	sentences := make([]string, 0, 2)
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if !isTerminator(r) {
			continue
		}
		sentence := strings.TrimSpace(current.String())
		if runeLen(sentence) > MinSentenceLen {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	if tail := strings.TrimSpace(current.String()); runeLen(tail) > MinTrailingLen {
		sentences = append(sentences, tail)
	}
	return sentences
}

// Len reports the length used for every threshold in this package.
func Len(s string) int { return runeLen(s) }

func isTerminator(r rune) bool {
	for _, t := range Terminators {
		if r == t {
			return true
		}
	}
	return false
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
