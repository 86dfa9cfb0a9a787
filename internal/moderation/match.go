package moderation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// matches reports whether phrase occurs in the normalized text. Multi-word
// phrases are plain substrings; single tokens must not touch another letter or
// digit on either side.
func matches(normalized, phrase string) bool {
	if phrase == "" {
		return false
	}
	if strings.Contains(phrase, " ") {
		return strings.Contains(normalized, phrase)
	}
	return containsToken(normalized, phrase)
}

func containsToken(text, token string) bool {
	offset := 0
	for {
		i := strings.Index(text[offset:], token)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(token)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		// Resume one rune past this occurrence's start to catch overlaps.
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// hasSafeContext reports whether the normalized text contains any benign
// context phrase (toy, nerf, costume, ...) that excuses a weapon term.
func (f *Filter) hasSafeContext(normalized string) bool {
	return f.sets.SafeContext.anyMatch(normalized)
}
