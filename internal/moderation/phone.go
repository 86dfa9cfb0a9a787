package moderation

import "regexp"

// Phone patterns are applied to the original, un-normalized text because
// Normalize folds digits into letters. They are compiled once and are safe
// for concurrent use. RE2's \d, \s and \b are ASCII-only, so the classes are
// spelled out in Unicode terms to catch fullwidth digits and no-break spaces.
var phonePatterns = []*regexp.Regexp{
	// (555) 555-5555, 555-555-5555, 555.555.5555, 555 555 5555
	regexp.MustCompile(`\(?\p{Nd}{3}\)?[\s\p{Z}.\-]?\p{Nd}{3}[\s\p{Z}.\-]?\p{Nd}{4}`),
	// Any run of 10 or more digits between word boundaries. This also catches
	// long order numbers and SKUs, which is accepted policy.
	regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])\p{Nd}{10,}(?:$|[^\p{L}\p{N}_])`),
}

// containsPhoneNumber reports whether text looks like it carries a phone number.
func containsPhoneNumber(text string) bool {
	for _, p := range phonePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
