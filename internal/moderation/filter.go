// Package moderation provides the marketplace content filter. It screens
// listing text and chat messages for prohibited items, hate speech, scams and
// attempts to move a deal off-platform, and returns a verdict before the
// content reaches other users.
//
// The filter is deterministic and does no I/O. A Filter is immutable after
// construction and safe for concurrent use.
package moderation

import "strings"

// Filter classifies text against a fixed set of phrase lists.
type Filter struct {
	sets    Sets
	version string
}

// NewFilter creates a Filter with the default marketplace policy.
func NewFilter() *Filter {
	return NewFilterWithSets(DefaultSets())
}

// NewFilterWithSets creates a Filter from custom phrase sets. It is mostly
// useful in tests that need to isolate a single category.
func NewFilterWithSets(sets Sets) *Filter {
	return &Filter{sets: sets, version: sets.version()}
}

// Version identifies the phrase sets the filter was built from. Two filters
// with the same version always return the same verdicts.
func (f *Filter) Version() string { return f.version }

// CheckListing screens a listing's title and optional description.
//
// Categories are evaluated in precedence order and the first hit wins:
// prohibited_item, hate_speech, scam, contact_bypass phrases, then the phone
// number heuristic on the original text.
func (f *Filter) CheckListing(title, description string) Verdict {
	combined := title
	if description != "" {
		combined += " " + description
	}
	if strings.TrimSpace(combined) == "" {
		return Verdict{}
	}

	normalized := Normalize(combined)

	if term, ok := f.sets.Prohibited.firstMatch(normalized, f.excusedWeapon(normalized)); ok {
		return flagged(CategoryProhibitedItem, ReasonProhibitedItem, term)
	}
	if term, ok := f.sets.HateSpeech.firstMatch(normalized, nil); ok {
		return flagged(CategoryHateSpeech, ReasonHateSpeech, term)
	}
	if term, ok := f.sets.Scam.firstMatch(normalized, nil); ok {
		return flagged(CategoryScam, ReasonListingScam, term)
	}
	if term, ok := f.sets.ContactBypass.firstMatch(normalized, nil); ok {
		return flagged(CategoryContactBypass, ReasonContactInfo, term)
	}
	if containsPhoneNumber(combined) {
		return flagged(CategoryContactBypass, ReasonPhoneNumber, TermPhoneNumber)
	}
	return Verdict{}
}

// CheckMessage screens a chat message. It only looks for hate speech and
// scams: sharing contact details is allowed once buyer and seller are talking.
func (f *Filter) CheckMessage(text string) Verdict {
	if strings.TrimSpace(text) == "" {
		return Verdict{}
	}

	normalized := Normalize(text)

	if term, ok := f.sets.HateSpeech.firstMatch(normalized, nil); ok {
		return flagged(CategoryHateSpeech, ReasonHateSpeech, term)
	}
	if term, ok := f.sets.Scam.firstMatch(normalized, nil); ok {
		return flagged(CategoryScam, ReasonMessageScam, term)
	}
	return Verdict{}
}

// excusedWeapon returns a skip func for the prohibited scan. A weapon term is
// skipped when the text has a safe context; other prohibited terms never are.
// The safe-context lookup runs at most once per check.
func (f *Filter) excusedWeapon(normalized string) func(string) bool {
	var checked, safe bool
	return func(phrase string) bool {
		if !f.sets.Weapons.Contains(phrase) {
			return false
		}
		if !checked {
			safe = f.hasSafeContext(normalized)
			checked = true
		}
		return safe
	}
}

var defaultFilter = NewFilter()

// Default returns the process-wide filter with the built-in policy.
func Default() *Filter { return defaultFilter }

// CheckListing screens listing text with the default filter.
func CheckListing(title, description string) Verdict {
	return defaultFilter.CheckListing(title, description)
}

// CheckMessage screens a chat message with the default filter.
func CheckMessage(text string) Verdict {
	return defaultFilter.CheckMessage(text)
}
