package moderation

import "strings"

// leetReplacer folds the common leet-speak substitutions back to letters.
// No replacement output is itself a replacement input, so a single pass gives
// the same result as applying the substitutions one after another.
var leetReplacer = strings.NewReplacer(
	"@", "a",
	"$", "s",
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"!", "i",
)

// Normalize lowercases text, folds leet-speak and collapses whitespace runs to
// a single space. It never fails and returns "" for blank input. Normalize is
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	folded := leetReplacer.Replace(strings.ToLower(text))
	return strings.Join(strings.Fields(folded), " ")
}
