package moderation

// Category is the stable, auditable label attached to a flagged verdict.
type Category string

const (
	CategoryProhibitedItem Category = "prohibited_item"
	CategoryHateSpeech     Category = "hate_speech"
	CategoryScam           Category = "scam"
	CategoryContactBypass  Category = "contact_bypass"
)

// Categories lists every category in precedence order.
var Categories = []Category{
	CategoryProhibitedItem,
	CategoryHateSpeech,
	CategoryScam,
	CategoryContactBypass,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// User-facing reasons. Callers display these verbatim.
const (
	ReasonProhibitedItem = "This listing appears to contain a prohibited item. Please review our Prohibited Items policy."
	ReasonHateSpeech     = "This content contains language that violates our community guidelines."
	ReasonListingScam    = "This listing contains language commonly associated with scams. Please use in-app messaging for all transactions."
	ReasonMessageScam    = "This message contains content flagged as a potential scam. Never send money outside the platform."
	ReasonContactInfo    = "Please use Pocket Market messaging instead of sharing personal contact info in listings."
	ReasonPhoneNumber    = "Please use Pocket Market messaging instead of sharing phone numbers in listings."
)

// TermPhoneNumber is reported as the trigger when the phone heuristic flags.
const TermPhoneNumber = "phone_number"

// Verdict is the outcome of a single check. The zero value means clean.
type Verdict struct {
	Flagged  bool     `json:"flagged"`
	Reason   string   `json:"reason,omitempty"`
	Category Category `json:"category,omitempty"`

	// Term is the phrase that triggered the flag. It is for logs and audit
	// only and is never serialized towards end users.
	Term string `json:"-"`
}

func flagged(category Category, reason, term string) Verdict {
	return Verdict{Flagged: true, Reason: reason, Category: category, Term: term}
}
