package moderation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PhraseSet is an ordered, immutable list of trigger phrases. A phrase that
// contains a space is matched as a substring; a single token is matched on
// word boundaries. Declared order decides which phrase is reported as the
// trigger.
type PhraseSet struct {
	phrases []string
}

// NewPhraseSet builds a PhraseSet from the given phrases. Phrases are lowercased
// and trimmed; blanks and duplicates are dropped, keeping first occurrence order.
func NewPhraseSet(phrases ...string) PhraseSet {
	seen := make(map[string]struct{}, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return PhraseSet{phrases: out}
}

// Len returns the number of phrases in the set.
func (s PhraseSet) Len() int { return len(s.phrases) }

// Phrases returns a copy of the phrases in declared order.
func (s PhraseSet) Phrases() []string {
	out := make([]string, len(s.phrases))
	copy(out, s.phrases)
	return out
}

// Contains reports whether phrase is a member of the set.
func (s PhraseSet) Contains(phrase string) bool {
	for _, p := range s.phrases {
		if p == phrase {
			return true
		}
	}
	return false
}

// firstMatch returns the first phrase, in declared order, that matches the
// normalized text and is not rejected by skip. skip may be nil.
func (s PhraseSet) firstMatch(normalized string, skip func(phrase string) bool) (string, bool) {
	for _, p := range s.phrases {
		if !matches(normalized, p) {
			continue
		}
		if skip != nil && skip(p) {
			continue
		}
		return p, true
	}
	return "", false
}

// anyMatch reports whether any phrase of the set matches the normalized text.
func (s PhraseSet) anyMatch(normalized string) bool {
	_, ok := s.firstMatch(normalized, nil)
	return ok
}

// Sets groups the phrase sets a Filter classifies with.
type Sets struct {
	Prohibited    PhraseSet
	Weapons       PhraseSet // subset of Prohibited eligible for safe-context suppression
	HateSpeech    PhraseSet
	Scam          PhraseSet
	ContactBypass PhraseSet
	SafeContext   PhraseSet
}

// version returns a short stable digest of every phrase in every set.
func (s Sets) version() string {
	h := sha256.New()
	for _, set := range []PhraseSet{s.Prohibited, s.Weapons, s.HateSpeech, s.Scam, s.ContactBypass, s.SafeContext} {
		for _, p := range set.phrases {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// Default marketplace policy.
var (
	weaponPhrases = []string{
		"firearm", "handgun", "rifle", "shotgun", "pistol", "revolver",
		"ammunition", "ammo", "silencer", "suppressor",
		"switchblade", "brass knuckles", "stun gun", "taser",
	}

	prohibitedPhrases = append(append([]string{}, weaponPhrases...),
		// Drugs and paraphernalia
		"cocaine", "heroin", "methamphetamine", "fentanyl", "ecstasy",
		"mdma", "lsd", "marijuana", "cannabis", "weed", "edibles",
		"magic mushrooms", "psilocybin", "crack pipe", "bong", "rolling papers",
		// Stolen or illegal goods
		"stolen", "counterfeit", "fake id", "fake passport", "fake license",
		"social security number", "ssn",
		// Regulated or dangerous
		"explosives", "fireworks", "dynamite",
		"prescription pills", "oxycontin", "xanax", "adderall",
		"human organs", "human remains",
		// Live animal sales
		"live animal", "puppy mill", "kitten for sale",
	)

	// The digit spellings never survive Normalize; they stay listed so the
	// policy reads the same as the published list.
	hateSpeechPhrases = []string{
		"n1gger", "n1gga", "f4ggot", "f4g", "tr4nny", "r3tard",
		"k1ke", "sp1c", "ch1nk", "w3tback", "g00k",
		"nigger", "nigga", "faggot", "tranny", "retard",
		"kike", "spic", "chink", "wetback", "gook",
		"white power", "heil hitler", "white supremacy",
		"kill all", "death to",
	}

	scamPhrases = []string{
		"wire transfer", "western union", "moneygram",
		"send gift card", "itunes gift card", "google play gift card",
		"pay before seeing", "deposit required before",
		"cash app me", "venmo me before",
		"nigerian prince", "inheritance fund",
		"guaranteed profit", "double your money",
		"send money first", "pay upfront before meeting",
	}

	contactBypassPhrases = []string{
		"text me at", "call me at", "hit me up at",
		"whatsapp me", "telegram me", "signal me",
		"email me at", "dm me on instagram", "dm me on snap",
		"my number is", "my phone is",
	}

	safeContextPhrases = []string{
		"toy", "nerf", "water", "squirt", "foam", "plastic",
		"costume", "cosplay", "prop", "replica", "fake",
		"airsoft", "bb", "pellet",
		"vintage", "antique", "collectible", "display",
		"broken", "non-working", "non functioning", "decommissioned",
		"kids", "children", "child", "baby",
		"lego", "playmobil", "action figure", "figurine",
		"video game", "gaming", "xbox", "playstation", "nintendo",
		"movie", "film", "poster", "book", "comic",
		"sticker", "patch", "keychain", "charm",
		"case", "phone case", "holster",
		"t-shirt", "shirt", "hoodie", "hat", "cap",
		"painting", "art", "print", "canvas",
	}
)

// DefaultSets returns the marketplace's built-in phrase sets.
func DefaultSets() Sets {
	return Sets{
		Prohibited:    NewPhraseSet(prohibitedPhrases...),
		Weapons:       NewPhraseSet(weaponPhrases...),
		HateSpeech:    NewPhraseSet(hateSpeechPhrases...),
		Scam:          NewPhraseSet(scamPhrases...),
		ContactBypass: NewPhraseSet(contactBypassPhrases...),
		SafeContext:   NewPhraseSet(safeContextPhrases...),
	}
}
