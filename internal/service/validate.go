package service

import (
	"fmt"
	"unicode/utf8"
)

const (
	MaxTitleChars       = 200
	MaxDescriptionChars = 8000
	MaxMessageChars     = 2000
)

// validateText checks that a field is valid UTF-8 and within max runes.
// Empty text is allowed; the filter treats it as clean.
func validateText(field, text string, max int) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: %s contains invalid UTF-8", ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(text) > max {
		return fmt.Errorf("%w: %s exceeds %d character limit", ErrInvalidInput, field, max)
	}
	return nil
}

// ValidateListing checks listing field sizes and encoding.
func ValidateListing(req ListingCheckRequest) error {
	if err := validateText("title", req.Title, MaxTitleChars); err != nil {
		return err
	}
	return validateText("description", req.Description, MaxDescriptionChars)
}

// ValidateMessage checks that a chat message meets content requirements.
func ValidateMessage(req MessageCheckRequest) error {
	return validateText("text", req.Text, MaxMessageChars)
}
