// Package forms holds the shared plumbing for validating multi-field form
// submissions: a field-path -> messages error map, and the primitives the
// per-form rule sets are built from. Rule sets live next to their handlers.
package forms

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// ErrCheckerMissing is returned when a rule set requires an asynchronous
// checker (uniqueness, credential match) and the caller supplied none.
// It is terminal: the submission can not be meaningfully validated at all,
// as opposed to ordinary per-field errors.
var ErrCheckerMissing = errors.New("validation function undefined")

var (
	// good enough for a login form; the mail server has the final say
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
)

// Errors maps a field path (e.g. "email", "exercises[0].sets[1].reps")
// to the human-readable messages for that field.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Addf(field, format string, args ...any) {
	e.Add(field, fmt.Sprintf(format, args...))
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

func (e Errors) IsEmpty() bool {
	return len(e) == 0
}

func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func ValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// LengthBetween reports whether the value, counted in runes, is within
// [min, max] inclusive.
func LengthBetween(value string, min, max int) bool {
	l := utf8.RuneCountInString(value)
	return l >= min && l <= max
}
