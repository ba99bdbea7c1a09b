package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DisplayNameMin = 2
	DisplayNameMax = 64
	PasswordMin    = 10
	TagTitleMin    = 2
	TagTitleMax    = 32
	PostTitleMin   = 8
	PostTitleMax   = 255
	CommentMin     = 2
	CommentMaxText = 1000
)

var (
	colorPattern     = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)
	passwordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[a-z]`),
		regexp.MustCompile(`[A-Z]`),
		regexp.MustCompile(`[0-9]`),
		regexp.MustCompile(`[*.!@#$%^&(){}\[\]:;<>,?~_+\-=|\\]`),
	}
)

// attribute renders a field name the way messages refer to it
func attribute(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func msgRequired(field string) string {
	return fmt.Sprintf("The %s field is required.", attribute(field))
}

func msgMin(field string, n int) string {
	return fmt.Sprintf("The %s must be at least %d characters.", attribute(field), n)
}

func msgMax(field string, n int) string {
	return fmt.Sprintf("The %s may not be greater than %d characters.", attribute(field), n)
}

func msgTaken(field string) string {
	return fmt.Sprintf("The %s has already been taken.", attribute(field))
}

func msgFormat(field string) string {
	return fmt.Sprintf("The %s format is invalid.", attribute(field))
}

func msgSelectedInvalid(field string) string {
	return fmt.Sprintf("The selected %s is invalid.", attribute(field))
}

func msgEmail(field string) string {
	return fmt.Sprintf("The %s must be a valid email address.", attribute(field))
}

func msgConfirmed(field string) string {
	return fmt.Sprintf("The %s confirmation does not match.", attribute(field))
}

func msgStripped(n int) string {
	return fmt.Sprintf("Strip tag length exceeds %d characters", n)
}

// blank reports whether a required value counts as missing
func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// checkLength adds min/max failures measured in characters
func checkLength(errs Errors, field, value string, min, max int) bool {
	n := utf8.RuneCountInString(value)
	switch {
	case n < min:
		errs.Add(field, msgMin(field, min))
		return false
	case max > 0 && n > max:
		errs.Add(field, msgMax(field, max))
		return false
	}
	return true
}

// ValidEmail reports whether s is a bare email address
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func checkEmail(errs Errors, field, value string) bool {
	if !ValidEmail(value) {
		errs.Add(field, msgEmail(field))
		return false
	}
	return true
}

// checkPassword applies the strength rules and the confirmation match
func checkPassword(errs Errors, password string, confirmation *string) bool {
	ok := checkLength(errs, "password", password, PasswordMin, 0)
	for _, pattern := range passwordPatterns {
		if !pattern.MatchString(password) {
			errs.Add("password", msgFormat("password"))
			ok = false
			break
		}
	}
	if confirmation == nil || *confirmation != password {
		errs.Add("password", msgConfirmed("password"))
		ok = false
	}
	return ok
}

// ValidColor reports whether s is a #rgb or #rrggbb hex color
func ValidColor(s string) bool {
	return colorPattern.MatchString(s)
}
