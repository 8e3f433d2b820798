// Package contact normalizes the recipient identifiers the engine keys on:
// phone numbers (E.164) and e-mail addresses.
package contact

import (
	"strings"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var phoneFormatting = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "\t", "")

// NormalizePhone strips common formatting and returns the number in E.164
// form ("+15551234567"). An international "00" prefix is accepted.
func NormalizePhone(raw string) (string, error) {
	p := phoneFormatting.Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(p, "00") {
		p = "+" + p[2:]
	}
	if err := validate.Var(p, "required,e164"); err != nil {
		return "", common.NewValidationError("phone", "must be an E.164 number")
	}
	return p, nil
}

// NormalizeEmail trims and lowercases the address and checks its syntax.
func NormalizeEmail(raw string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(raw))
	if err := validate.Var(e, "required,email"); err != nil {
		return "", common.NewValidationError("email", "invalid address")
	}
	return e, nil
}

// MaskPhone keeps the country prefix and the last two digits, for logs.
func MaskPhone(e164 string) string {
	if len(e164) <= 5 {
		return "***"
	}
	return e164[:3] + strings.Repeat("*", len(e164)-5) + e164[len(e164)-2:]
}
