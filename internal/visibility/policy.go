// Package visibility evaluates the field-redaction policy for sensitive data
// on shared records (contact email, phone, tax id).
//
// The policy is a pure function: identical inputs always yield identical
// output, and exactly one precedence rule fires for any viewer context. That
// keeps it exhaustively unit-testable against the rule table and safe to call
// from any rendering path without coordination.
package visibility

import (
	"strings"
	"unicode"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

// Field selects which masking transform applies when the viewer is not
// entitled to the full value.
type Field int16

const (
	FieldEmail Field = iota + 1
	FieldPhone
	FieldTaxID
)

// Context carries the viewer facts paired with the subject record's owner.
// Pure input, never persisted.
type Context struct {
	Viewer model.Identity

	// OwnerID is the user id of the company operator owning the record.
	OwnerID int64

	// ActiveRelation is true when an accepted engagement (e.g. a contract)
	// exists between viewer and subject, granting elevated visibility.
	ActiveRelation bool

	// SystemCall marks evaluations originating from an internal process
	// rather than an end-user view.
	SystemCall bool
}

// Reveal applies the precedence table, first match wins:
//
//  1. administrative role (ADMIN, SUPER_ADMIN)  -> full value
//  2. viewer owns the record                    -> full value
//  3. active relation with the subject          -> full value
//  4. internal/system caller                    -> full value
//  5. otherwise                                 -> masked per field
func Reveal(field Field, raw string, vc Context) string {
	if vc.Viewer.IsAdmin() {
		return raw
	}
	if vc.OwnerID != 0 && vc.Viewer.ID == vc.OwnerID {
		return raw
	}
	if vc.ActiveRelation {
		return raw
	}
	if vc.SystemCall {
		return raw
	}

	switch field {
	case FieldEmail:
		return maskEmail(raw)
	case FieldPhone:
		return maskPhone(raw)
	case FieldTaxID:
		return maskTaxID(raw)
	default:
		return raw
	}
}

// maskEmail keeps the first 2 and last 1 characters of the local part and
// masks the remainder with three stars. The domain stays intact. Local parts
// shorter than 6 characters are too short to mask without growing the value
// and pass through. Values without an '@' are returned unchanged: masking
// never fabricates structure it cannot parse.
func maskEmail(raw string) string {
	at := strings.LastIndex(raw, "@")
	if at <= 0 {
		return raw
	}

	local, domain := raw[:at], raw[at:]
	if len(local) < 6 {
		return raw
	}
	return local[:2] + "***" + local[len(local)-1:] + domain
}

// maskPhone keeps the first 3 and last 2 digits and masks every digit in
// between. Formatting characters (+, spaces, dashes) pass through and do not
// count toward the kept prefix. Numbers with 4 or fewer digits are too short
// to safely mask and pass through.
func maskPhone(raw string) string {
	digits := 0
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits <= 4 {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))
	seen := 0
	for _, r := range raw {
		if !unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		seen++
		if seen <= 3 || seen > digits-2 {
			b.WriteRune(r)
		} else {
			b.WriteByte('*')
		}
	}
	return b.String()
}

// maskTaxID preserves the leading digits and replaces the check-digit suffix
// with the fixed "***-*" marker, keeping the overall length. Strings of
// length <= 4 pass through.
func maskTaxID(raw string) string {
	if len(raw) <= 4 {
		return raw
	}
	return raw[:len(raw)-5] + "***-*"
}
