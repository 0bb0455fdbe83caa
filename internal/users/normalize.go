package users

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var emailFold = cases.Fold()

// Stored text is trimmed and in Unicode NFC; emails are also case folded.

func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normalizeUsername(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normalizeEmail(s string) string {
	return emailFold.String(norm.NFC.String(strings.TrimSpace(s)))
}
