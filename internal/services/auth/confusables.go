// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"errors"
	"strings"
	"unicode"

	"github.com/mtibben/confusables"
	"golang.org/x/text/unicode/norm"
)

// ErrConfusableEmail is returned for addresses that look like homograph attacks.
var ErrConfusableEmail = errors.New("email address cannot be used")

// scriptOf returns the name of the Unicode script of r. Common and
// Inherited runes, such as digits and punctuation, return "".
func scriptOf(r rune) string {
	if unicode.Is(unicode.Common, r) || unicode.Is(unicode.Inherited, r) {
		return ""
	}
	// Fast path for the scripts that matter most
	for _, name := range []string{"Latin", "Cyrillic", "Greek", "Armenian"} {
		if unicode.Is(unicode.Scripts[name], r) {
			return name
		}
	}
	for name, table := range unicode.Scripts {
		if unicode.Is(table, r) {
			return name
		}
	}
	return ""
}

// IsMixedScript reports whether s contains letters from more than one script.
func IsMixedScript(s string) bool {
	first := ""
	for _, r := range s {
		script := scriptOf(r)
		if script == "" {
			continue
		}
		if first == "" {
			first = script
		} else if script != first {
			return true
		}
	}
	return false
}

// hasConfusable reports whether s contains a letter whose Unicode TR39
// skeleton is written in another script.
func hasConfusable(s string) bool {
	for _, r := range s {
		script := scriptOf(r)
		if script == "" {
			continue
		}
		ch := string(r)
		skeleton := confusables.Skeleton(ch)
		if skeleton == norm.NFD.String(ch) {
			continue
		}
		for _, p := range skeleton {
			if ps := scriptOf(p); ps != "" && ps != script {
				return true
			}
		}
	}
	return false
}

// IsDangerous reports whether s is mixed-script and contains at least one
// confusable letter.
func IsDangerous(s string) bool {
	return IsMixedScript(s) && hasConfusable(s)
}

// ValidateConfusables rejects dangerous values, as given or lowercased.
func ValidateConfusables(value string) error {
	if IsDangerous(value) || IsDangerous(strings.ToLower(value)) {
		return ErrConfusableEmail
	}
	return nil
}

// ValidateConfusablesEmail rejects addresses whose local part or domain,
// each considered on its own, is dangerous. Values without "@" pass; the
// email format is checked elsewhere.
func ValidateConfusablesEmail(value string) error {
	at := strings.LastIndex(value, "@")
	if at < 0 {
		return nil
	}
	local, domain := value[:at], value[at+1:]
	if ValidateConfusables(local) != nil || ValidateConfusables(domain) != nil {
		return ErrConfusableEmail
	}
	return nil
}
