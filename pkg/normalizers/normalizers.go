// Package normalizers provides the canonical forms used to deduplicate
// business records.
package normalizers

import (
	"strings"
	"unicode"
)

// legalSuffixes are dropped from the end of business names.
var legalSuffixes = map[string]bool{
	"inc":  true,
	"llc":  true,
	"ltd":  true,
	"llp":  true,
	"plc":  true,
	"pllc": true,
}

var addressAbbreviations = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"drive":     "dr",
	"road":      "rd",
	"lane":      "ln",
	"court":     "ct",
	"circle":    "cir",
	"place":     "pl",
	"parkway":   "pkwy",
	"highway":   "hwy",
	"apartment": "apt",
	"suite":     "ste",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
}

// NormalizeBusinessName lowercases, strips punctuation, collapses whitespace
// and drops trailing legal designators ("Acme, Inc." -> "acme").
func NormalizeBusinessName(s string) string {
	words := tokens(s)
	for len(words) > 1 && legalSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// NormalizeAddress lowercases, strips punctuation and abbreviates common
// street designators ("101 Main Street" -> "101 main st").
func NormalizeAddress(s string) string {
	words := tokens(s)
	for i, w := range words {
		if abbr, ok := addressAbbreviations[w]; ok {
			words[i] = abbr
		}
	}
	return strings.Join(words, " ")
}

// BusinessKey is the natural key of a business record.
func BusinessKey(name, address string) string {
	return NormalizeBusinessName(name) + "|" + NormalizeAddress(address)
}

// tokens splits s into lowercase words of letters and digits. Apostrophes
// are removed rather than treated as separators.
func tokens(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’' || r == '.':
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
