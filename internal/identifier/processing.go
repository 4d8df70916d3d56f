// Package identifier models SQL identifiers and the per-database rules for
// quoting and letter-casing them.
package identifier

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LetterCasing describes how a database folds unquoted identifiers.
type LetterCasing int

const (
	// UpperCase folds identifiers to upper case (SQL standard).
	UpperCase LetterCasing = iota
	// LowerCase folds identifiers to lower case.
	LowerCase
	// AsIs leaves identifiers untouched.
	AsIs
)

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// Apply standardizes the letter case of name.
func (c LetterCasing) Apply(name string) string {
	switch c {
	case UpperCase:
		return upperCaser.String(name)
	case LowerCase:
		return lowerCaser.String(name)
	default:
		return name
	}
}

func (c LetterCasing) String() string {
	switch c {
	case UpperCase:
		return "upper"
	case LowerCase:
		return "lower"
	default:
		return "as_is"
	}
}

// ParseLetterCasing converts a configuration value into a LetterCasing.
func ParseLetterCasing(value string) (LetterCasing, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "upper", "upper_case":
		return UpperCase, true
	case "lower", "lower_case":
		return LowerCase, true
	case "as_is", "asis", "":
		return AsIs, true
	default:
		return AsIs, false
	}
}

// Quoting holds the characters placed around a quoted identifier.
// The zero value disables quoting.
type Quoting struct {
	Prefix string
	Suffix string
}

var (
	// NoQuoting leaves identifiers unquoted.
	NoQuoting = Quoting{}
	// ANSIQuoting uses double quotes.
	ANSIQuoting = Quoting{Prefix: `"`, Suffix: `"`}
)

// NewQuoting creates a symmetric quoting from a quote string as reported by a
// driver. Blank strings mean the database does not support quoting.
func NewQuoting(quote string) Quoting {
	if strings.TrimSpace(quote) == "" {
		return NoQuoting
	}
	return Quoting{Prefix: quote, Suffix: quote}
}

// IsNone reports whether quoting is disabled.
func (q Quoting) IsNone() bool {
	return q.Prefix == "" && q.Suffix == ""
}

// Apply quotes name, doubling any embedded suffix characters.
func (q Quoting) Apply(name string) string {
	if q.IsNone() {
		return name
	}
	escaped := name
	if q.Suffix != "" {
		escaped = strings.ReplaceAll(name, q.Suffix, q.Suffix+q.Suffix)
	}
	return q.Prefix + escaped + q.Suffix
}

// Processing combines quoting and letter casing.
type Processing struct {
	Quoting Quoting
	Casing  LetterCasing
}

var (
	// ANSI is the SQL standard processing: double quotes, upper case.
	ANSI = Processing{Quoting: ANSIQuoting, Casing: UpperCase}
	// None neither quotes nor changes case.
	None = Processing{Quoting: NoQuoting, Casing: AsIs}
)

// NewProcessing creates a Processing from its parts.
func NewProcessing(quoting Quoting, casing LetterCasing) Processing {
	return Processing{Quoting: quoting, Casing: casing}
}

// Quote applies the quoting characters.
func (p Processing) Quote(name string) string {
	return p.Quoting.Apply(name)
}

// StandardizeLetterCase applies the letter casing.
func (p Processing) StandardizeLetterCase(name string) string {
	return p.Casing.Apply(name)
}
