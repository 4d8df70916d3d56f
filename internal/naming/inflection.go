package naming

import (
	"github.com/go-openapi/inflect"
	"github.com/jinzhu/inflection"
)

// acronyms keep runs of capitals together when splitting words, so "UserID"
// becomes user_id rather than user_i_d. Longer acronyms come first because
// the rules are applied in order.
var acronyms = []string{"UUID", "HTTP", "JSON", "HTML", "URL", "API", "SQL", "ID"}

func newRuleset() *inflect.Ruleset {
	rs := inflect.NewDefaultRuleset()
	for _, a := range acronyms {
		rs.AddAcronym(a)
	}
	return rs
}

// Pluralize converts a singular word to its plural form.
// Checks custom overrides first, then falls back to the inflection library.
func (n *Namer) Pluralize(word string) string {
	if override, ok := n.config.PluralOverrides[word]; ok {
		return override
	}
	return inflection.Plural(word)
}

// Singularize converts a plural word to its singular form.
// Checks custom overrides first, then falls back to the inflection library.
func (n *Namer) Singularize(word string) string {
	if override, ok := n.config.SingularOverrides[word]; ok {
		return override
	}
	return inflection.Singular(word)
}

// SnakeCase converts a Go identifier to snake_case.
// Example: "PersonWithAddress" -> "person_with_address"
func (n *Namer) SnakeCase(name string) string {
	if name == "" {
		return ""
	}
	return n.rules.Underscore(name)
}
