package identifier

import "regexp"

var nonWordChars = regexp.MustCompile(`\W`)

// BindName derives a named bind parameter from an identifier by dropping every
// character that is not a letter, digit or underscore.
// Example: "schema.person_id" -> "schemaperson_id"
func BindName(id SQLIdentifier) string {
	return nonWordChars.ReplaceAllString(id.Reference(), "")
}
