// Package dbmeta resolves the dialect of a live database. Metadata is probed
// from a *sql.DB, then offered to a chain of providers; the first provider
// that recognizes the database wins.
package dbmeta

import "relgen/internal/identifier"

// DatabaseMetadata is what the resolver knows about a database product.
type DatabaseMetadata struct {
	ProductName    string
	ProductVersion string
	// IdentifierQuoteString is blank when the database does not quote.
	IdentifierQuoteString        string
	SupportsMixedCaseIdentifiers bool
	StoresUpperCaseIdentifiers   bool
	StoresLowerCaseIdentifiers   bool
}

// IdentifierProcessing derives quoting and letter casing from the metadata.
// Without any casing flag it falls back to upper case, the SQL standard's
// folding, so that drivers that report nothing still get a usable result.
func (m DatabaseMetadata) IdentifierProcessing() identifier.Processing {
	quoting := identifier.NewQuoting(m.IdentifierQuoteString)

	var casing identifier.LetterCasing
	switch {
	case m.SupportsMixedCaseIdentifiers:
		casing = identifier.AsIs
	case m.StoresUpperCaseIdentifiers:
		casing = identifier.UpperCase
	case m.StoresLowerCaseIdentifiers:
		casing = identifier.LowerCase
	default:
		casing = identifier.UpperCase
	}
	return identifier.NewProcessing(quoting, casing)
}
