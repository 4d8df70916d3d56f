// Package naming derives SQL table and column names from Go entity and field
// names: snake_case conversion, optional table pluralization, back-reference
// and key column names, reserved word and collision warnings.
package naming

// Config holds naming customization options
type Config struct {
	// PluralizeTables turns entity names into plural table names ("person" -> "people").
	PluralizeTables bool `mapstructure:"pluralize_tables"`

	// PluralOverrides maps singular -> custom plural
	// Example: {"person": "persons", "status": "statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular
	// Example: {"people": "person", "data": "datum"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`

	// KeyColumnSuffix is appended to the back-reference column to name the
	// list index or map key column.
	KeyColumnSuffix string `mapstructure:"key_column_suffix"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
		KeyColumnSuffix:   "_key",
	}
}
