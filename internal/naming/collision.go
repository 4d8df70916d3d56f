package naming

import (
	"log/slog"
)

// CollisionResolver tracks the column names registered per table and reports
// when two properties would write the same column.
type CollisionResolver struct {
	seen   map[string]map[string]string // table → column → source property
	logger *slog.Logger
}

// NewCollisionResolver creates a new collision resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seen:   make(map[string]map[string]string),
		logger: logger,
	}
}

// RegisterColumn records that source maps onto table.column. When the column
// is already taken it logs a warning and returns the existing source.
func (c *CollisionResolver) RegisterColumn(table, column, source string) (existing string, collided bool) {
	columns, ok := c.seen[table]
	if !ok {
		columns = make(map[string]string)
		c.seen[table] = columns
	}
	if prev, exists := columns[column]; exists {
		c.logger.Warn("column collision detected",
			slog.String("table", table),
			slog.String("column", column),
			slog.String("existing_source", prev),
			slog.String("new_source", source),
		)
		return prev, true
	}
	columns[column] = source
	return "", false
}

// ColumnExists checks if a column is registered for a table.
func (c *CollisionResolver) ColumnExists(table, column string) bool {
	if columns, ok := c.seen[table]; ok {
		_, exists := columns[column]
		return exists
	}
	return false
}
