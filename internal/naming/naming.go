package naming

import (
	"log/slog"

	"github.com/go-openapi/inflect"
)

// Namer derives table and column names for mapped entities. It holds no
// mutable state and is safe for concurrent use.
type Namer struct {
	config Config
	logger *slog.Logger
	rules  *inflect.Ruleset
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.KeyColumnSuffix == "" {
		cfg.KeyColumnSuffix = DefaultConfig().KeyColumnSuffix
	}
	return &Namer{
		config: cfg,
		logger: logger,
		rules:  newRuleset(),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Logger returns the logger used for naming warnings.
func (n *Namer) Logger() *slog.Logger {
	return n.logger
}

// NewCollisionResolver returns a resolver that logs through the namer's logger.
func (n *Namer) NewCollisionResolver() *CollisionResolver {
	return NewCollisionResolver(n.logger)
}

// TableName converts an entity name to a table name.
// Example: "OrderItem" -> "order_item" (or "order_items" when pluralizing)
func (n *Namer) TableName(entityName string) string {
	name := n.SnakeCase(entityName)
	if n.config.PluralizeTables && name != "" {
		name = n.Pluralize(name)
	}
	n.warnReserved("table", name)
	return name
}

// ColumnName converts a field name to a column name.
// Example: "FirstName" -> "first_name"
func (n *Namer) ColumnName(fieldName string) string {
	name := n.SnakeCase(fieldName)
	n.warnReserved("column", name)
	return name
}

// ReverseColumnName names the back-reference column a child table uses to
// point at its id-defining parent: the parent's table name.
func (n *Namer) ReverseColumnName(parentTable string) string {
	return parentTable
}

// KeyColumnName names the list index or map key column that accompanies a
// back-reference column.
// Example: "person" -> "person_key"
func (n *Namer) KeyColumnName(reverseColumn string) string {
	return reverseColumn + n.config.KeyColumnSuffix
}

func (n *Namer) warnReserved(kind, name string) {
	if IsReservedWord(name) {
		n.logger.Warn("SQL name is a reserved word, enable identifier quoting",
			slog.String("kind", kind),
			slog.String("name", name),
		)
	}
}
