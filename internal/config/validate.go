package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"relgen/internal/dialect"
	"relgen/internal/identifier"
	"relgen/internal/naming"
	"relgen/internal/sqlrender"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors and returns validation results.
// Dialect names are checked against registry; nil uses the built-in vendors.
func (c *Config) Validate(registry *dialect.Registry) *ValidationResult {
	result := &ValidationResult{}
	if registry == nil {
		registry = dialect.NewRegistry()
	}

	c.Database.validate(result)
	c.Dialect.validate(registry, c.Database.HasConnection(), result)
	c.Generator.validate(result)
	validateNamingConfig(result, c.Naming)
	c.Server.validate(result)
	c.Observability.validate(result)
	c.Output.validate(result)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(d.DSN) == "" && !isMySQLDriver(d.Driver) && d.HasConnection() {
		result.addError("database.dsn", fmt.Sprintf("a DSN is required for driver %q", d.Driver),
			"discrete host/port/user fields only build MySQL DSNs")
	}
	if strings.TrimSpace(d.DSN) == "" && (d.Port < 1 || d.Port > 65535) {
		result.addError("database.port", fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port), "")
	}
	if d.Pool.MaxOpen < 0 {
		result.addError("database.pool.max_open", "max_open cannot be negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.addError("database.pool.max_idle", "max_idle cannot be negative", "")
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.addWarning("database.pool.max_idle",
			fmt.Sprintf("max_idle (%d) exceeds max_open (%d)", d.Pool.MaxIdle, d.Pool.MaxOpen),
			"database/sql caps idle connections at max_open")
	}
	if d.ConnectionTimeout < 0 {
		result.addError("database.connection_timeout", "connection_timeout cannot be negative", "")
	}
	if d.Password != "" && d.PasswordPrompt {
		result.addWarning("database.password_prompt", "ignored because a password is already set", "")
	}
}

func (d *DialectConfig) validate(registry *dialect.Registry, hasDatabase bool, result *ValidationResult) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		if !hasDatabase {
			result.addWarning("dialect.name", "no dialect and no database configured",
				"set dialect.name or database.dsn before generating SQL")
		}
	} else if _, err := registry.Lookup(name); err != nil {
		result.addError("dialect.name", fmt.Sprintf("unknown dialect %q", name),
			"valid values are: "+strings.Join(registry.Names(), ", "))
	}

	if _, ok := identifier.ParseLetterCasing(d.Casing); !ok {
		result.addError("dialect.casing", fmt.Sprintf("invalid identifier casing %q", d.Casing),
			"valid values are: upper, lower, as_is")
	}
	for _, m := range d.Modules {
		if _, ok := dialectModules[strings.ToLower(strings.TrimSpace(m))]; !ok {
			result.addError("dialect.modules", fmt.Sprintf("unknown dialect module %q", m),
				"valid values are: postgres-geometry, sqlserver-types")
		}
	}
}

func (g *GeneratorConfig) validate(result *ValidationResult) {
	if _, ok := sqlrender.ParseNamingStrategy(g.NamingStrategy); !ok {
		result.addError("generator.naming_strategy", fmt.Sprintf("invalid naming strategy %q", g.NamingStrategy),
			"valid values are: as_is, upper, lower")
	}
	if g.StatementCacheSize < 1 {
		result.addError("generator.statement_cache_size", "statement_cache_size must be positive", "")
	}
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for singular, plural := range cfg.PluralOverrides {
		if strings.TrimSpace(singular) == "" || strings.TrimSpace(plural) == "" {
			result.addError("naming.plural_overrides", "override keys and values cannot be empty", "")
		}
	}
	for plural, singular := range cfg.SingularOverrides {
		if strings.TrimSpace(singular) == "" || strings.TrimSpace(plural) == "" {
			result.addError("naming.singular_overrides", "override keys and values cannot be empty", "")
		}
	}
	if strings.TrimSpace(cfg.KeyColumnSuffix) == "" {
		result.addError("naming.key_column_suffix", "key_column_suffix cannot be empty",
			"key columns would collide with back-reference columns")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.addError("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		result.addError("server", "timeouts cannot be negative", "")
	}
	if s.ShutdownTimeout <= 0 {
		result.addError("server.shutdown_timeout", "shutdown_timeout must be positive", "")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	// Log level validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	// Log format validation
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio",
			fmt.Sprintf("trace_sample_ratio %v must be between 0 and 1", o.TraceSampleRatio), "")
	}
	if o.SQLCommenterEnabled && !o.TracingEnabled {
		result.addWarning("observability.sqlcommenter_enabled", "has no effect without tracing",
			"enable observability.tracing_enabled")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}

	if o.RetryMaxAttempts < 0 {
		result.addError(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func (o *OutputConfig) validate(result *ValidationResult) {
	switch o.Format {
	case "yaml", "json":
	default:
		result.addError("output.format", fmt.Sprintf("invalid output format %q", o.Format),
			"valid values are: yaml, json")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
