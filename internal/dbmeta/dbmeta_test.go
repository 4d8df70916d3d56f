package dbmeta

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"relgen/internal/dialect"
	"relgen/internal/identifier"
)

func TestIdentifierProcessing(t *testing.T) {
	tests := []struct {
		name     string
		md       DatabaseMetadata
		expected identifier.Processing
	}{
		{
			name:     "mixed case wins",
			md:       DatabaseMetadata{IdentifierQuoteString: "`", SupportsMixedCaseIdentifiers: true, StoresLowerCaseIdentifiers: true},
			expected: identifier.NewProcessing(identifier.NewQuoting("`"), identifier.AsIs),
		},
		{
			name:     "upper case",
			md:       DatabaseMetadata{IdentifierQuoteString: `"`, StoresUpperCaseIdentifiers: true},
			expected: identifier.NewProcessing(identifier.ANSIQuoting, identifier.UpperCase),
		},
		{
			name:     "lower case",
			md:       DatabaseMetadata{IdentifierQuoteString: `"`, StoresLowerCaseIdentifiers: true},
			expected: identifier.NewProcessing(identifier.ANSIQuoting, identifier.LowerCase),
		},
		{
			name:     "blank quote string disables quoting",
			md:       DatabaseMetadata{IdentifierQuoteString: " ", StoresLowerCaseIdentifiers: true},
			expected: identifier.NewProcessing(identifier.NoQuoting, identifier.LowerCase),
		},
		{
			// Drivers that report no casing at all get the permissive upper-case
			// fallback rather than an error.
			name:     "no casing flags falls back to upper case",
			md:       DatabaseMetadata{IdentifierQuoteString: `"`},
			expected: identifier.NewProcessing(identifier.ANSIQuoting, identifier.UpperCase),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.md.IdentifierProcessing())
		})
	}
}

func TestResolve_ProductNames(t *testing.T) {
	resolver := NewResolver(dialect.NewRegistry(), nil)

	tests := []struct {
		product  string
		expected string
	}{
		{"HSQL Database Engine", dialect.NameHSQLDB},
		{"H2", dialect.NameH2},
		{"MySQL", dialect.NameMySQL},
		{"MariaDB", dialect.NameMariaDB},
		{"PostgreSQL", dialect.NamePostgres},
		{"Microsoft SQL Server", dialect.NameSQLServer},
		{"DB2/LINUXX8664", dialect.NameDB2},
		{"Oracle", dialect.NameOracle},
		{"SQLite", dialect.NameSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.product, func(t *testing.T) {
			d, err := resolver.Resolve(context.Background(), DatabaseMetadata{ProductName: tt.product})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.Name)
		})
	}
}

func TestResolve_MySQLUsesMetadataProcessing(t *testing.T) {
	resolver := NewResolver(dialect.NewRegistry(), nil)
	md := DatabaseMetadata{ProductName: "MySQL", IdentifierQuoteString: "`", SupportsMixedCaseIdentifiers: true}

	d, err := resolver.Resolve(context.Background(), md)
	require.NoError(t, err)
	assert.Equal(t, identifier.NewProcessing(identifier.NewQuoting("`"), identifier.AsIs), d.Processing)

	pg, err := resolver.Resolve(context.Background(), DatabaseMetadata{ProductName: "PostgreSQL"})
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres().Processing, pg.Processing, "other vendors keep their own processing")
}

func TestResolve_UnknownProduct(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	resolver := NewResolver(dialect.NewRegistry(), logger)

	_, err := resolver.Resolve(context.Background(), DatabaseMetadata{ProductName: "Informix"})
	assert.ErrorIs(t, err, ErrNoDialect)
	assert.Contains(t, buf.String(), "could not determine dialect")
	assert.Contains(t, buf.String(), "Informix")
}

func TestResolve_ProviderOrder(t *testing.T) {
	registry := dialect.NewRegistry()
	var calls []string
	custom := ProviderFunc(func(_ context.Context, md DatabaseMetadata) (*dialect.Dialect, bool, error) {
		calls = append(calls, "custom")
		if md.ProductName == "PostgreSQL" {
			return dialect.ANSI(), true, nil
		}
		return nil, false, nil
	})
	resolver := NewResolver(registry, nil, custom)

	d, err := resolver.Resolve(context.Background(), DatabaseMetadata{ProductName: "PostgreSQL"})
	require.NoError(t, err)
	assert.Equal(t, dialect.NameANSI, d.Name, "explicit providers come before the default")

	d, err = resolver.Resolve(context.Background(), DatabaseMetadata{ProductName: "MySQL"})
	require.NoError(t, err)
	assert.Equal(t, dialect.NameMySQL, d.Name, "unrecognized products fall through")
	assert.Equal(t, []string{"custom", "custom"}, calls)
}

func TestRegister_GlobalProvidersComeFirst(t *testing.T) {
	Register(ProviderFunc(func(_ context.Context, md DatabaseMetadata) (*dialect.Dialect, bool, error) {
		if md.ProductName == "Firebird" {
			return dialect.ANSI(dialect.WithIdentifierProcessing(identifier.None)), true, nil
		}
		return nil, false, nil
	}))

	d, err := NewResolver(nil, nil).Resolve(context.Background(), DatabaseMetadata{ProductName: "Firebird"})
	require.NoError(t, err)
	assert.Equal(t, identifier.None, d.Processing)

	assert.Panics(t, func() { Register(nil) })
}

func TestResolve_ProviderError(t *testing.T) {
	failing := ProviderFunc(func(context.Context, DatabaseMetadata) (*dialect.Dialect, bool, error) {
		return nil, false, sql.ErrConnDone
	})
	_, err := NewResolver(nil, nil, failing).Resolve(context.Background(), DatabaseMetadata{ProductName: "MySQL"})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestProbe_MySQL(t *testing.T) {
	tests := []struct {
		name           string
		version        string
		lowerCase      int
		expectedName   string
		expectedCasing identifier.LetterCasing
	}{
		{"mysql case sensitive", "8.0.36", 0, "MySQL", identifier.AsIs},
		{"mariadb lower case", "10.11.6-MariaDB", 1, "MariaDB", identifier.LowerCase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery("SELECT VERSION()").WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(tt.version))
			mock.ExpectQuery("SELECT @@lower_case_table_names").WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(tt.lowerCase))

			md, err := Probe(context.Background(), db, "mysql")
			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, md.ProductName)
			assert.Equal(t, tt.version, md.ProductVersion)
			assert.Equal(t, tt.expectedCasing, md.IdentifierProcessing().Casing)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestResolveDB_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT version()").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.2"))

	d, err := NewResolver(nil, nil).ResolveDB(context.Background(), db, "pgx")
	require.NoError(t, err)
	assert.Equal(t, dialect.NamePostgres, d.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProbe_Errors(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT @@VERSION").WillReturnError(sql.ErrConnDone)

	_, err = Probe(context.Background(), db, "sqlserver")
	assert.ErrorIs(t, err, sql.ErrConnDone)

	_, err = Probe(context.Background(), db, "informix")
	assert.ErrorIs(t, err, ErrNoDialect)
}

func TestResolveDB_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	family, err := DriverFamily(db.Driver(), "")
	require.NoError(t, err)
	assert.Equal(t, FamilySQLite, family, "the driver type is recognized without a name")

	d, err := NewResolver(nil, nil).ResolveDB(context.Background(), db, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, dialect.NameSQLite, d.Name)
}
