package dbmeta

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
)

// Driver families with a metadata probe.
const (
	FamilyMySQL     = "mysql"
	FamilyPostgres  = "postgres"
	FamilySQLite    = "sqlite"
	FamilySQLServer = "sqlserver"
)

var driverNameFamilies = map[string]string{
	"mysql":     FamilyMySQL,
	"postgres":  FamilyPostgres,
	"pgx":       FamilyPostgres,
	"pgx/v5":    FamilyPostgres,
	"sqlite":    FamilySQLite,
	"sqlite3":   FamilySQLite,
	"sqlserver": FamilySQLServer,
	"mssql":     FamilySQLServer,
}

// DriverFamily identifies the database behind a driver. The concrete driver
// type decides when it is known; wrapped drivers fall back to driverName.
func DriverFamily(drv driver.Driver, driverName string) (string, error) {
	switch drv.(type) {
	case *mysql.MySQLDriver, mysql.MySQLDriver:
		return FamilyMySQL, nil
	case *pq.Driver, pq.Driver, *stdlib.Driver:
		return FamilyPostgres, nil
	case *sqlite.Driver:
		return FamilySQLite, nil
	case *mssql.Driver:
		return FamilySQLServer, nil
	}
	if family, ok := driverNameFamilies[strings.ToLower(strings.TrimSpace(driverName))]; ok {
		return family, nil
	}
	return "", fmt.Errorf("%w: unsupported driver %q (%T)", ErrNoDialect, driverName, drv)
}

// Probe queries db for its product metadata.
func Probe(ctx context.Context, db *sql.DB, driverName string) (md DatabaseMetadata, err error) {
	family, err := DriverFamily(db.Driver(), driverName)
	if err != nil {
		return DatabaseMetadata{}, err
	}

	ctx, span := otel.Tracer("relgen/dbmeta").Start(ctx, "dbmeta.probe",
		trace.WithAttributes(attribute.String("db.driver.family", family)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("db.product.name", md.ProductName),
				attribute.String("db.product.version", md.ProductVersion),
			)
		}
		span.End()
	}()

	switch family {
	case FamilyMySQL:
		return probeMySQL(ctx, db)
	case FamilyPostgres:
		return probeSimple(ctx, db, "SELECT version()", DatabaseMetadata{
			ProductName:                "PostgreSQL",
			IdentifierQuoteString:      `"`,
			StoresLowerCaseIdentifiers: true,
		})
	case FamilySQLServer:
		return probeSimple(ctx, db, "SELECT @@VERSION", DatabaseMetadata{
			ProductName:                  "Microsoft SQL Server",
			IdentifierQuoteString:        `"`,
			SupportsMixedCaseIdentifiers: true,
		})
	default:
		return probeSimple(ctx, db, "SELECT sqlite_version()", DatabaseMetadata{
			ProductName:                  "SQLite",
			IdentifierQuoteString:        `"`,
			SupportsMixedCaseIdentifiers: true,
		})
	}
}

func probeSimple(ctx context.Context, db *sql.DB, versionQuery string, md DatabaseMetadata) (DatabaseMetadata, error) {
	if err := db.QueryRowContext(ctx, versionQuery).Scan(&md.ProductVersion); err != nil {
		return DatabaseMetadata{}, fmt.Errorf("failed to query %s version: %w", md.ProductName, err)
	}
	return md, nil
}

// probeMySQL tells MySQL from MariaDB by the version string and derives
// identifier case handling from lower_case_table_names: 0 keeps names as
// written, 1 and 2 store or compare them in lower case.
func probeMySQL(ctx context.Context, db *sql.DB) (DatabaseMetadata, error) {
	md := DatabaseMetadata{ProductName: "MySQL", IdentifierQuoteString: "`"}
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&md.ProductVersion); err != nil {
		return DatabaseMetadata{}, fmt.Errorf("failed to query MySQL version: %w", err)
	}
	if strings.Contains(strings.ToLower(md.ProductVersion), "mariadb") {
		md.ProductName = "MariaDB"
	}

	var lowerCaseTableNames int
	if err := db.QueryRowContext(ctx, "SELECT @@lower_case_table_names").Scan(&lowerCaseTableNames); err != nil {
		return DatabaseMetadata{}, fmt.Errorf("failed to query lower_case_table_names: %w", err)
	}
	if lowerCaseTableNames == 0 {
		md.SupportsMixedCaseIdentifiers = true
	} else {
		md.StoresLowerCaseIdentifiers = true
	}
	return md, nil
}
