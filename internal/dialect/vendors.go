package dialect

import (
	sq "github.com/Masterminds/squirrel"

	"relgen/internal/identifier"
)

// Vendor tags.
const (
	NameANSI      = "ansi"
	NameH2        = "h2"
	NameHSQLDB    = "hsqldb"
	NamePostgres  = "postgres"
	NameMySQL     = "mysql"
	NameMariaDB   = "mariadb"
	NameSQLServer = "sqlserver"
	NameOracle    = "oracle"
	NameDB2       = "db2"
	NameSQLite    = "sqlite"
)

var (
	ansiLimit = LimitClause{
		Limit:       "FETCH FIRST %d ROWS ONLY",
		Offset:      "OFFSET %d ROWS",
		LimitOffset: "OFFSET %d ROWS FETCH FIRST %d ROWS ONLY",
		OffsetFirst: true,
	}
	ansiLock = LockClause{Write: "FOR UPDATE", Read: "FOR SHARE"}

	mysqlLimit = LimitClause{
		Limit: "LIMIT %d",
		// MySQL has no offset-only form; the count is the largest unsigned BIGINT.
		Offset:      "LIMIT %d, 18446744073709551615",
		LimitOffset: "LIMIT %d, %d",
		OffsetFirst: true,
	}
	mysqlLock = LockClause{Write: "FOR UPDATE", Read: "LOCK IN SHARE MODE"}
)

// templates is the capability table keyed by vendor tag.
var templates = map[string]Dialect{
	NameANSI: {
		Name:         NameANSI,
		Processing:   identifier.ANSI,
		Limit:        ansiLimit,
		Lock:         ansiLock,
		NullOrdering: true,
	},
	NameH2: {
		Name:       NameH2,
		Processing: identifier.ANSI,
		Limit: LimitClause{
			Limit:       "LIMIT %d",
			Offset:      "OFFSET %d",
			LimitOffset: "LIMIT %d OFFSET %d",
		},
		Lock:         LockClause{Write: "FOR UPDATE", Read: "FOR UPDATE"},
		Arrays:       ArrayColumns{Supported: true},
		IDGeneration: IDGeneration{SequenceQuery: "SELECT NEXT VALUE FOR %s"},
		NullOrdering: true,
	},
	NameHSQLDB: {
		Name:       NameHSQLDB,
		Processing: identifier.ANSI,
		Limit: LimitClause{
			Limit:       "LIMIT %d",
			Offset:      "OFFSET %d",
			LimitOffset: "OFFSET %d LIMIT %d",
			OffsetFirst: true,
		},
		Lock:         LockClause{Write: "FOR UPDATE", Read: "FOR UPDATE"},
		Arrays:       ArrayColumns{Supported: true},
		IDGeneration: IDGeneration{SequenceQuery: "CALL NEXT VALUE FOR %s"},
		NullOrdering: true,
	},
	NamePostgres: {
		Name:       NamePostgres,
		Processing: identifier.NewProcessing(identifier.ANSIQuoting, identifier.LowerCase),
		Limit: LimitClause{
			Limit:       "LIMIT %d",
			Offset:      "OFFSET %d",
			LimitOffset: "LIMIT %d OFFSET %d",
		},
		Lock: LockClause{Write: "FOR UPDATE", Read: "FOR SHARE", OfTables: true},
		Arrays: ArrayColumns{
			Supported: true,
			TypeNames: map[string]string{"DOUBLE": "FLOAT8", "REAL": "FLOAT4"},
		},
		IDGeneration: IDGeneration{
			SequenceQuery: "SELECT nextval('%s')",
			Retrieval:     KeyReturning,
		},
		NullOrdering: true,
		Placeholder:  sq.Dollar,
		Converters:   postgresConverters(),
	},
	NameMySQL: {
		Name:       NameMySQL,
		Processing: identifier.NewProcessing(identifier.NewQuoting("`"), identifier.LowerCase),
		Limit:      mysqlLimit,
		Lock:       mysqlLock,
		Converters: mysqlConverters(),
	},
	NameMariaDB: {
		Name:         NameMariaDB,
		Processing:   identifier.NewProcessing(identifier.NewQuoting("`"), identifier.LowerCase),
		Limit:        mysqlLimit,
		Lock:         mysqlLock,
		IDGeneration: IDGeneration{SequenceQuery: "SELECT NEXTVAL(%s)"},
		Converters:   mysqlConverters(),
	},
	NameSQLServer: {
		Name:       NameSQLServer,
		Processing: identifier.NewProcessing(identifier.Quoting{Prefix: "[", Suffix: "]"}, identifier.AsIs),
		Limit: LimitClause{
			Limit:       "OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY",
			Offset:      "OFFSET %d ROWS",
			LimitOffset: "OFFSET %d ROWS FETCH NEXT %d ROWS ONLY",
			OffsetFirst: true,
		},
		Lock: LockClause{
			Write:    "WITH (UPDLOCK, ROWLOCK)",
			Read:     "WITH (HOLDLOCK, ROWLOCK)",
			Position: AfterFromTable,
		},
		IDGeneration: IDGeneration{
			SequenceQuery: "SELECT NEXT VALUE FOR %s",
			Retrieval:     KeyOutputInserted,
		},
		DefaultValuesInsert: " DEFAULT VALUES",
		PagingOrderBy:       "ORDER BY (SELECT 1)",
		Placeholder:         sq.AtP,
		Converters:          sqlServerConverters(),
	},
	NameOracle: {
		Name:       NameOracle,
		Processing: identifier.ANSI,
		Limit:      ansiLimit,
		Lock:       LockClause{Write: "FOR UPDATE", Read: "FOR UPDATE"},
		IDGeneration: IDGeneration{
			DriverRequiresKeyColumnNames: true,
			SequenceQuery:                "SELECT %s.nextval FROM DUAL",
			Retrieval:                    KeyReturningInto,
		},
		NullOrdering: true,
		Placeholder:  sq.Colon,
		Converters:   oracleConverters(),
	},
	NameDB2: {
		Name:       NameDB2,
		Processing: identifier.ANSI,
		Limit: LimitClause{
			Limit:       "FETCH FIRST %d ROWS ONLY",
			Offset:      "OFFSET %d ROWS",
			LimitOffset: "OFFSET %d ROWS FETCH FIRST %d ROWS ONLY",
			OffsetFirst: true,
		},
		Lock: LockClause{Write: "FOR UPDATE WITH RS", Read: "FOR READ ONLY WITH RS"},
		IDGeneration: IDGeneration{
			DriverRequiresKeyColumnNames: true,
			SequenceQuery:                "VALUES NEXT VALUE FOR %s",
			Retrieval:                    KeyFinalTable,
		},
		NullOrdering: true,
	},
	NameSQLite: {
		Name:       NameSQLite,
		Processing: identifier.NewProcessing(identifier.ANSIQuoting, identifier.AsIs),
		Limit: LimitClause{
			Limit:       "LIMIT %d",
			Offset:      "LIMIT -1 OFFSET %d",
			LimitOffset: "LIMIT %d OFFSET %d",
		},
		DefaultValuesInsert: " DEFAULT VALUES",
		NullOrdering:        true,
	},
}

// ANSI returns the SQL standard dialect.
func ANSI(opts ...Option) *Dialect { return build(templates[NameANSI], opts) }

// H2 returns the H2 dialect.
func H2(opts ...Option) *Dialect { return build(templates[NameH2], opts) }

// HSQLDB returns the HyperSQL dialect.
func HSQLDB(opts ...Option) *Dialect { return build(templates[NameHSQLDB], opts) }

// Postgres returns the PostgreSQL dialect.
func Postgres(opts ...Option) *Dialect { return build(templates[NamePostgres], opts) }

// MySQL returns the MySQL dialect. Its identifier processing usually comes
// from database metadata.
func MySQL(opts ...Option) *Dialect { return build(templates[NameMySQL], opts) }

// MariaDB returns the MariaDB dialect.
func MariaDB(opts ...Option) *Dialect { return build(templates[NameMariaDB], opts) }

// SQLServer returns the Microsoft SQL Server dialect.
func SQLServer(opts ...Option) *Dialect { return build(templates[NameSQLServer], opts) }

// Oracle returns the Oracle dialect.
func Oracle(opts ...Option) *Dialect { return build(templates[NameOracle], opts) }

// DB2 returns the IBM Db2 dialect.
func DB2(opts ...Option) *Dialect { return build(templates[NameDB2], opts) }

// SQLite returns the SQLite dialect.
func SQLite(opts ...Option) *Dialect { return build(templates[NameSQLite], opts) }
