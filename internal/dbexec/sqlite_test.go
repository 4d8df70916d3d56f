package dbexec

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"relgen/internal/dialect"
	"relgen/internal/mapping"
	"relgen/internal/sqlast"
	"relgen/internal/sqlgen"
)

type Customer struct {
	ID      int64
	Name    string
	Version int64 `db:",version"`
	Profile *Profile
	Orders  []Order
}

type Profile struct {
	Bio string
}

type Order struct {
	Total int64
}

const sqliteSchema = `
CREATE TABLE customer (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, version INTEGER);
CREATE TABLE profile (customer INTEGER, bio TEXT);
CREATE TABLE "order" (customer INTEGER, customer_key INTEGER, total INTEGER);
`

func openSQLite(t *testing.T) (*sql.DB, *sqlgen.Source) {
	t.Helper()
	db, _, err := Open("sqlite", ":memory:", OpenOptions{})
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)

	ctx := mapping.NewContext(mapping.WithForceQuote(true))
	require.NoError(t, ctx.Register(Customer{}))
	return db, sqlgen.NewSource(ctx, dialect.SQLite())
}

func TestSQLite_AggregateRoundTrip(t *testing.T) {
	db, src := openSQLite(t)
	ctx := context.Background()

	r, err := NewRunner(NewStandardExecutor(db), src.Dialect())
	require.NoError(t, err)

	customers, err := src.Generator(ctx, "Customer")
	require.NoError(t, err)
	profiles, err := src.Generator(ctx, "Profile")
	require.NoError(t, err)
	orders, err := src.Generator(ctx, "Order")
	require.NoError(t, err)

	id, err := r.Insert(ctx, customers, Params{"name": "Ada", "version": int64(1)}, mapping.EmptyIdentifier())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	profilePath, err := customers.RootPath().Resolve("profile")
	require.NoError(t, err)
	backRef, err := mapping.BackReference(profilePath, id)
	require.NoError(t, err)
	_, err = r.Insert(ctx, profiles, Params{"bio": "mathematician"}, backRef)
	require.NoError(t, err)

	ordersPath, err := customers.RootPath().Resolve("orders")
	require.NoError(t, err)
	for i, total := range []int64{30, 10, 20} {
		ref, err := mapping.BackReference(ordersPath, id)
		require.NoError(t, err)
		ref, err = ref.WithQualifier(ordersPath, i)
		require.NoError(t, err)
		_, err = r.Insert(ctx, orders, Params{"total": total}, ref)
		require.NoError(t, err)
	}

	t.Run("find one joins the singular reference", func(t *testing.T) {
		query, err := customers.FindOne()
		require.NoError(t, err)
		rows, err := r.Query(ctx, query, Params{sqlgen.IDParameter: id})
		require.NoError(t, err)
		defer rows.Close()

		require.True(t, rows.Next())
		var (
			gotID, version int64
			name, bio      string
			profile        sql.NullInt64
		)
		require.NoError(t, rows.Scan(&gotID, &name, &version, &profile, &bio))
		assert.Equal(t, int64(1), gotID)
		assert.Equal(t, "Ada", name)
		assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, profile)
		assert.Equal(t, "mathematician", bio)
		assert.False(t, rows.Next())
		require.NoError(t, rows.Err())
	})

	t.Run("collection elements come back in index order", func(t *testing.T) {
		parent, err := mapping.BackReference(ordersPath, id)
		require.NoError(t, err)
		query, err := orders.FindAllByPath(parent, ordersPath)
		require.NoError(t, err)
		rows, err := r.Query(ctx, query, ParamsOf(parent))
		require.NoError(t, err)
		defer rows.Close()

		var totals []int64
		for rows.Next() {
			var total, key int64
			require.NoError(t, rows.Scan(&total, &key))
			totals = append(totals, total)
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, []int64{30, 10, 20}, totals)
	})

	t.Run("optimistic locking update", func(t *testing.T) {
		query, err := customers.UpdateWithVersion(int64(1))
		require.NoError(t, err)
		res, err := r.Exec(ctx, query, Params{"id": id, "name": "Ada Lovelace", "version": int64(2)})
		require.NoError(t, err)
		affected, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)

		res, err = r.Exec(ctx, query, Params{"id": id, "name": "stale", "version": int64(2)})
		require.NoError(t, err)
		affected, err = res.RowsAffected()
		require.NoError(t, err)
		assert.Zero(t, affected, "the version moved on")
	})

	t.Run("sorted and paged", func(t *testing.T) {
		_, err := r.Insert(ctx, customers, Params{"name": "Brian", "version": int64(1)}, mapping.EmptyIdentifier())
		require.NoError(t, err)

		query, err := customers.FindAllPaged(sqlgen.Page{Number: 1, Size: 1, Sort: sqlgen.Sort{sqlgen.Asc("name")}})
		require.NoError(t, err)
		assert.Equal(t, []string{"Brian"}, scanNames(t, r, query))

		query, err = customers.FindAllPaged(sqlgen.Page{Number: 0, Size: 2, Sort: sqlgen.Sort{sqlgen.Asc("name")}})
		require.NoError(t, err)
		rows, err := r.Query(ctx, query, nil)
		require.NoError(t, err)
		defer rows.Close()

		hasProfile := map[string]bool{}
		for rows.Next() {
			var (
				rowID, version int64
				name           string
				profile        sql.NullInt64
				bio            sql.NullString
			)
			require.NoError(t, rows.Scan(&rowID, &name, &version, &profile, &bio))
			hasProfile[name] = profile.Valid
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, map[string]bool{"Ada Lovelace": true, "Brian": false}, hasProfile)
	})

	t.Run("cascade and count", func(t *testing.T) {
		query, err := customers.DeleteInByPath(ordersPath)
		require.NoError(t, err)
		_, err = r.Exec(ctx, query, Params{sqlgen.IDsParameter: []int64{id.(int64)}})
		require.NoError(t, err)

		var remaining int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "order"`).Scan(&remaining))
		assert.Zero(t, remaining)

		query, err = customers.Count()
		require.NoError(t, err)
		rows, err := r.Query(ctx, query, nil)
		require.NoError(t, err)
		defer rows.Close()
		require.True(t, rows.Next())
		var count int64
		require.NoError(t, rows.Scan(&count))
		assert.Equal(t, int64(2), count)
	})

	t.Run("locking needs a lock clause", func(t *testing.T) {
		_, err := customers.AcquireLockByID(sqlast.LockPessimisticWrite)
		assert.ErrorIs(t, err, sqlgen.ErrIllegalArgument)
	})
}

func scanNames(t *testing.T, r *Runner, query string) []string {
	t.Helper()
	rows, err := r.Query(context.Background(), query, nil)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			rowID, version int64
			name           string
			profile        sql.NullInt64
			bio            sql.NullString
		)
		require.NoError(t, rows.Scan(&rowID, &name, &version, &profile, &bio))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}
