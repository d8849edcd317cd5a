package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socioprep/internal/storage"
)

type fakePool struct {
	table  pgx.Identifier
	cols   []string
	rows   [][]any
	execs  []string
	err    error
	closed bool
}

func (f *fakePool) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.table, f.cols = table, columns
	for src.Next() {
		v, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.rows = append(f.rows, v)
	}
	return int64(len(f.rows)), nil
}

func (f *fakePool) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), f.err
}

func (f *fakePool) Close() { f.closed = true }

func TestBuildCreateTableSQL(t *testing.T) {
	got, err := BuildCreateTableSQL(storage.TableDef{
		FQN: "public.merged",
		Columns: []storage.ColumnDef{
			{Name: "codigo", Type: storage.TypeText},
			{Name: "reporting_year", Type: storage.TypeDate},
			{Name: "gini", Type: storage.TypeFloat, Nullable: true},
			{Name: `we"ird`, Type: storage.TypeInteger},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"public\".\"merged\" (\n"+
		"  \"codigo\" TEXT NOT NULL,\n"+
		"  \"reporting_year\" DATE NOT NULL,\n"+
		"  \"gini\" DOUBLE PRECISION,\n"+
		"  \"we\"\"ird\" BIGINT NOT NULL\n);", got)
}

func TestRepository_CopyFromAndExec(t *testing.T) {
	fp := &fakePool{}
	r := &Repository{pool: fp, cfg: Config{Table: "public.merged"}}

	n, err := r.CopyFrom(context.Background(), []string{"codigo", "gini"}, [][]any{{"USA_2005", 40.5}, {"TCD_2011", nil}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, pgx.Identifier{"public", "merged"}, fp.table)
	assert.Equal(t, []any{"TCD_2011", nil}, fp.rows[1])

	n, err = r.CopyFrom(context.Background(), []string{"codigo"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, r.Exec(context.Background(), "SELECT 1"))
	require.NoError(t, r.Exec(context.Background(), "   "))
	assert.Equal(t, []string{"SELECT 1"}, fp.execs)

	r.Close()
	assert.True(t, fp.closed)
}

func TestRepository_CopyFromError(t *testing.T) {
	fp := &fakePool{err: &pgconn.PgError{Code: "23502", Detail: "null value in column \"codigo\""}}
	r := &Repository{pool: fp, cfg: Config{Table: "merged"}}
	_, err := r.CopyFrom(context.Background(), []string{"codigo"}, [][]any{{nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "23502")
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
}

func TestFactoryRegistration(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	var got Config
	newRepository = func(_ context.Context, cfg Config) (*Repository, error) {
		got = cfg
		return &Repository{pool: &fakePool{}, cfg: cfg}, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://x", Table: "merged"})
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, Config{DSN: "postgres://x", Table: "merged"}, got)

	stmt, err := storage.BuildDDL("postgres", storage.TableDef{FQN: "merged", Columns: []storage.ColumnDef{{Name: "a"}}})
	require.NoError(t, err)
	assert.Contains(t, stmt, `"merged"`)
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	_, err := NewRepository(context.Background(), Config{})
	assert.Error(t, err)
}
