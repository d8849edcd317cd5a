package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socioprep/internal/logging"
	"socioprep/internal/storage"
	"socioprep/internal/table"
	"socioprep/pkg/records"
)

func cleaned() *table.Table {
	t := table.New("merged", []string{"codigo", "reporting_year", "gini", "latitude"})
	t.Append(records.Record{"codigo": "USA_2005", "reporting_year": time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), "gini": 40.5, "latitude": int64(38)})
	t.Append(records.Record{"codigo": "TCD_2011", "reporting_year": time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), "gini": nil, "latitude": int64(15)})
	t.Append(records.Record{"codigo": "TCD_2003", "reporting_year": time.Date(2003, 1, 1, 0, 0, 0, 0, time.UTC), "gini": 39.8, "latitude": int64(15)})
	return t
}

func TestBuildCreateTableSQL(t *testing.T) {
	got, err := BuildCreateTableSQL(storage.TableDef{FQN: "merged", Columns: []storage.ColumnDef{
		{Name: "codigo", Type: storage.TypeText},
		{Name: "gini", Type: storage.TypeFloat, Nullable: true},
		{Name: "flag", Type: storage.TypeBool},
	}})
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "merged" ("codigo" TEXT NOT NULL, "gini" REAL, "flag" INTEGER NOT NULL)`, got)
}

func TestWriteTable_InMemory(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: ":memory:", Table: "merged"})
	require.NoError(t, err)
	defer repo.Close()

	src := cleaned()
	require.NoError(t, storage.EnsureTable(ctx, "sqlite", repo, storage.TableDef{FQN: "merged", Columns: storage.InferColumns(src)}))
	require.NoError(t, storage.EnsureTable(ctx, "sqlite", repo, storage.TableDef{FQN: "merged", Columns: storage.InferColumns(src)}),
		"create is idempotent")

	n, err := storage.WriteTable(ctx, repo, src, storage.WriteOptions{BatchSize: 2, Log: logging.Discard()})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	db := repo.(*Repository).DB()
	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM merged`).Scan(&count))
	assert.Equal(t, 3, count)

	var (
		year string
		gini *float64
	)
	require.NoError(t, db.QueryRowContext(ctx, `SELECT reporting_year, gini FROM merged WHERE codigo = 'TCD_2011'`).Scan(&year, &gini))
	assert.Equal(t, "2011-01-01", year)
	assert.Nil(t, gini)
}

func TestCopyFrom_Validation(t *testing.T) {
	repo, err := NewRepository(context.Background(), Config{DSN: ":memory:", Table: "t"})
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.CopyFrom(context.Background(), nil, [][]any{{1}})
	assert.Error(t, err)

	require.NoError(t, repo.Exec(context.Background(), `CREATE TABLE t (a INTEGER, b INTEGER)`))
	_, err = repo.CopyFrom(context.Background(), []string{"a", "b"}, [][]any{{1}})
	assert.Error(t, err)

	n, err := repo.CopyFrom(context.Background(), []string{"a", "b"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	_, err := NewRepository(context.Background(), Config{})
	assert.Error(t, err)
}
