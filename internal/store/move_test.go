package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveTable(t *testing.T) {
	s := newTestStore(t)
	seedTable(t, s, "parts")
	require.NoError(t, s.CreateDatabase("Archive"))

	var stages []string
	err := s.MoveTable(context.Background(), "", "Archive", "parts", false,
		func(stage string, percent int, message string) {
			stages = append(stages, stage)
			assert.LessOrEqual(t, percent, 100)
		})
	require.NoError(t, err)

	assert.Equal(t, "validating", stages[0])
	assert.Equal(t, "done", stages[len(stages)-1])
	assert.Contains(t, stages, "copying")

	// Source is gone, target carries the data and metadata.
	exists, err := s.TableExists("", "parts")
	require.NoError(t, err)
	assert.False(t, exists)

	page, err := s.GetPage("Archive", "parts", PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalRows)

	infos, err := s.ListTables("Archive")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "parts.xlsx", infos[0].OriginalFilename)
}

func TestMoveTableMultipleBatches(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTable("", "readings", []ColumnDef{
		{Name: "seq", Type: "INTEGER"},
	}))
	total := moveBatchSize*2 + 17
	batch := make([][]any, total)
	for i := range batch {
		batch[i] = []any{int64(i)}
	}
	_, err := s.InsertRows("", "readings", []string{"seq"}, batch)
	require.NoError(t, err)
	require.NoError(t, s.CreateDatabase("Archive"))

	require.NoError(t, s.MoveTable(context.Background(), "", "Archive", "readings", false, nil))

	// Every row arrives exactly once.
	db, err := s.DB("Archive")
	require.NoError(t, err)
	var n, distinct int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*), COUNT(DISTINCT seq) FROM readings`).Scan(&n, &distinct))
	assert.Equal(t, total, n)
	assert.Equal(t, total, distinct)
}

func TestMoveTableKeepSource(t *testing.T) {
	s := newTestStore(t)
	seedTable(t, s, "parts")
	require.NoError(t, s.CreateDatabase("Archive"))

	require.NoError(t, s.MoveTable(context.Background(), "", "Archive", "parts", true, nil))

	exists, err := s.TableExists("", "parts")
	require.NoError(t, err)
	assert.True(t, exists)

	page, err := s.GetPage("Archive", "parts", PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalRows)
}

func TestMoveTableTargetCollision(t *testing.T) {
	s := newTestStore(t)
	seedTable(t, s, "parts")
	require.NoError(t, s.CreateDatabase("Archive"))
	require.NoError(t, s.CreateTable("Archive", "parts", []ColumnDef{{Name: "x", Type: "TEXT"}}))

	err := s.MoveTable(context.Background(), "", "Archive", "parts", false, nil)
	assert.ErrorIs(t, err, ErrTableExists)

	// Source untouched on failure.
	exists, err := s.TableExists("", "parts")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMoveTableMissingSource(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateDatabase("Archive"))

	err := s.MoveTable(context.Background(), "", "Archive", "ghost", false, nil)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestMoveTableCancelled(t *testing.T) {
	s := newTestStore(t)
	seedTable(t, s, "parts")
	require.NoError(t, s.CreateDatabase("Archive"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.MoveTable(ctx, "", "Archive", "parts", false, nil)
	assert.ErrorIs(t, err, context.Canceled)

	// Cancellation between batches leaves the source in place.
	exists, err := s.TableExists("", "parts")
	require.NoError(t, err)
	assert.True(t, exists)
}
