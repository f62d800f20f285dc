package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReadOnlyQuery(t *testing.T) {
	valid := []string{
		"SELECT * FROM parts",
		"select item, qty from parts where qty > 5",
		"WITH big AS (SELECT * FROM parts WHERE qty > 5) SELECT * FROM big",
		"SELECT COUNT(*) FROM parts;",
	}
	for _, q := range valid {
		assert.NoError(t, ValidateReadOnlyQuery(q), q)
	}

	invalid := []string{
		"",
		"   ",
		"DELETE FROM parts",
		"SELECT * FROM parts; DROP TABLE parts",
		"INSERT INTO parts VALUES (1)",
		"SELECT * FROM parts WHERE item = 'x'; UPDATE parts SET qty = 0",
		"PRAGMA journal_mode = DELETE",
		"CREATE TABLE evil (x)",
		"ATTACH DATABASE 'other.db' AS other",
		"SELECT 1 UNION SELECT sql FROM sqlite_master; VACUUM",
	}
	for _, q := range invalid {
		assert.ErrorIs(t, ValidateReadOnlyQuery(q), ErrQueryNotAllowed, q)
	}
}

func TestValidateReadOnlyQueryKeywordInIdentifier(t *testing.T) {
	// Forbidden keywords embedded in identifiers are fine.
	assert.NoError(t, ValidateReadOnlyQuery("SELECT last_update FROM parts"))
	assert.NoError(t, ValidateReadOnlyQuery("SELECT * FROM deleted_items"))
	assert.ErrorIs(t, ValidateReadOnlyQuery("SELECT * FROM parts WHERE 1=1 AND (SELECT 1) UPDATE"), ErrQueryNotAllowed)
}

func TestValidateReadOnlyQuerySkipsLiterals(t *testing.T) {
	// Semicolons and keywords inside string literals are data, not SQL.
	valid := []string{
		"SELECT * FROM parts WHERE note = 'a;b'",
		"SELECT * FROM parts WHERE status = 'updated'",
		"SELECT * FROM parts WHERE note = 'it''s; done' AND status = 'DELETE'",
		`SELECT "drop zone" FROM parts`,
		"SELECT * FROM [insert log]",
	}
	for _, q := range valid {
		assert.NoError(t, ValidateReadOnlyQuery(q), q)
	}

	// Real statements after a closed literal are still caught.
	assert.ErrorIs(t, ValidateReadOnlyQuery(
		"SELECT * FROM parts WHERE note = 'a;b'; DROP TABLE parts"), ErrQueryNotAllowed)
	assert.ErrorIs(t, ValidateReadOnlyQuery(
		"SELECT * FROM parts WHERE note = 'x' UNION SELECT 1 WHERE 1=1; DELETE FROM parts"), ErrQueryNotAllowed)
}

func TestExecuteQuery(t *testing.T) {
	s := newTestStore(t)
	seedTable(t, s, "parts")

	res, err := s.ExecuteQuery("", "SELECT item, qty FROM parts ORDER BY item", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"item", "qty"}, res.Columns)
	require.Equal(t, 3, res.RowCount)
	assert.Equal(t, "bolt", res.Rows[0]["item"])
	assert.Nil(t, res.Rows[2]["qty"])
}

func TestExecuteQueryLimit(t *testing.T) {
	s := newTestStore(t)
	seedTable(t, s, "parts")

	res, err := s.ExecuteQuery("", "SELECT * FROM parts", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
}

func TestExecuteQueryRejectsWrites(t *testing.T) {
	s := newTestStore(t)
	seedTable(t, s, "parts")

	_, err := s.ExecuteQuery("", "DELETE FROM parts", 0)
	assert.ErrorIs(t, err, ErrQueryNotAllowed)

	// Nothing was deleted.
	page, err := s.GetPage("", "parts", PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalRows)
}

func TestMaterializeQuery(t *testing.T) {
	s := newTestStore(t)
	seedTable(t, s, "parts")

	n, err := s.MaterializeQuery("", "SELECT item, qty FROM parts WHERE qty IS NOT NULL", "in_stock")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := s.GetPage("", "in_stock", PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalRows)
	assert.Equal(t, []string{"item", "qty"}, page.Columns)

	infos, err := s.ListTables("")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "in_stock", infos[0].TableName)
	assert.Equal(t, "query result", infos[0].OriginalFilename)
	assert.Equal(t, 2, infos[0].RowCount)
}

func TestMaterializeQueryErrors(t *testing.T) {
	s := newTestStore(t)
	seedTable(t, s, "parts")

	_, err := s.MaterializeQuery("", "DROP TABLE parts", "x")
	assert.ErrorIs(t, err, ErrQueryNotAllowed)

	_, err = s.MaterializeQuery("", "SELECT * FROM parts", "parts")
	assert.ErrorIs(t, err, ErrTableExists)

	_, err = s.MaterializeQuery("", "SELECT * FROM parts", "table_metadata")
	assert.ErrorIs(t, err, ErrInvalidName)
}
