package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedFiles(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Contains(t, pg, "001_sessions.sql")

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	assert.Contains(t, ch, "001_price_bars.sql")
}

func TestClickhouseMigrations_OneStatementEach(t *testing.T) {
	data, err := fs.ReadFile(ClickhouseFS, "clickhouse/001_price_bars.sql")
	require.NoError(t, err)

	stmts := splitStatements(string(data))
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "ReplacingMergeTree")
}

func TestSplitStatements(t *testing.T) {
	in := `-- header
CREATE TABLE a (x Int8) ENGINE = Memory;

-- second
CREATE TABLE b (y Int8) ENGINE = Memory;
`
	stmts := splitStatements(in)
	assert.Equal(t, []string{
		"CREATE TABLE a (x Int8) ENGINE = Memory",
		"CREATE TABLE b (y Int8) ENGINE = Memory",
	}, stmts)
}
