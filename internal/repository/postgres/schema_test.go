package postgres

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The repository's SQL and the migrations live in different files and only
// meet on a live database. This test pins the columns the queries depend on
// to the DDL so a rename on either side fails in CI instead of in production.
func TestMigrationsDeclareQueriedColumns(t *testing.T) {
	ddl := readMigrations(t)

	wantColumns := map[string][]string{
		"conversations": {
			"id", "type", "name", "creator_id", "dm_key",
			"created_at", "last_activity_at",
		},
		"conversation_participants": {
			"conversation_id", "user_id", "display_name", "external_id",
			"last_read_sequence",
		},
		"conversation_sequences": {"conversation_id", "next_sequence"},
		"messages": {
			"id", "conversation_id", "sender_id", "sequence",
			"content", "sent_at",
		},
		"outbox_events": {
			"id", "aggregate_type", "aggregate_id", "event_type",
			"payload", "processed_at",
		},
		"members":      {"user_id", "display_name", "external_id"},
		"member_links": {"owner_id", "member_id"},
	}

	for table, columns := range wantColumns {
		body, ok := ddl[table]
		require.True(t, ok, "no CREATE TABLE for %s in migrations", table)
		for _, col := range columns {
			require.Regexp(t,
				regexp.MustCompile(`(?m)^\s*`+col+`\s`),
				body,
				"table %s: column %s queried by the repository but absent from the migrations", table, col,
			)
		}
	}

	// The pending-outbox scan relies on the NULL-while-pending convention.
	require.Contains(t, ddl["outbox_events"], "processed_at   TIMESTAMPTZ")
}

// readMigrations maps table name to its CREATE TABLE body.
func readMigrations(t *testing.T) map[string]string {
	t.Helper()

	files, err := filepath.Glob(filepath.Join("..", "..", "..", "migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var all strings.Builder
	for _, f := range files {
		b, err := os.ReadFile(f)
		require.NoError(t, err)
		all.Write(b)
		all.WriteString("\n")
	}

	out := map[string]string{}
	re := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*?)\n\);`)
	for _, m := range re.FindAllStringSubmatch(all.String(), -1) {
		out[m[1]] = m[2]
	}
	return out
}
