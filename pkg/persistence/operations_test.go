package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testOps(t *testing.T) *Operations {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDatabase(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewOperations(db)
}

func TestSaveCommandAssignsIDAndTimestamp(t *testing.T) {
	ops := testOps(t)

	before := time.Now().UTC()
	cmd, err := ops.SaveCommand("build a todo app", []AgentMessage{
		{Role: "architect", Message: "Use a three-tier design."},
	})
	after := time.Now().UTC()

	require.NoError(t, err)
	require.NotEmpty(t, cmd.ID)
	require.False(t, cmd.Timestamp.Before(before))
	require.False(t, cmd.Timestamp.After(after))
}

func TestSaveThenListRecentRoundTrip(t *testing.T) {
	ops := testOps(t)

	saved, err := ops.SaveCommand("build a todo app", []AgentMessage{
		{Role: "architect", Message: "X"},
		{Role: "backend", Message: "Y"},
	})
	require.NoError(t, err)

	listed, err := ops.ListRecent(1)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	got := listed[0]
	require.Equal(t, saved.ID, got.ID)
	require.Equal(t, "build a todo app", got.Transcript)
	require.Len(t, got.AgentResponses, 2)
	require.Equal(t, "X", got.AgentResponses[0].Message)
	require.Equal(t, "architect", got.AgentResponses[0].Role)
	require.Equal(t, saved.Timestamp.Format(time.RFC3339Nano), got.Timestamp.Format(time.RFC3339Nano))
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	ops := testOps(t)

	_, err := ops.SaveCommand("first", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = ops.SaveCommand("second", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = ops.SaveCommand("third", nil)
	require.NoError(t, err)

	listed, err := ops.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "third", listed[0].Transcript)
	require.Equal(t, "second", listed[1].Transcript)
}

func TestListRecentNoLimitReturnsAll(t *testing.T) {
	ops := testOps(t)

	for _, tr := range []string{"a", "b", "c"} {
		_, err := ops.SaveCommand(tr, nil)
		require.NoError(t, err)
	}

	listed, err := ops.ListRecent(0)
	require.NoError(t, err)
	require.Len(t, listed, 3)
}

func TestSearchCommandsFindsByTranscript(t *testing.T) {
	ops := testOps(t)

	_, err := ops.SaveCommand("research authentication options", []AgentMessage{
		{Role: "architect", Message: "OAuth is the common choice."},
	})
	require.NoError(t, err)
	_, err = ops.SaveCommand("add a dark mode toggle", nil)
	require.NoError(t, err)

	results, err := ops.SearchCommands("authentication", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "research authentication options", results[0].Transcript)
}

func TestSearchCommandsFallsBackToRecency(t *testing.T) {
	ops := testOps(t)

	_, err := ops.SaveCommand("only command", nil)
	require.NoError(t, err)

	// Force the MATCH query to fail by dropping the index.
	_, err = ops.db.Exec(`DROP TABLE commands_fts`)
	require.NoError(t, err)

	results, err := ops.SearchCommands("anything", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "only command", results[0].Transcript)
}

func TestSearchCommandsEmptyQueryListsRecent(t *testing.T) {
	ops := testOps(t)

	_, err := ops.SaveCommand("something", nil)
	require.NoError(t, err)

	results, err := ops.SearchCommands("   ", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestGetCommandMissingReturnsNil(t *testing.T) {
	ops := testOps(t)

	cmd, err := ops.GetCommand("no-such-id")
	require.NoError(t, err)
	require.Nil(t, cmd)
}
