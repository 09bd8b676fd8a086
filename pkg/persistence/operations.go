package persistence

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"voxcrew/pkg/logx"
)

// Operations provides all database operations for the command store.
type Operations struct {
	db     *sql.DB
	logger *logx.Logger
}

// NewOperations creates an Operations instance with the given database connection.
func NewOperations(db *sql.DB) *Operations {
	return &Operations{
		db:     db,
		logger: logx.NewLogger("persistence"),
	}
}

// SaveCommand persists a completed turn. The id and timestamp are assigned
// here; callers cannot supply either.
func (o *Operations) SaveCommand(transcript string, responses []AgentMessage) (*Command, error) {
	cmd := &Command{
		ID:             GenerateCommandID(),
		Transcript:     transcript,
		Timestamp:      time.Now().UTC(),
		AgentResponses: responses,
	}

	tx, err := o.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO commands (id, transcript, created_at) VALUES (?, ?, ?)`,
		cmd.ID, cmd.Transcript, cmd.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert command: %w", err)
	}

	for i, resp := range responses {
		_, err = tx.Exec(
			`INSERT INTO agent_responses (command_id, position, role, message) VALUES (?, ?, ?, ?)`,
			cmd.ID, i, resp.Role, resp.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert agent response %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit command: %w", err)
	}

	o.indexCommand(cmd)
	return cmd, nil
}

// indexCommand adds a saved command to the FTS index. Best-effort: the
// command row is already committed, so an index failure only degrades search.
func (o *Operations) indexCommand(cmd *Command) {
	var sb strings.Builder
	for _, resp := range cmd.AgentResponses {
		sb.WriteString(resp.Message)
		sb.WriteString("\n")
	}

	_, err := o.db.Exec(
		`INSERT INTO commands_fts (command_id, transcript, responses) VALUES (?, ?, ?)`,
		cmd.ID, cmd.Transcript, sb.String(),
	)
	if err != nil {
		o.logger.Warn("Failed to index command %s for search: %v", cmd.ID, err)
	}
}

// ListRecent returns stored commands, most recent first. A limit <= 0 returns
// all commands.
func (o *Operations) ListRecent(limit int) ([]*Command, error) {
	query := `SELECT id, transcript, created_at FROM commands ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := o.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return o.scanCommands(rows)
}

// SearchCommands returns commands ranked by relevance to the query. When the
// FTS index is unavailable or the query fails, it falls back to ListRecent so
// callers always get usable history.
func (o *Operations) SearchCommands(query string, limit int) ([]*Command, error) {
	if limit <= 0 {
		limit = 10
	}

	match := ftsMatchExpr(query)
	if match == "" {
		return o.ListRecent(limit)
	}

	rows, err := o.db.Query(
		`SELECT c.id, c.transcript, c.created_at
		 FROM commands_fts f
		 JOIN commands c ON c.id = f.command_id
		 WHERE commands_fts MATCH ?
		 ORDER BY bm25(commands_fts)
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		o.logger.Warn("Relevance search failed, falling back to recency: %v", err)
		return o.ListRecent(limit)
	}
	defer func() { _ = rows.Close() }()

	results, err := o.scanCommands(rows)
	if err != nil {
		o.logger.Warn("Relevance search scan failed, falling back to recency: %v", err)
		return o.ListRecent(limit)
	}
	return results, nil
}

// GetCommand returns a single command by id, or nil when not found.
func (o *Operations) GetCommand(id string) (*Command, error) {
	row := o.db.QueryRow(`SELECT id, transcript, created_at FROM commands WHERE id = ?`, id)

	cmd, err := scanCommand(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get command %s: %w", id, err)
	}

	if err := o.loadResponses(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*Command, error) {
	var cmd Command
	var createdAt string
	if err := row.Scan(&cmd.ID, &cmd.Transcript, &createdAt); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp %q: %w", createdAt, err)
	}
	cmd.Timestamp = ts
	return &cmd, nil
}

func (o *Operations) scanCommands(rows *sql.Rows) ([]*Command, error) {
	var commands []*Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan command row: %w", err)
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("command row iteration failed: %w", err)
	}

	for _, cmd := range commands {
		if err := o.loadResponses(cmd); err != nil {
			return nil, err
		}
	}
	return commands, nil
}

func (o *Operations) loadResponses(cmd *Command) error {
	rows, err := o.db.Query(
		`SELECT role, message FROM agent_responses WHERE command_id = ? ORDER BY position`,
		cmd.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load responses for command %s: %w", cmd.ID, err)
	}
	defer func() { _ = rows.Close() }()

	cmd.AgentResponses = []AgentMessage{}
	for rows.Next() {
		var resp AgentMessage
		if err := rows.Scan(&resp.Role, &resp.Message); err != nil {
			return fmt.Errorf("failed to scan agent response: %w", err)
		}
		cmd.AgentResponses = append(cmd.AgentResponses, resp)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("agent response iteration failed: %w", err)
	}
	return nil
}

// ftsMatchExpr converts free text into a safe FTS5 match expression by
// quoting each term. Returns "" when the query has no searchable terms.
func ftsMatchExpr(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}
