package sqlagent

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/luigisaetta/oraculum/pkg/models"
)

const generateSQLPrompt = `You are an expert SQL generator for a SQLite database.
Translate the user request into a single SQL SELECT statement.

Database schema:
%s

Rules:
- answer with the SQL statement only, no explanation, no markdown fences
- read-only: only SELECT statements are valid output
- use only tables and columns from the schema above`

// SQLiteAgent generates SQL with an LLM and executes it on a SQLite database.
type SQLiteAgent struct {
	db      *sql.DB
	gen     Generator
	verbose bool
}

// NewSQLiteAgent opens the data database at dbPath.
func NewSQLiteAgent(dbPath string, gen Generator, verbose bool) (*SQLiteAgent, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open data db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping data db: %w", err)
	}
	return &SQLiteAgent{db: db, gen: gen, verbose: verbose}, nil
}

// GenerateSQL asks the model for a query grounded on the live schema.
func (a *SQLiteAgent) GenerateSQL(ctx context.Context, nlRequest string) (string, error) {
	schema, err := a.loadSchema(ctx)
	if err != nil {
		return "", err
	}

	log.Printf("sqlagent: generating SQL...")

	msgs := []models.Message{
		models.SystemMessage(fmt.Sprintf(generateSQLPrompt, schema)),
		models.HumanMessage(nlRequest),
	}
	answer, err := a.gen.Complete(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	generated := stripSQLFences(answer)
	if generated == "" {
		return "", fmt.Errorf("generate sql: empty answer from model")
	}
	if a.verbose {
		log.Printf("sqlagent: generated: %s", generated)
	}
	return generated, nil
}

// CheckSQL validates the query against the database without running it.
func (a *SQLiteAgent) CheckSQL(ctx context.Context, sqlText string) error {
	rows, err := a.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+sqlText)
	if err != nil {
		return fmt.Errorf("invalid sql: %w", err)
	}
	return rows.Close()
}

// ExecuteSQL validates then runs the query, returning rows in result order
// with the select-list column order preserved.
func (a *SQLiteAgent) ExecuteSQL(ctx context.Context, sqlText string) (models.ResultSet, error) {
	if err := a.CheckSQL(ctx, sqlText); err != nil {
		return models.ResultSet{}, err
	}

	rows, err := a.db.QueryContext(ctx, sqlText)
	if err != nil {
		return models.ResultSet{}, fmt.Errorf("execute sql: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return models.ResultSet{}, fmt.Errorf("read columns: %w", err)
	}

	result := models.ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return models.ResultSet{}, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return models.ResultSet{}, fmt.Errorf("iterate rows: %w", err)
	}

	log.Printf("sqlagent: executed successfully, rows fetched: %d", len(result.Rows))
	return result, nil
}

// Close releases the database connection.
func (a *SQLiteAgent) Close() error {
	return a.db.Close()
}

// loadSchema returns the CREATE statements of all user tables.
func (a *SQLiteAgent) loadSchema(ctx context.Context) (string, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("load schema: %w", err)
	}
	defer rows.Close()

	var ddl []string
	for rows.Next() {
		var stmt sql.NullString
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("load schema: %w", err)
		}
		if stmt.Valid {
			ddl = append(ddl, stmt.String+";")
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("load schema: %w", err)
	}
	return strings.Join(ddl, "\n"), nil
}

// stripSQLFences removes markdown code fences some models wrap around SQL.
func stripSQLFences(answer string) string {
	cleaned := strings.TrimSpace(answer)
	cleaned = strings.TrimPrefix(cleaned, "```sql")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
