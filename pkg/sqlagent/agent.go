// Package sqlagent turns natural language requests into SQL and runs the
// result against the data database. Generation is delegated to an LLM;
// execution and syntax checking go through database/sql.
package sqlagent

import (
	"context"
	"fmt"

	"github.com/luigisaetta/oraculum/pkg/config"
	"github.com/luigisaetta/oraculum/pkg/models"
)

// Agent is the protocol for a SQL agent implementation.
type Agent interface {
	// GenerateSQL produces a SQL query from a natural language request.
	GenerateSQL(ctx context.Context, nlRequest string) (string, error)
	// CheckSQL verifies the query is valid on the target database.
	CheckSQL(ctx context.Context, sqlText string) error
	// ExecuteSQL runs the query and returns the ordered result set.
	ExecuteSQL(ctx context.Context, sqlText string) (models.ResultSet, error)
	// Close releases the database connection.
	Close() error
}

// Generator is the language-model capability used for NL-to-SQL.
type Generator interface {
	Complete(ctx context.Context, msgs []models.Message) (string, error)
}

// New creates the agent selected by the configuration.
func New(cfg config.AgentConfig, gen Generator, verbose bool) (Agent, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteAgent(cfg.DBPath, gen, verbose)
	default:
		return nil, fmt.Errorf("unknown sql agent type: %q", cfg.Type)
	}
}
