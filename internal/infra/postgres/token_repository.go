package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pdfgen/internal/tokens"
)

// defaultScope is what a token row gets when it is inserted without a scope.
const defaultScope = `{"pdf": true}`

const schemaDDL = `CREATE TABLE IF NOT EXISTS tokens (
	token TEXT PRIMARY KEY,
	rate_limit INTEGER NOT NULL DEFAULT 60,
	scope JSONB NOT NULL DEFAULT '` + defaultScope + `',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	comment TEXT
);`

const indexDDL = `CREATE INDEX IF NOT EXISTS idx_tokens_created_at ON tokens (created_at);`

var _ tokens.Repository = (*TokenRepository)(nil)

// TokenRepository reads the tokens table.
type TokenRepository struct {
	DB  *DB
	DSN string
}

func NewTokenRepository(db *DB, dsn string) *TokenRepository {
	return &TokenRepository{DB: db, DSN: dsn}
}

// EnsureSchema creates the tokens table and its index if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create tokens table: %w", err)
	}
	if _, err := db.ExecContext(ctx, indexDDL); err != nil {
		return fmt.Errorf("create tokens index: %w", err)
	}
	return nil
}

// VerifySchema checks that the tokens table is reachable and has the expected columns.
func VerifySchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit, scope FROM tokens LIMIT 0;`)
	if err != nil {
		return fmt.Errorf("verify tokens schema: %w", err)
	}
	return rows.Close()
}

// LoadTokens returns every token with its rate limit and scope.
func (r *TokenRepository) LoadTokens(ctx context.Context) (map[string]tokens.Entry, error) {
	db, err := r.DB.Get(r.DSN)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit, scope FROM tokens;`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	out := make(map[string]tokens.Entry)
	for rows.Next() {
		var (
			token string
			limit int
			raw   []byte
		)
		if err := rows.Scan(&token, &limit, &raw); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		var scope tokens.Scope
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &scope); err != nil {
				return nil, fmt.Errorf("token scope: %w", err)
			}
		}
		out[token] = tokens.Entry{RateLimit: limit, Scope: scope}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
