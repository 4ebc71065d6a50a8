package migrations

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the ordered schema history, applied by `quiz-engine migrate` and on start.
var Migrations = migrate.NewMigrations()

const splitMarker = "--bun:split"

// execScript runs every statement of an embedded script inside one transaction.
func execScript(ctx context.Context, db *bun.DB, script string) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range splitStatements(script) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, splitMarker) {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
