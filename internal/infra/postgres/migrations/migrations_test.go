package migrations

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id INT);\n\n--bun:split\n\n  \n--bun:split\nCREATE INDEX b ON a (id);\n")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[1] != "CREATE INDEX b ON a (id);" {
		t.Fatalf("unexpected statement %q", stmts[1])
	}
}

func TestEmbeddedScriptsAreRegistered(t *testing.T) {
	if len(Migrations.Sorted()) != 2 {
		t.Fatalf("expected 2 registered migrations, got %d", len(Migrations.Sorted()))
	}
	for _, script := range []string{createQuizzesSQL, createAnswersSQL} {
		for _, stmt := range splitStatements(script) {
			if !strings.HasPrefix(stmt, "CREATE") {
				t.Fatalf("unexpected statement in embedded script: %q", stmt)
			}
		}
	}
	if !strings.Contains(createQuizzesSQL, "current_question_id") || !strings.Contains(createAnswersSQL, "time_taken") {
		t.Fatalf("embedded scripts are missing expected columns")
	}
}
