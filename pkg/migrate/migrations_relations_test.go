package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestRelationsMigrationEnforcesActiveUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_partner_relations.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS partner_relations",
		"CHECK (level IN (1, 2))",
		"CHECK (parent_partner_id <> child_partner_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_partner_relations_active_parent",
		"ON partner_relations (child_partner_id, level) WHERE is_active",
		"DROP TABLE IF EXISTS partner_relations",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCompletionsMigrationEnforcesEventKey(t *testing.T) {
	content := readMigration(t, "*_create_task_completions.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS task_completions",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_task_completions_event_key",
		"ON task_completions (task_code, actor_partner_id, event_id)",
		"DROP TABLE IF EXISTS task_completions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
