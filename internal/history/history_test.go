package history

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRepo(t *testing.T) {
	t.Parallel()

	t.Run("Init", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "data")
		r, err := Open(dir, "calnotes", "calnotes@localhost")
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
			t.Errorf(".git directory not created: %v", err)
		}
		log, err := r.Log(t.Context(), "", 10)
		if err != nil || len(log) != 0 {
			t.Errorf("Log() on empty repo = %v, %v", log, err)
		}
		// Reopening an existing repository works.
		if _, err := Open(dir, "calnotes", "calnotes@localhost"); err != nil {
			t.Errorf("second Open() failed: %v", err)
		}
	})

	t.Run("Commit", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		ctx := t.Context()
		r, err := Open(dir, "calnotes", "calnotes@localhost")
		if err != nil {
			t.Fatal(err)
		}
		write := func(s string) {
			if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(s), 0o600); err != nil {
				t.Fatal(err)
			}
		}
		write(`{}`)
		if err := r.Commit(ctx, "Update notes", "data.json"); err != nil {
			t.Fatalf("Commit() failed: %v", err)
		}
		// Unchanged content does not create a commit.
		if err := r.Commit(ctx, "Update notes", "data.json"); err != nil {
			t.Fatalf("Commit() failed: %v", err)
		}
		// An untracked backup does not count as a change.
		if err := os.WriteFile(filepath.Join(dir, "backup_x.json"), []byte(`{}`), 0o600); err != nil {
			t.Fatal(err)
		}
		write(`{"2024-0-15":[]}`)
		if err := r.Commit(ctx, "Second", "data.json"); err != nil {
			t.Fatalf("Commit() failed: %v", err)
		}
		log, err := r.Log(ctx, "data.json", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(log) != 2 {
			t.Fatalf("Log() = %d commits, want 2", len(log))
		}
		if log[0].Message != "Second" || log[1].Message != "Update notes" {
			t.Errorf("Log() messages = %q, %q", log[0].Message, log[1].Message)
		}
		if log[0].Author != "calnotes" {
			t.Errorf("Author = %q", log[0].Author)
		}
	})

	t.Run("NoFiles", func(t *testing.T) {
		t.Parallel()
		r, err := Open(t.TempDir(), "calnotes", "calnotes@localhost")
		if err != nil {
			t.Fatal(err)
		}
		if err := r.Commit(t.Context(), "nothing"); err != nil {
			t.Errorf("Commit() without files = %v", err)
		}
	})
}
