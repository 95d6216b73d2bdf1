package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedFS_ContainsMigrationFiles(t *testing.T) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		t.Fatalf("failed to read embedded FS: %v", err)
	}

	found := false
	for _, entry := range entries {
		if entry.Name() == "001_initial_schema.sql" {
			found = true
			break
		}
	}

	if !found {
		t.Error("001_initial_schema.sql not found in embedded FS")
	}
}

func TestEmbeddedFS_MigrationFileReadable(t *testing.T) {
	data, err := FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("failed to read migration file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "+goose Up") {
		t.Error("migration file missing goose Up annotation")
	}
	if !strings.Contains(content, "CREATE TABLE events") {
		t.Error("migration file missing events table")
	}
	if !strings.Contains(content, "CREATE TABLE patterns") {
		t.Error("migration file missing patterns table")
	}
}
