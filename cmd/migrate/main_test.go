package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestVersionFromFile(t *testing.T) {
	cases := map[string]int64{
		"001_init.up.sql":      1,
		"012_receipts.up.sql":  12,
		"100_add_index.up.sql": 100,
	}
	for name, want := range cases {
		got, err := versionFromFile(name)
		if err != nil || got != want {
			t.Errorf("%s: got %d, %v; want %d", name, got, err, want)
		}
	}
	for _, bad := range []string{"init.up.sql", "abc_init.up.sql"} {
		if _, err := versionFromFile(bad); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func TestUpFiles_skipsDownMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"002_b.up.sql", "001_a.up.sql", "001_a.down.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("--"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	got, err := upFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"001_a.up.sql", "002_b.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("upFiles = %v, want %v", got, want)
	}
}
