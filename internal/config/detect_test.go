package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectIntegrador(t *testing.T) {
	t.Run("local integrador dir with input and output", func(t *testing.T) {
		dir := t.TempDir()
		for _, sub := range []string{"input", "output"} {
			if err := os.MkdirAll(filepath.Join(dir, "integrador", sub), 0755); err != nil {
				t.Fatal(err)
			}
		}
		want := filepath.Join(dir, "integrador")
		if got := DetectIntegrador(dir); got != want {
			t.Errorf("DetectIntegrador = %q, want %q", got, want)
		}
	})

	t.Run("missing output is not an integrador dir", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, "integrador", "input"), 0755); err != nil {
			t.Fatal(err)
		}
		if isIntegradorDir(filepath.Join(dir, "integrador")) {
			t.Error("expected false without output/")
		}
	})
}
