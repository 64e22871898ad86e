package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// gitignoreEntries are the per-terminal files that must never be committed.
var gitignoreEntries = []string{
	"sessoes-cx-*.json",
	"ultima-venda-cx-*.json",
	"ultimos-erros.json",
	"*.lock",
}

// ScaffoldProject creates the hub layout in the given directory: sathub.toml,
// a local integrador/ tree with input/ and output/ (used when no Integrador
// install is detected), and .gitignore entries for the journal files. Files
// that already exist are left untouched. Returns the list of created paths.
func ScaffoldProject(dir string) ([]string, error) {
	var created []string

	// sathub.toml
	tomlPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		if _, initErr := InitFile(dir); initErr != nil {
			return created, initErr
		}
		created = append(created, tomlPath)
	}

	// integrador/{input,output} unless an installed Integrador is found
	if DetectIntegrador(dir) == "" {
		for _, sub := range []string{"input", "output"} {
			p := filepath.Join(dir, "integrador", sub)
			if _, err := os.Stat(p); os.IsNotExist(err) {
				if mkErr := os.MkdirAll(p, 0755); mkErr != nil {
					return created, fmt.Errorf("scaffold: create %s: %w", p, mkErr)
				}
				created = append(created, p)
			}
		}
	}

	// .gitignore
	gitignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return created, fmt.Errorf("scaffold: read %s: %w", gitignorePath, err)
	}
	content := string(existing)
	changed := false
	for _, entry := range gitignoreEntries {
		if strings.Contains(content, entry) {
			continue
		}
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content += "\n"
		}
		content += entry + "\n"
		changed = true
	}
	if changed {
		if writeErr := os.WriteFile(gitignorePath, []byte(content), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	}

	return created, nil
}
