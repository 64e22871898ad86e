package config

import (
	"os"
	"path/filepath"
)

// integradorCandidates are the usual install locations of the Integrador,
// checked in order after the project-local integrador/ directory.
var integradorCandidates = []string{
	"/opt/Integrador",
	"C:/Integrador",
	"/Integrador",
}

// DetectIntegrador returns the first Integrador base directory that already
// has both input/ and output/ subdirectories. dir/integrador is checked
// first. Returns "" when none is found; stat errors are silently ignored.
func DetectIntegrador(dir string) string {
	candidates := append([]string{filepath.Join(dir, "integrador")}, integradorCandidates...)
	for _, c := range candidates {
		if isIntegradorDir(c) {
			return c
		}
	}
	return ""
}

func isIntegradorDir(base string) bool {
	for _, sub := range []string{"input", "output"} {
		info, err := os.Stat(filepath.Join(base, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}
