package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// Ext returns the lowercase extension of name including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
