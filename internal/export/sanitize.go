package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName strips control characters and replaces anything outside a
// conservative file-name alphabet with '_'.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(strings.TrimSpace(b.String()), ".")
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// ContainerExt normalises a container name to a bare lowercase extension.
func ContainerExt(container string) string {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(container), "."))
	ext = SanitizeName(ext, 8)
	if ext == "" || strings.ContainsAny(ext, " ,()") {
		return DefaultContainer
	}
	return ext
}

// CleanOutputDir rejects empty, relative-traversal and unclean paths. The
// directory does not need to exist yet.
func CleanOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output_dir is required")
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("output_dir cannot contain path traversal")
		}
	}

	if filepath.Clean(dir) != dir {
		return fmt.Errorf("output_dir must be clean path")
	}
	return nil
}

// ValidateOutputDir is CleanOutputDir plus a check that dir is an existing directory.
func ValidateOutputDir(dir string) error {
	if err := CleanOutputDir(dir); err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output_dir does not exist")
		}
		return fmt.Errorf("invalid output_dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output_dir is not a directory")
	}

	return nil
}
