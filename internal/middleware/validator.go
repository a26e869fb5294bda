package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var audioNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}\.mp3$`)

// ValidateAudioFilename accepts bare mp3 names only.
func ValidateAudioFilename(name string) error {
	if name == "" {
		return fmt.Errorf("audio filename cannot be empty")
	}

	// Block path traversal attempts
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("path traversal detected")
	}

	if !audioNamePattern.MatchString(name) {
		return fmt.Errorf("invalid audio filename")
	}
	return nil
}

// SanitizeString removes control characters so client-supplied values are safe to log.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
