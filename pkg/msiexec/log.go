package msiexec

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxProcessedLines caps ProcessLog output; the tail is kept.
const maxProcessedLines = 200

var logMarkers = []string{
	"error",
	"return value 3",
	"exception",
	"failed",
	"1603",
}

// ReadLog decodes an msiexec log. msiexec writes UTF-16LE with a BOM; a log
// without a BOM is read as UTF-8.
func ReadLog(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	text, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return string(text), nil
}

// ProcessLog keeps the lines that look like failures.
func ProcessLog(text string) string {
	var kept []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, marker := range logMarkers {
			if strings.Contains(lower, marker) {
				kept = append(kept, line)
				break
			}
		}
	}
	if len(kept) > maxProcessedLines {
		kept = kept[len(kept)-maxProcessedLines:]
	}
	return strings.Join(kept, "\n")
}
