package artifacts

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GetArtifactName builds the file name of a report.
// Example: analyse_payment-refunds_2025-09-15T08-28-46Z.json.
func GetArtifactName(command, workflow, ext string, t time.Time) string {
	ts := strings.ReplaceAll(t.UTC().Format(time.RFC3339), ":", "-")
	return fmt.Sprintf("%s_%s_%s.%s", command, SanitizeName(workflow), ts, strings.TrimPrefix(ext, "."))
}

// SanitizeName turns a workflow identifier or file name into a file-name-safe token.
func SanitizeName(name string) string {
	name = filepath.Base(name)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "-"), "-.")
	if name == "" {
		return "workflow"
	}
	return name
}
