package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsolatedSchemaName derives the schema used by one CI run.
func IsolatedSchemaName(runnerID, runNumber string) (string, error) {
	if runnerID == "" || runNumber == "" {
		return "", fmt.Errorf("runnerID and runNumber must be non-empty")
	}
	name := strings.ToLower(strings.NewReplacer("-", "_", ".", "_").Replace(runnerID + "_" + runNumber))
	if !schemaNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid schema name %q", name)
	}
	return name, nil
}

// WithSearchPath pins the connection's search_path to schema, keeping
// public as a fallback for extensions.
func WithSearchPath(baseURL, schema string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DB URL: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema+",public")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
