package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports graph wiring mistakes. Compile collects every violation
// it finds before failing so fixes can be batched.
type ConfigError struct {
	Graph      string
	Violations []string
}

func (e *ConfigError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("graph %q: %s", e.Graph, e.Violations[0])
	}
	return fmt.Sprintf("graph %q: %d violations: %s",
		e.Graph, len(e.Violations), strings.Join(e.Violations, "; "))
}

// IsConfigError reports whether err is a graph configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func newConfigError(graph string, violations ...string) *ConfigError {
	return &ConfigError{Graph: graph, Violations: violations}
}
