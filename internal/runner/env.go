package runner

import (
	"os"
	"strings"
	"time"
)

// BuildEnv returns the process environment overlaid with extra and the
// PIPEWATCH_* variables describing the run.
func BuildEnv(extra map[string]string, pipeline string, start time.Time) []string {
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range extra {
		envMap[k] = v
	}

	envMap["PIPEWATCH_PIPELINE"] = pipeline
	envMap["PIPEWATCH_START_TIME"] = start.Format(time.RFC3339)

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}
