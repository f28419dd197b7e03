package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultBaseDir is where run directories live unless told otherwise.
const DefaultBaseDir = "data"

// RunDirEnvVars are consulted, in order, when no run directory is given.
var RunDirEnvVars = []string{"RECOMMENDER_DATA_DIR", "DATASET_DIR"}

// ResolveRunDir picks a run directory without asking anyone: explicit if
// set, else the first non-empty variable of RunDirEnvVars, else the first
// subdirectory of base in lexical order. Returns ErrNoRunDir if base has
// no subdirectories.
func ResolveRunDir(explicit, base string) (RunDir, error) {
	if explicit != "" {
		return RunDir(explicit), nil
	}
	for _, name := range RunDirEnvVars {
		if dir := strings.TrimSpace(os.Getenv(name)); dir != "" {
			return RunDir(dir), nil
		}
	}
	if base == "" {
		base = DefaultBaseDir
	}

	entries, err := os.ReadDir(base)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("%w in %s: set one of %s or create a subdirectory",
			ErrNoRunDir, base, strings.Join(RunDirEnvVars, ", "))
	}
	slices.Sort(dirs)
	return RunDir(filepath.Join(base, dirs[0])), nil
}
