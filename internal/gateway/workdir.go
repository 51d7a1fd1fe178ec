package gateway

import (
	"fmt"
	"os"
	"path/filepath"
)

// resolveWorkingDir validates a requested working directory against the
// allowed-root policy and returns its canonical form.
//
// An empty path resolves to the policy default. Otherwise the path must
// exist and be a directory before it is canonicalized. Canonicalizing a
// non-existent path would have to guess which prefix of it is real, which
// reintroduces the TOCTOU ambiguity this check exists to avoid. The
// canonical result must equal, or descend from, one of the allowed roots.
func resolveWorkingDir(path string, policy *Policy) (string, error) {
	if path == "" {
		return policy.DefaultWorkingDir, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &SecurityError{
			Kind:   KindWorkingDirNotFound,
			Reason: fmt.Sprintf("working directory does not exist: %s", path),
		}
	}
	if !info.IsDir() {
		return "", &SecurityError{
			Kind:   KindWorkingDirNotFound,
			Reason: fmt.Sprintf("not a directory: %s", path),
		}
	}

	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", &SecurityError{
			Kind:   KindWorkingDirNotFound,
			Reason: fmt.Sprintf("resolving working directory %s: %v", path, err),
		}
	}

	if !underAnyRoot(canonical, policy.AllowedWorkingDirs) {
		return "", &SecurityError{
			Kind:   KindOutsideAllowedRoots,
			Reason: fmt.Sprintf("working directory outside allowed roots: %s", path),
		}
	}
	return canonical, nil
}
