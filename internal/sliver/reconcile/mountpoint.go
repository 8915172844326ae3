package reconcile

import (
	"os"
	"path/filepath"
	"strings"
)

// MountpointPath derives the UG mountpoint for a volume, replacing "/"
// with "." in the volume name and joining it under root.
func MountpointPath(root, volumeName string) string {
	return filepath.Join(root, strings.ReplaceAll(volumeName, "/", "."))
}

// EnsureMountpoint creates path if it doesn't already exist. Directory
// existence is idempotent: EEXIST (surfaced by MkdirAll as a nil error
// when the target is already a directory) is success.
func EnsureMountpoint(path string) error {
	return os.MkdirAll(path, 0o755)
}
