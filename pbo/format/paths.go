package format

import (
	"path/filepath"
	"strings"
)

// ToArchivePath rewrites a host-relative path to the separator the header
// table stores.
func ToArchivePath(rel string) string {
	return strings.ReplaceAll(rel, string(filepath.Separator), PATH_SEPARATOR)
}

// ToHostPath rewrites a stored entry name to the host's separator.
func ToHostPath(name string) string {
	return strings.ReplaceAll(name, PATH_SEPARATOR, string(filepath.Separator))
}
