// Package pathutils expands user supplied file paths such as key and config
// file locations.
package pathutils

import (
	"os/user"
	"path/filepath"
	"strings"
)

// HomeDir returns the home directory of the current user, or "" if it cannot
// be determined.
func HomeDir() string {
	usr, err := user.Current()
	if err != nil {
		return ""
	}
	return usr.HomeDir
}

// ExpandHome takes a path and converts a leading '~' to the current users home
// directory. Paths without a leading '~', and "~user" forms, are returned
// unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home := HomeDir()
	if home == "" {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
