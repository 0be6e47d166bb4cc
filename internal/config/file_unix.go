//go:build !windows

package config

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openConfigFile opens the config file with O_NOFOLLOW to reject symlinks
func openConfigFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, unix.ELOOP) {
			return nil, ErrConfigSymlink
		}
		return nil, err
	}
	return f, nil
}

// checkFileOwnership verifies the open file is owned by the current user
func checkFileOwnership(f *os.File) error {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if st.Uid != uint32(unix.Getuid()) {
		return ErrConfigNotOwnedByUser
	}
	return nil
}

// checkFilePermissions rejects group or world writable files
func checkFilePermissions(info os.FileInfo) error {
	if perm := info.Mode().Perm(); perm&0022 != 0 {
		return fmt.Errorf("%w: %o (must not be group or world writable)", ErrConfigInsecure, perm)
	}
	return nil
}
