//go:build windows

package config

import "os"

// openConfigFile opens the config file. Windows has no O_NOFOLLOW.
func openConfigFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY, 0)
}

// checkFileOwnership is a no-op; Windows ownership lives in ACLs.
func checkFileOwnership(_ *os.File) error {
	return nil
}

// checkFilePermissions is a no-op; Windows permissions live in ACLs.
func checkFilePermissions(_ os.FileInfo) error {
	return nil
}
