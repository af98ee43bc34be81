//go:build !windows

package server

import "os"

// cleanupSocket removes the Unix socket file. A missing file is not an
// error.
func cleanupSocket() error {
	socketPath := socketPath()
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
