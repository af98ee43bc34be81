package server

import (
	"os"
	"path/filepath"

	"github.com/unveil/unveil/common"
)

func socketPath() string {
	if path := os.Getenv(common.SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), "unveild.sock")
}

// forceTCP reports whether UNVEIL_FORCE_TCP=1 skips the platform transport.
func forceTCP() bool {
	return os.Getenv(common.ForceTCPEnv) == "1"
}
