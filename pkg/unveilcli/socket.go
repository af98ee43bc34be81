//go:build !windows

package unveilcli

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
