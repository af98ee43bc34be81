package unveilcli

import (
	"fmt"
	"os"
)

// VersionCheckEnv is the environment variable name used to suppress version
// mismatch warnings. Set to any non-empty value to disable warnings (useful
// for scripts and CI).
const VersionCheckEnv = "UNVEIL_SUPPRESS_VERSION_CHECK"

// CheckVersionMismatch checks if the daemon version matches the expected CLI
// version. On a mismatch it prints a warning to stderr but does not block
// execution. Call after creating a new client.
func (c *Client) CheckVersionMismatch(expectedVersion string) {
	if expectedVersion == "" {
		return
	}
	if os.Getenv(VersionCheckEnv) != "" {
		return
	}

	daemonVersion, err := c.GetDaemonVersion()
	if err != nil {
		// Don't fail on version check errors, just warn.
		fmt.Fprintf(os.Stderr, "Warning: could not verify daemon version: %v\n", err)
		return
	}

	if daemonVersion.DaemonVersion != expectedVersion {
		fmt.Fprintf(os.Stderr, "Warning: CLI version (%s) differs from daemon version (%s)\n",
			expectedVersion, daemonVersion.DaemonVersion)
		fmt.Fprintf(os.Stderr, "Run 'unveil stop-daemon' to restart the daemon with the new version.\n")
	}
}
