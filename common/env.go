// Package common provides shared types and constants used across the unveil
// client-daemon communication layer.
package common

// Environment variable names for configuration.
const (
	// SocketPathEnv is the environment variable for custom socket path.
	SocketPathEnv = "UNVEIL_SOCKET_PATH"

	// TCPPortEnv is the environment variable for custom TCP port.
	TCPPortEnv = "UNVEIL_TCP_PORT"

	// ForceTCPEnv is the environment variable to force TCP connections.
	ForceTCPEnv = "UNVEIL_FORCE_TCP"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "UNVEIL_DEBUG"

	// PipeNameEnv is the environment variable for a custom Windows named
	// pipe. A bare name gets the \\.\pipe\ prefix prepended.
	PipeNameEnv = "UNVEIL_PIPE_NAME"

	// RPCSecretEnv is the environment variable holding the JSON-RPC bearer
	// secret. When unset the daemon falls back to the OS keyring.
	RPCSecretEnv = "UNVEIL_RPC_SECRET"
)
