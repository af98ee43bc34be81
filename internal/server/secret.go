package server

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/unveil/unveil/common"
)

const (
	keyringService = "unveil"
	keyringUser    = "rpc-secret"
)

var (
	keyringGet = keyring.Get
	keyringSet = keyring.Set
	randRead   = rand.Read
)

// ResolveRPCSecret returns the bearer secret for the JSON-RPC bridge: the
// UNVEIL_RPC_SECRET environment variable wins, then the OS keyring. On first
// use a fresh secret is generated and stored. An empty return leaves the
// bridge rejecting everything.
func ResolveRPCSecret(l *log.Logger) string {
	if s := os.Getenv(common.RPCSecretEnv); s != "" {
		return s
	}
	if s, err := keyringGet(keyringService, keyringUser); err == nil && s != "" {
		return s
	}
	buf := make([]byte, 32)
	if _, err := randRead(buf); err != nil {
		l.Println("RPC secret generation failed:", err.Error())
		return ""
	}
	s := hex.EncodeToString(buf)
	if err := keyringSet(keyringService, keyringUser, s); err != nil {
		l.Println("RPC secret not stored, bridge stays disabled:", err.Error())
		return ""
	}
	return s
}
