package gatelib

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"
)

const (
	// DEF_TICK_INTERVAL is the cadence at which the pace timer publishes
	// timer progress while the floor is still running.
	DEF_TICK_INTERVAL = 250 * time.Millisecond

	// DEF_TIMER_WEIGHT is the share of combined progress owned by the
	// pace timer before readiness takes over.
	DEF_TIMER_WEIGHT = 0.8

	// DEF_PREFINAL_CAP is the highest combined progress value published
	// before finalization. Only the finalizer publishes 1.0.
	DEF_PREFINAL_CAP = 0.98

	// DEF_CUSTOM_EVENT is the element event watched when none is named.
	DEF_CUSTOM_EVENT = "load"

	// DEF_MAX_AWAITS caps concurrently in-flight asset awaits per run.
	DEF_MAX_AWAITS = 8

	// DEF_SESSION_TTL is how long a session flag stays valid.
	DEF_SESSION_TTL = 24 * time.Hour

	// DEF_PROBE_READ_LIMIT caps how many bytes a prober drains per asset.
	DEF_PROBE_READ_LIMIT int64 = 32 << 20
)

const fileFlagsRW = os.O_CREATE | os.O_RDWR

// ConfigDirEnv is the environment variable name used to override the default
// configuration directory.
const ConfigDirEnv = "UNVEIL_CONFIG_DIR"

var (
	// ConfigDir is the absolute path to the unveil configuration directory.
	ConfigDir string
	// HeuristicsDir is the absolute path to the readiness heuristic scripts
	// directory.
	HeuristicsDir string

	__SESSION_FILE_NAME string
)

func init() {
	dir := os.Getenv(ConfigDirEnv)
	if dir == "" {
		dir = defaultConfigDir()
	}
	if err := setConfigDir(dir); err != nil {
		panic(err)
	}
}

func defaultConfigDir() string {
	cdr, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	if _, serr := os.Stat(cdr); serr != nil {
		if err = os.MkdirAll(cdr, 0755); err != nil {
			panic(err)
		}
	}
	return filepath.Join(cdr, "unveil")
}

func setConfigDir(dir string) error {
	if dir == "" {
		return errors.New("config dir is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return err
	}
	ConfigDir = abs
	HeuristicsDir = filepath.Join(abs, "heuristics")
	if err := os.MkdirAll(HeuristicsDir, 0755); err != nil {
		return err
	}
	__SESSION_FILE_NAME = filepath.Join(abs, "sessions.unveil")
	KnownHostsPath = filepath.Join(abs, "known_hosts")
	return nil
}

// SetConfigDir sets the configuration directory to the specified path.
// It creates the directory and its subdirectories if they do not exist.
func SetConfigDir(dir string) error {
	return setConfigDir(dir)
}

// SessionFilePath returns the path of the session flag file inside the
// current configuration directory.
func SessionFilePath() string {
	return __SESSION_FILE_NAME
}

// newRunID returns a short random identifier for a gate run.
func newRunID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// GateIdentity derives the session flag key for a gate. Two runs share an
// identity when they gate the same page with the same scoping inside the
// same session.
func GateIdentity(pageURL, scopeSelector, customSelector, sessionID string) string {
	h := sha1.New()
	h.Write([]byte(pageURL))
	h.Write([]byte{0})
	h.Write([]byte(scopeSelector))
	h.Write([]byte{0})
	h.Write([]byte(customSelector))
	h.Write([]byte{0})
	h.Write([]byte(sessionID))
	return hex.EncodeToString(h.Sum(nil))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// frac returns elapsed/total clamped to [0,1]; 1 when total is zero.
func frac(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return clamp01(float64(elapsed) / float64(total))
}

// secondsToDuration converts a fractional seconds value to a duration.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
