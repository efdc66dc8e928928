package daemon

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/codesearch/ragex/internal/project"
)

// Config holds the runtime settings of one daemon process: where it
// listens, where it locks, and where project data lives.
type Config struct {
	// SocketPath is the Unix domain socket path for RPC.
	SocketPath string

	// PIDPath is the pidfile the daemon locks to guarantee one daemon
	// per project.
	PIDPath string

	// DataRoot is the per-user data root holding projects/<project_id>/
	//.
	DataRoot string

	// Timeout is the maximum duration for client-daemon communication.
	Timeout time.Duration

	// ShutdownGracePeriod is how long a draining daemon waits for a
	// running index before closing the store anyway.
	ShutdownGracePeriod time.Duration
}

// DefaultDataRoot is the per-user data root.
const DefaultDataRoot = "/data"

// DefaultConfig returns daemon settings for the given project identity.
// With a zero identity (admin-only process) the socket falls back to the
// well-known default path.
func DefaultConfig(id project.Identity, dataRoot string) Config {
	if dataRoot == "" {
		dataRoot = DefaultDataRoot
	}
	socketPath := DefaultSocketPath
	pidPath := filepath.Join(filepath.Dir(DefaultSocketPath), "ragex.pid")
	if id.ID != "" {
		socketPath = id.SocketPath(dataRoot)
		pidPath = id.PidfilePath(dataRoot)
	}
	return Config{
		SocketPath:          socketPath,
		PIDPath:             pidPath,
		DataRoot:            dataRoot,
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.DataRoot == "" {
		return fmt.Errorf("data root cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}
