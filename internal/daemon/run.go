package daemon

import (
	"context"
	"log/slog"

	"github.com/codesearch/ragex/internal/config"
)

// Run is the daemon's main loop: acquire the project lock, build the
// Daemon, serve the socket until ctx is cancelled, then drain. It is the
// Init -> Loading -> Ready -> Draining -> Closed lifecycle in
// one place, used by `ragex daemon`.
func Run(ctx context.Context, projectCfg *config.Config, daemonCfg Config, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if err := daemonCfg.Validate(); err != nil {
		return err
	}

	pid := NewPIDFile(daemonCfg.PIDPath)
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Release(); err != nil {
			log.Warn("release pidfile failed", "error", err)
		}
	}()

	d, err := New(ctx, projectCfg, daemonCfg.DataRoot, log)
	if err != nil {
		return err
	}

	server := NewServer(daemonCfg.SocketPath, d, projectCfg.Server.MaxMessageBytes, log)
	serveErr := server.ListenAndServe(ctx)

	d.Shutdown(daemonCfg.ShutdownGracePeriod)
	log.Info("daemon stopped")
	return serveErr
}
