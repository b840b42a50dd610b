package supervisor

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/stanley-fork/unport/internal/config"
	"github.com/stanley-fork/unport/internal/controlserver"
	"github.com/stanley-fork/unport/internal/dataplane"
	"github.com/stanley-fork/unport/internal/registry"
	"github.com/stanley-fork/unport/internal/tlsmaterial"
)

// Options selects optional daemon features at startup.
type Options struct {
	// TLS additionally binds the HTTPS listener, bootstrapping the local
	// CA and leaf certificate if they do not exist yet.
	TLS bool
}

const shutdownTimeout = 5 * time.Second

// RunDaemon is the foreground daemon path: singleton acquisition, registry
// load and sweep, control-plane and data-plane startup, then blocking
// until a termination signal or a control-plane Shutdown request. It
// returns after the socket and pid file have been removed.
func RunDaemon(cfg *config.Config, opts Options) error {
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	if err := AcquireSingleton(cfg); err != nil {
		return err
	}
	defer ReleaseSingleton(cfg)

	reg := registry.Load(cfg.RegistryPath)
	reg.SweepDead()

	var tlsConfig *tls.Config
	if opts.TLS {
		tm := tlsmaterial.New(cfg)
		if err := tm.EnsureCA(); err != nil {
			return fmt.Errorf("bootstrap CA: %w", err)
		}
		if err := tm.EnsureLeaf(); err != nil {
			return fmt.Errorf("issue server certificate: %w", err)
		}
		var err error
		tlsConfig, err = tm.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("load server certificate: %w", err)
		}
	}

	// Buffered so the control server's shutdown callback never blocks.
	shutdown := make(chan struct{}, 1)
	requestShutdown := func() {
		select {
		case shutdown <- struct{}{}:
		default:
		}
	}

	ctl := controlserver.New(reg, cfg.SocketPath, requestShutdown)
	if err := ctl.Start(); err != nil {
		return err
	}
	defer ctl.Stop()

	plane := dataplane.New(reg, cfg.HTTPAddr, cfg.HTTPSAddr, tlsConfig)
	if err := plane.Start(); err != nil {
		return err
	}

	log.Printf("unportd running (pid %d)", os.Getpid())

	select {
	case sig := <-NotifyOnInterrupt():
		log.Printf("received %v, shutting down", sig)
	case <-shutdown:
		log.Printf("shutdown requested over control socket")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := plane.Stop(ctx); err != nil {
		log.Printf("data plane shutdown: %v", err)
	}
	return nil
}
