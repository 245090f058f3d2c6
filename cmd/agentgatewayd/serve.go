package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/agentgateway"
	"github.com/teradata-labs/agentgateway/internal/config"
	"github.com/teradata-labs/agentgateway/internal/driver/rpc"
	"github.com/teradata-labs/agentgateway/internal/driver/sidecar"
	"github.com/teradata-labs/agentgateway/internal/driver/subprocess"
	"github.com/teradata-labs/agentgateway/internal/httpapi"
	"github.com/teradata-labs/agentgateway/internal/obslog"
	"github.com/teradata-labs/agentgateway/internal/runtime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent gateway HTTP server",
	Long: `Start the agent gateway HTTP server.

The server fronts the subprocess (claude, codex, opencode), sidecar, and
RPC agent backends behind one session/event HTTP API. Press Ctrl+C to
shut down gracefully.`,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("config", "", "path to a config file (yaml)")
	flags.String("addr", "", "listen address, e.g. :8088 (overrides config)")
	flags.String("token", "", "bearer token gating every route except /v1/healthz (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	log, err := obslog.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	binaries := make(map[agentgateway.AgentKind]string, len(cfg.Agents))
	for k, v := range cfg.Agents {
		binaries[agentgateway.AgentKind(k)] = v
	}

	subprocessDriver := subprocess.New(subprocess.Backends(binaries), nil)
	sidecarDriver := sidecar.New(cfg.Sidecar.Binary, cfg.Sidecar.PortRangeStart, cfg.Sidecar.PortRangeEnd)
	rpcDriver := rpc.New(rpc.Scope(cfg.RPC.Scope), cfg.RPC.Binary, cfg.RPC.Args)

	rt := runtime.New(runtime.Drivers{
		Subprocess: subprocessDriver,
		Sidecar:    sidecarDriver,
		RPC:        rpcDriver,
	}, log)

	installer := httpapi.NewPathLookupInstaller(binaries, func(name string) (string, error) {
		return exec.LookPath(name)
	})

	srv := httpapi.New(rt, installer, cfg.Server.Token, log)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	log.Info("agentgatewayd listening", zap.String("addr", cfg.Server.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
