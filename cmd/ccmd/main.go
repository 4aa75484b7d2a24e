// Command ccmd runs the credible commitment machine: an enclave identity,
// a commitment engine bound to it, a background expiry sweeper, and the
// JSON-RPC shim (Unix socket + HTTP) that exposes the engine to callers.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	"github.com/credible-commitment/ccm-core/internal/capability"
	"github.com/credible-commitment/ccm-core/internal/commitment"
	"github.com/credible-commitment/ccm-core/internal/config"
	"github.com/credible-commitment/ccm-core/internal/enclave"
	"github.com/credible-commitment/ccm-core/internal/maintenance"
	"github.com/credible-commitment/ccm-core/internal/obs"
	"github.com/credible-commitment/ccm-core/internal/rpcshim"
)

const sweepInterval = 60 * time.Second

func main() {
	defer memguard.Purge()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := obs.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("ccm starting", zap.String("env", cfg.Env))

	id, err := enclave.New(capability.CryptoRandom{}, capability.SystemTime{})
	if err != nil {
		log.Fatal("failed to generate enclave identity", zap.Error(err))
	}

	metrics := obs.NewMetrics()
	engine, err := commitment.NewEngine(
		cfg.Enclave.ToDomain(),
		id,
		capability.SystemTime{},
		capability.CryptoRandom{},
		capability.FormatOnlyVerifier{},
		capability.UnavailableAttestor{},
		commitment.WithLogger(log),
		commitment.WithMetrics(metrics),
	)
	if err != nil {
		log.Fatal("failed to construct commitment engine", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sweeper := maintenance.NewSweeper(engine, sweepInterval, log)
	go sweeper.Run(ctx)

	handler := rpcshim.NewHandler(engine, log)

	udsServer, err := rpcshim.NewServer(cfg.Transport.SocketPath, handler, log)
	if err != nil {
		log.Fatal("failed to create unix socket server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:    cfg.Transport.HTTPAddr,
		Handler: rpcshim.NewHTTPRouter(handler, metrics, log),
	}

	errCh := make(chan error, 2)
	go func() { errCh <- udsServer.Serve() }()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	enclaveID := id.EnclaveID()
	log.Info("ccm ready",
		zap.String("enclaveId", "0x"+hex.EncodeToString(enclaveID[:])),
		zap.String("socket", cfg.Transport.SocketPath),
		zap.String("httpAddr", cfg.Transport.HTTPAddr),
	)

	select {
	case <-ctx.Done():
		log.Info("ccm shutting down gracefully")
		_ = udsServer.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !isClosedErr(err) {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	log.Info("ccm stopped")
}

func isClosedErr(err error) bool {
	if ne, ok := err.(*net.OpError); ok {
		return ne.Err.Error() == "use of closed network connection"
	}
	return false
}
