package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/apperrors"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/chain"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/config"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/matcher"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/state"
	chainsync "github.com/riddles-are-us/permissionless-onchain-orderbook/internal/sync"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/metrics"
)

// statsInterval matches the teacher's own periodic stats log
// (offchain/cmd/matcher/main.go's 10s ticker, §12). The stats line reads
// the queue and pending-set sizes straight from the shared state.
const statsInterval = 10 * time.Second

const metricsAddr = ":9090"

// runEngine wires the Reconciler, Dispatcher, and metrics server
// together for one trading pair and runs them until a termination
// signal or a fatal task error (§5).
func runEngine(ctx context.Context, configPath, logLevelStr string, startBlockOverride uint64) error {
	logger := newLogger(logLevelStr)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if startBlockOverride != 0 {
		cfg.Sync.StartBlock = startBlockOverride
	}
	tradingPair := common.HexToHash(cfg.Contracts.TradingPair)

	reader, err := chain.NewGethReader(ctx, cfg, logger)
	if err != nil {
		return err
	}
	subscriber := chain.NewWSEventSubscriber(cfg.Network.RPCURL, logger)

	txClient, err := ethclient.DialContext(ctx, cfg.Network.RPCURL)
	if err != nil {
		return apperrors.ErrTransportDisconnected.Wrap(err.Error())
	}
	submitter, err := chain.NewGethTxSubmitter(txClient, cfg, logger)
	if err != nil {
		return err
	}

	shared := state.New()
	reconciler := chainsync.New(reader, subscriber, tradingPair, shared, logger)

	if err := reconciler.ColdSync(ctx, cfg.Sync.StartBlock); err != nil {
		return err
	}

	dispatcherCfg := matcher.Config{
		MaxBatchSize:   cfg.Matching.MaxBatchSize,
		TickInterval:   time.Duration(cfg.Matching.MatchingIntervalMs) * time.Millisecond,
		PendingTimeout: 60 * time.Second,
	}
	dispatcher := matcher.New(shared, submitter, dispatcherCfg, logger)

	engineCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	// Three long-lived tasks race against a termination signal (§5):
	// the Reconciler's warm phase, the Dispatcher's tick loop, and this
	// supervisor. The metrics HTTP server runs alongside as ambient
	// infrastructure, not one of the three.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reconciler.Run(engineCtx); err != nil {
			logger.Error("reconciler stopped", "error", err)
			errCh <- err
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(engineCtx); err != nil {
			logger.Error("dispatcher stopped", "error", err)
			errCh <- err
			cancel()
		}
	}()

	metricsSrv := startMetricsServer(engineCtx, logger)

	runSupervisor(engineCtx, cancel, logger, shared)

	wg.Wait()
	_ = metricsSrv.Close()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// startMetricsServer serves the Prometheus handler (§10), closing on
// engineCtx cancellation.
func startMetricsServer(engineCtx context.Context, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}

	go func() {
		<-engineCtx.Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	return srv
}

// runSupervisor blocks until a termination signal arrives or engineCtx
// is cancelled by a fatal task error, logging periodic summary stats in
// between (§12's stats ticker, carried from the teacher's own
// OffchainMatcher.GetStats loop).
func runSupervisor(engineCtx context.Context, cancel context.CancelFunc, logger log.Logger, shared *state.Shared) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case sig := <-sigCh:
			logger.Info("received termination signal, shutting down", "signal", sig.String())
			cancel()
			return
		case <-engineCtx.Done():
			return
		case <-statsTicker.C:
			logger.Info("stats",
				"queue_depth", shared.Queue.Len(),
				"pending_set_size", shared.Pending.Len(),
			)
		}
	}
}
