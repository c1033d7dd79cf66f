package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/leaftrade/params"
	"github.com/uhyunpark/leaftrade/pkg/api"
	"github.com/uhyunpark/leaftrade/pkg/chain"
	"github.com/uhyunpark/leaftrade/pkg/listing"
	"github.com/uhyunpark/leaftrade/pkg/metrics"
	"github.com/uhyunpark/leaftrade/pkg/storage"
	"github.com/uhyunpark/leaftrade/pkg/tracker"
	"github.com/uhyunpark/leaftrade/pkg/trade"
	"github.com/uhyunpark/leaftrade/pkg/util"
	"github.com/uhyunpark/leaftrade/pkg/wallet"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Log.File, "level", cfg.Log.Level)

	if !common.IsHexAddress(cfg.Chain.ContractAddress) {
		sugar.Fatalw("invalid_contract_address", "address", cfg.Chain.ContractAddress)
	}
	contract := common.HexToAddress(cfg.Chain.ContractAddress)
	if cfg.Chain.ContractAddress == params.PlaceholderContract {
		sugar.Warnw("placeholder_contract", "address", contract.Hex())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Wallet ----
	session, err := wallet.FromPrivateKeyHex(cfg.Wallet.PrivateKeyHex, sugar)
	if err != nil {
		sugar.Fatalw("wallet_key_invalid", "err", err)
	}
	if cfg.Wallet.AutoConnect && cfg.Wallet.PrivateKeyHex != "" {
		if _, err := session.Connect(); err != nil {
			sugar.Fatalw("wallet_autoconnect_failed", "err", err)
		}
	}

	// ---- Chain ----
	backend, closeBackend := openBackend(ctx, cfg, session, sugar)
	defer closeBackend()

	// ---- Submission journal ----
	journal, err := storage.NewPebbleStore(cfg.Storage.DBPath)
	if err != nil {
		sugar.Fatalw("journal_open_failed", "path", cfg.Storage.DBPath, "err", err)
	}
	defer journal.Close()
	prior, err := journal.LoadSubmissions()
	if err != nil {
		sugar.Warnw("journal_scan_failed", "err", err)
	}

	var events storage.EventLog = storage.NopEventLog{}
	if txLog, err := storage.NewFileEventLog(cfg.Storage.TxLogPath); err != nil {
		sugar.Warnw("tx_log_open_failed", "path", cfg.Storage.TxLogPath, "err", err)
	} else {
		defer txLog.Close()
		events = txLog
		sugar.Infow("tx_log_opened", "path", cfg.Storage.TxLogPath)
	}

	// ---- Trade submission ----
	registry := tracker.NewRegistry(util.RealClock{})
	registry.OnTransition(journal.Observer(func(err error) {
		sugar.Errorw("journal_write_failed", "err", err)
	}))
	registry.OnTransition(metrics.TrackerObserver())
	registry.OnTransition(func(prev, next tracker.Snapshot) {
		sugar.Infow("submission_transition",
			"submission_id", next.ID,
			"method", next.Method,
			"from", prev.Status.String(),
			"to", next.Status.String(),
			"error", next.Error)
	})

	svc := trade.NewService(ctx, trade.Deps{
		Wallet:   session,
		Writer:   backend,
		Watcher:  backend,
		Registry: registry,
		Contract: contract,
		Events:   events,
		Logger:   sugar,
	})

	// ---- API Server ----
	apiServer := api.NewServer(api.Deps{
		Listings:    listing.Default(),
		Watchlist:   listing.NewWatchlist(),
		Wallet:      session,
		Trades:      svc,
		Registry:    registry,
		Journal:     journal,
		CORSOrigins: cfg.API.CORSOrigins,
		Logger:      sugar,
	})
	registry.OnTransition(apiServer.Hub().SubmissionObserver())
	session.OnChange(apiServer.Hub().WalletObserver())

	// Resumed once every observer is registered, so resumed trackers report like new ones.
	resumed := svc.Resume(prior)
	sugar.Infow("journal_loaded",
		"path", cfg.Storage.DBPath,
		"submissions", len(prior),
		"resumed", resumed)

	if cfg.Storage.EvictInterval > 0 {
		go registry.RunEviction(ctx, cfg.Storage.Retention, cfg.Storage.EvictInterval, func(n int) {
			sugar.Debugw("submissions_evicted", "count", n, "retention", cfg.Storage.Retention)
		})
	}

	sugar.Infow("leafd_starting",
		"api_addr", cfg.API.Addr,
		"dev_chain", cfg.UsesDevChain(),
		"chain_id", cfg.Chain.ChainID,
		"contract", contract.Hex(),
		"wallet_connected", session.Status().IsConnected)

	if err := apiServer.Run(ctx, cfg.API.Addr); err != nil {
		sugar.Errorw("api_server_failed", "err", err)
	}

	stop()
	svc.Wait()
	sugar.Info("leafd_stopped")
}

// openBackend dials the configured node, or starts a DevChain when no RPC
// URL is set.
func openBackend(ctx context.Context, cfg params.Config, keys chain.Transactor, sugar *zap.SugaredLogger) (chain.Backend, func()) {
	if cfg.UsesDevChain() {
		sugar.Infow("devchain_enabled", "chain_id", cfg.Chain.ChainID, "mine_delay", cfg.Chain.DevMineDelay)
		return chain.NewDevChain(cfg.Chain.ChainID, keys, cfg.Chain.DevMineDelay, util.RealClock{}, sugar), func() {}
	}

	client, err := chain.DialEth(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID, keys, cfg.Chain.ReceiptPoll, sugar)
	if err != nil {
		sugar.Fatalw("rpc_dial_failed", "url", cfg.Chain.RPCURL, "err", err)
	}
	sugar.Infow("rpc_connected", "url", cfg.Chain.RPCURL, "chain_id", cfg.Chain.ChainID)
	return client, client.Close
}
