package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/services/blockchain"
	"github.com/bsv-blockchain/coinstatsindex/services/coinstatsindex"
	"github.com/bsv-blockchain/coinstatsindex/settings"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv/leveldb"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv/memory"
	"github.com/bsv-blockchain/coinstatsindex/ulogger"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	tSettings := settings.NewSettings()
	logger := ulogger.New("coinstats", ulogger.WithLevel(tSettings.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(logger, tSettings)
	if err != nil {
		logger.Fatalf("failed to open store: %v", err)
	}

	// TODO: replace the in-process mock source with the node-backed
	// blockchain client once it is available.
	chain := blockchain.NewMock()

	server, err := coinstatsindex.New(ctx, logger, tSettings, store, chain)
	if err != nil {
		logger.Fatalf("failed to create service: %v", err)
	}

	if err = server.Init(ctx); err != nil {
		logger.Fatalf("failed to init service: %v", err)
	}

	if addr, ok := gocore.Config().Get("coinstats_httpListenAddress"); ok {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			status, msg, _ := server.Health(r.Context(), false)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(msg))
		})

		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Errorf("http server stopped: %v", err)
			}
		}()
	}

	readyCh := make(chan struct{})

	go func() {
		if err := server.Start(ctx, readyCh); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("service stopped: %v", err)
		}

		stop()
	}()

	<-readyCh
	logger.Infof("coinstatsindex started on %s", tSettings.ChainCfgParams.Name)

	<-ctx.Done()

	_ = server.Stop(context.Background())
	_ = store.Close(context.Background())

	logger.Infof("coinstatsindex stopped")

	os.Exit(0)
}

func newStore(logger ulogger.Logger, tSettings *settings.Settings) (kv.Store, error) {
	switch tSettings.CoinStats.StoreType {
	case "leveldb":
		return leveldb.New(logger, tSettings.CoinStats.StorePath)
	case "memory":
		return memory.New(), nil
	default:
		return nil, errors.NewConfigurationError("unknown store type %q", tSettings.CoinStats.StoreType)
	}
}
