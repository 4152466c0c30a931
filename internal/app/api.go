package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/sim-daas/Midnight-Blues/internal/catalog"
	"github.com/sim-daas/Midnight-Blues/internal/config"
	"github.com/sim-daas/Midnight-Blues/internal/httpapi"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/kafka/events"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/repository/jsonfile"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/repository/redisstore"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/wallet"
	"github.com/sim-daas/Midnight-Blues/internal/ledger"
	"github.com/sim-daas/Midnight-Blues/internal/proof"
	"github.com/sim-daas/Midnight-Blues/internal/service"
)

const (
	ledgerBackendFile  = "file"
	ledgerBackendRedis = "redis"

	walletModeDev     = "dev"
	walletModeGateway = "gateway"

	proofModeStub    = "stub"
	proofModeGroth16 = "groth16"
)

// transferWallet is what the API needs from either wallet implementation.
type transferWallet interface {
	service.TransferSubmitter
	httpapi.Wallet
}

// API is the lace-api process: the REST façade plus everything behind it.
type API struct {
	log     *slog.Logger
	server  *http.Server
	store   *ledger.Store
	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

func NewAPI(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *API, err error) {
	api := &API{log: log.With(slog.String("component", "api"))}
	defer func() {
		if err != nil {
			api.closeAll()
		}
	}()

	backend, err := api.ledgerBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	api.store, err = ledger.NewStore(ctx, backend, cfg.Ledger.InitialBalance, log)
	if err != nil {
		return nil, err
	}

	songs, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	w, err := newWallet(cfg.Wallet, log)
	if err != nil {
		return nil, err
	}

	prover, err := newProver(cfg.Proof.Mode)
	if err != nil {
		return nil, err
	}

	var publisher service.EventPublisher = service.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := events.NewProducer(cfg.Kafka, log)
		if err != nil {
			return nil, fmt.Errorf("create event producer: %w", err)
		}
		api.closers = append(api.closers, namedCloser{"event producer", producer})
		publisher = producer
	}

	purchases := service.NewPurchaseService(songs, api.store, w, publisher, cfg.Purchase.SubmitTimeout, log)
	proofs := service.NewProofService(songs, prover, cfg.Proof.Threshold, log)

	services := httpapi.Services{
		ProofServer: cfg.Wallet.ProofServerURL,
		Indexer:     cfg.Wallet.IndexerURL,
		Node:        cfg.Wallet.NodeURL,
	}
	if cfg.Wallet.Mode == walletModeGateway {
		services.WalletGateway = cfg.Wallet.GatewayURL
	}

	handler := httpapi.NewHandler(songs, purchases, proofs, w, httpapi.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
		WalletMode:     cfg.Wallet.Mode,
		Services:       services,
	}, log)

	api.server = &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	log.Info("api initialized",
		slog.String("ledger_backend", cfg.Ledger.Backend),
		slog.String("wallet_mode", cfg.Wallet.Mode),
		slog.String("proof_mode", cfg.Proof.Mode),
		slog.Bool("kafka", cfg.Kafka.Enabled),
		slog.Int("songs", len(songs.List())),
	)
	return api, nil
}

func (a *API) ledgerBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (ledger.Backend, error) {
	switch cfg.Ledger.Backend {
	case ledgerBackendFile:
		return jsonfile.NewLedgerFile(cfg.Ledger.Path, log), nil
	case ledgerBackendRedis:
		client, err := redisstore.Connect(ctx, cfg.ConnectionStrings.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, namedCloser{"redis", client})
		return redisstore.NewLedgerRedis(client, cfg.Ledger.RedisKey, log), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func newWallet(cfg config.Wallet, log *slog.Logger) (transferWallet, error) {
	switch cfg.Mode {
	case walletModeDev:
		return wallet.NewDevSubmitter(cfg.DevDelay, log), nil
	case walletModeGateway:
		return wallet.NewGatewayClient(cfg.GatewayURL, cfg.RequestTimeout, cfg.TxTTL, log), nil
	default:
		return nil, fmt.Errorf("unknown wallet mode %q", cfg.Mode)
	}
}

func newProver(mode string) (proof.Prover, error) {
	switch mode {
	case proofModeStub:
		return proof.NewStubProver(), nil
	case proofModeGroth16:
		p, err := proof.NewGroth16Prover()
		if err != nil {
			return nil, fmt.Errorf("setup groth16 prover: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown proof mode %q", mode)
	}
}

// Handler exposes the router, mostly for tests.
func (a *API) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until Shutdown is called.
func (a *API) Run() error {
	a.log.Info("http server listening", slog.String("address", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests before the ledger is flushed so that no
// commit races the final save.
func (a *API) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down api...")

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush ledger: %w", err))
		}
	}
	a.closeAll()

	a.log.Info("api stopped")
	return errors.Join(errs...)
}

func (a *API) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].c.Close(); err != nil {
			a.log.Error("failed to close "+a.closers[i].name, slog.Any("error", err))
		}
	}
	a.closers = nil
}

// ServeGroup runs every server until one fails or ctx is done, then shuts all
// of them down with shutdown.
func ServeGroup(ctx context.Context, run []func() error, shutdown func() error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range run {
		g.Go(fn)
	}
	g.Go(func() error {
		<-gctx.Done()
		return shutdown()
	})
	return g.Wait()
}
