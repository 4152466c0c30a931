package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sim-daas/Midnight-Blues/internal/config"
	"github.com/sim-daas/Midnight-Blues/internal/contract"
	"github.com/sim-daas/Midnight-Blues/internal/lib/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.Setup(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		var verr *contract.ValidationError
		if errors.As(err, &verr) {
			log.Error("contract validation failed", slog.Any("missing", verr.Missing))
		} else {
			log.Error("deployment failed", slog.Any("error", err))
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	code, err := contract.Load(cfg.Deploy.ContractPath)
	if err != nil {
		return err
	}
	log.Info("contract loaded", slog.String("path", cfg.Deploy.ContractPath))

	deployer := contract.NewDeployer(cfg.Env, cfg.Wallet.ProofServerURL, cfg.Deploy.Delay, log)

	info, err := deployer.Deploy(ctx, code)
	if err != nil {
		return err
	}
	info, err = deployer.Initialize(ctx, info, cfg.Deploy.ArtistAddress, cfg.Proof.Threshold)
	if err != nil {
		return err
	}
	if err := contract.Save(cfg.Deploy.OutputPath, info); err != nil {
		return err
	}

	log.Info("deployment info saved",
		slog.String("address", info.Address),
		slog.String("path", cfg.Deploy.OutputPath),
	)
	return nil
}
