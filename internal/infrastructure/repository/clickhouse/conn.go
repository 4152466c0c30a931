package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/avast/retry-go"

	"github.com/sim-daas/Midnight-Blues/internal/config"
)

// Connect opens a ClickHouse connection and pings it, retrying while the
// server comes up.
func Connect(ctx context.Context, cfg config.PurchaseClickHouse, log *slog.Logger) (driver.Conn, error) {
	conn, err := clickhouse.Open(options(cfg))
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	err = retry.Do(
		func() error { return conn.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(max(cfg.RetryConnAttempts, 1)),
		retry.Delay(cfg.RetryConnDelay),
		retry.MaxDelay(cfg.RetryConnMaxDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("clickhouse ping failed, retrying",
				slog.Uint64("attempt", uint64(n+1)),
				slog.Any("error", err),
			)
		}),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	log.Info("connected to clickhouse",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
	)
	return conn, nil
}

func options(cfg config.PurchaseClickHouse) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": cfg.MaxExecutionTime,
		},
		Compression: &clickhouse.Compression{
			Method: compressionMethod(cfg.CompressionMethod),
		},
		DialTimeout:     cfg.DialTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BlockBufferSize: cfg.BlockBufferSize,
	}
}

func compressionMethod(method string) clickhouse.CompressionMethod {
	switch strings.ToLower(method) {
	case "zstd":
		return clickhouse.CompressionZSTD
	case "lz4":
		return clickhouse.CompressionLZ4
	case "gzip":
		return clickhouse.CompressionGZIP
	case "deflate":
		return clickhouse.CompressionDeflate
	case "br":
		return clickhouse.CompressionBrotli
	default:
		return clickhouse.CompressionNone
	}
}
