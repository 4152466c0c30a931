package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sim-daas/Midnight-Blues/internal/config"
	"github.com/sim-daas/Midnight-Blues/internal/lib/logger"
)

const requestTimeout = 2 * time.Minute

type purchaseLine struct {
	FanAddress string `json:"fanAddress"`
	SongID     string `json:"songId"`
}

type errorBody struct {
	Code string `json:"code"`
}

// tally counts outcomes by "status code" and "status/code" pairs.
type tally struct {
	mu     sync.Mutex
	counts map[string]int
}

func (t *tally) add(key string) {
	t.mu.Lock()
	t.counts[key]++
	t.mu.Unlock()
}

func main() {
	cfg := config.MustLoad()
	log := logger.Setup(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines, err := readLines(cfg.LoadGen.InputPath)
	if err != nil {
		log.Error("failed to read purchases", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("replaying purchases",
		slog.String("target", cfg.LoadGen.TargetURL),
		slog.Int("requests", len(lines)),
		slog.Int("concurrency", cfg.LoadGen.Concurrency),
	)

	client := &http.Client{Timeout: requestTimeout}
	results := &tally{counts: make(map[string]int)}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.LoadGen.Concurrency, 1))
	for _, line := range lines {
		g.Go(func() error {
			key, err := send(gctx, client, cfg.LoadGen.TargetURL, line)
			if err != nil {
				log.Warn("request failed",
					slog.String("fan", line.FanAddress),
					slog.String("song_id", line.SongID),
					slog.Any("error", err),
				)
				key = "transport_error"
			}
			results.add(key)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("replay completed", slog.Duration("elapsed", time.Since(start)))
	printHistogram(os.Stdout, results.counts)
}

func readLines(path string) ([]purchaseLine, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var out []purchaseLine
	scanner := bufio.NewScanner(file)
	for n := 1; scanner.Scan(); n++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var l purchaseLine
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return out, nil
}

func send(ctx context.Context, client *http.Client, target string, line purchaseLine) (string, error) {
	body, err := json.Marshal(line)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target+"/api/purchase-song", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "200", nil
	}
	var eb errorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	if eb.Code == "" {
		return fmt.Sprintf("%d", resp.StatusCode), nil
	}
	return fmt.Sprintf("%d/%s", resp.StatusCode, eb.Code), nil
}

func printHistogram(w io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-36s %d\n", k, counts[k])
	}
}
