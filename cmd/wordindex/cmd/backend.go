package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/wordindex/internal/daemon"
	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/indexer"
	"github.com/Aman-CERP/wordindex/internal/store"
)

// backend answers queries from the daemon or from an in-process index.
type backend interface {
	Search(ctx context.Context, word string) ([]store.FileEntry, error)
	Files(ctx context.Context) ([]store.FileStatistics, error)
	Words(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (store.Statistics, error)
	Close()
}

// openBackend prefers a running daemon. Explicit roots, or configured
// roots when no daemon runs, are indexed in-process instead.
func openBackend(ctx context.Context, roots []string) (backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if len(roots) == 0 {
		client := daemon.NewClient(daemonConfig(cfg))
		if client.IsRunning() {
			return &daemonBackend{client: client}, nil
		}
		roots = cfg.Roots
	}
	if len(roots) == 0 {
		return nil, errors.New(errors.ErrCodeDaemonUnavailable, "daemon is not running and no roots are configured", nil).
			WithSuggestion("Start it with 'wordindex serve' or pass --root")
	}

	logger := slog.New(slog.DiscardHandler)
	if debugMode {
		logger = slog.Default()
	}
	ixCfg, err := indexerConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	ixCfg.Roots = ixCfg.Roots[:0]
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidPath, "invalid root "+r, err)
		}
		ixCfg.Roots = append(ixCfg.Roots, abs)
	}
	return openLocal(ctx, ixCfg)
}

// openLocal starts an indexer and waits until it has caught up.
func openLocal(ctx context.Context, cfg indexer.Config) (*localBackend, error) {
	ix, err := indexer.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := ix.Start(ctx); err != nil {
		return nil, err
	}
	lb := &localBackend{ix: ix}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !ix.IsIdle() {
		select {
		case <-ctx.Done():
			lb.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return lb, nil
}

type daemonBackend struct {
	client *daemon.Client
}

func (b *daemonBackend) Search(ctx context.Context, word string) ([]store.FileEntry, error) {
	res, err := b.client.Search(ctx, word)
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}

func (b *daemonBackend) Files(ctx context.Context) ([]store.FileStatistics, error) {
	return b.client.Files(ctx)
}

func (b *daemonBackend) Words(ctx context.Context) ([]string, error) {
	return b.client.Words(ctx)
}

func (b *daemonBackend) Stats(ctx context.Context) (store.Statistics, error) {
	st, err := b.client.Stats(ctx)
	if err != nil {
		return store.Statistics{}, err
	}
	return *st, nil
}

func (b *daemonBackend) Close() {}

type localBackend struct {
	ix *indexer.Indexer
}

func (b *localBackend) Search(_ context.Context, word string) ([]store.FileEntry, error) {
	params := daemon.SearchParams{Word: word}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return b.ix.Search(params.Word), nil
}

func (b *localBackend) Files(context.Context) ([]store.FileStatistics, error) {
	return b.ix.ListFiles(), nil
}

func (b *localBackend) Words(context.Context) ([]string, error) {
	return b.ix.ListWords(), nil
}

func (b *localBackend) Stats(context.Context) (store.Statistics, error) {
	return b.ix.Stats(), nil
}

func (b *localBackend) Close() {
	_ = b.ix.Stop()
	b.ix.WaitFinished(5 * time.Second)
}
