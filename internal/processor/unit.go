package processor

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/wordindex/internal/errors"
)

// process runs one pass over path and always reports completion.
func (p *Pool) process(ctx context.Context, path string) (success bool) {
	start := p.cfg.Clock.Now()
	defer func() {
		if err := p.results.SubmitFinishedProcessing(path, start, success); err != nil {
			p.logger.Debug("completion not delivered", append([]any{slog.String("path", path)}, errors.LogAttrs(err)...)...)
		}
	}()

	if err := p.results.RemoveFromIndex(ctx, path); err != nil {
		return false
	}

	tok, err := p.results.NewTokenizer(path)
	if err != nil {
		p.logger.Warn("cannot open file", slog.String("path", path), slog.String("error", err.Error()))
		return false
	}
	if tok == nil {
		return false
	}
	defer func() { _ = tok.Close() }()

	seen := make(map[string]struct{})
	for tok.Next() {
		w := tok.Word()
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if err := p.results.AddWordToIndex(ctx, path, w); err != nil {
			return false
		}
	}
	if err := tok.Err(); err != nil {
		p.logger.Warn("read failed", slog.String("path", path), slog.String("error", err.Error()))
		return false
	}

	p.logger.Debug("file processed", slog.String("path", path), slog.Int("words", len(seen)))
	return true
}
