package watcher

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/wordindex/internal/errors"
)

// Sink receives classified file system changes.
type Sink interface {
	OnFileChanged(ctx context.Context, path string) error
	OnFileRemoved(ctx context.Context, path string) error
	OnDirectoryChanged(ctx context.Context, path string) error
	OnDirectoryRemoved(ctx context.Context, path string) error
}

// Dispatch routes event batches to sink until events is closed, ctx is
// cancelled, or the sink reports that it has stopped. Other sink errors
// are logged and the event is skipped.
func Dispatch(ctx context.Context, events <-chan []FileEvent, sink Sink, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			for _, ev := range batch {
				err := route(ctx, sink, ev)
				if err == nil {
					continue
				}
				if errors.Is(err, errors.ErrServiceStopped) {
					return err
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("dropping file event",
					slog.String("path", ev.Path),
					slog.String("op", ev.Operation.String()),
					slog.String("error", err.Error()))
			}
		}
	}
}

func route(ctx context.Context, sink Sink, ev FileEvent) error {
	switch ev.Operation {
	case OpCreate, OpModify:
		if ev.IsDir {
			return sink.OnDirectoryChanged(ctx, ev.Path)
		}
		return sink.OnFileChanged(ctx, ev.Path)
	case OpDelete, OpRename:
		if ev.IsDir {
			return sink.OnDirectoryRemoved(ctx, ev.Path)
		}
		return sink.OnFileRemoved(ctx, ev.Path)
	default:
		return nil
	}
}
