package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/wordindex/internal/errors"
)

// service is a component with a start/stop lifecycle.
type service interface {
	Start(ctx context.Context) error
	Stop() error
	WaitFinished(timeout time.Duration) bool
}

type namedService struct {
	name string
	service
}

// startAll starts services in order. If one fails, the ones already
// started are stopped in reverse order.
func startAll(ctx context.Context, services []namedService, logger *slog.Logger) error {
	for i, s := range services {
		if err := s.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if stopErr := services[j].Stop(); stopErr != nil {
					logger.Warn("rollback stop failed",
						slog.String("service", services[j].name),
						slog.String("error", stopErr.Error()))
				}
			}
			return fmt.Errorf("start %s: %w", s.name, err)
		}
		logger.Debug("service started", slog.String("service", s.name))
	}
	return nil
}

// stopAll stops services in reverse order and joins their errors.
func stopAll(services []namedService, logger *slog.Logger) error {
	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		s := services[i]
		if err := s.Stop(); err != nil && !errors.Is(err, errors.ErrNotRunning) {
			errs = append(errs, fmt.Errorf("stop %s: %w", s.name, err))
			continue
		}
		logger.Debug("service stopped", slog.String("service", s.name))
	}
	return errors.Join(errs...)
}

// waitAll waits for services in reverse start order, sharing one deadline.
func waitAll(services []namedService, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for i := len(services) - 1; i >= 0; i-- {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		if !services[i].WaitFinished(remaining) {
			return false
		}
	}
	return true
}
