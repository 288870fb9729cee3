package mirrorsync

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/logging"
)

// Compile-time interface check to ensure proper implementation.
var _ AutoSyncer = (*client)(nil)

// AutoSyncFunc runs on every scheduler tick. The default syncs every
// registered origin.
type AutoSyncFunc func(ctx context.Context, c Client) error

// AutoSyncer provides controls for scheduled passes.
type AutoSyncer interface {
	// AutoSyncOn starts running passes on the configured interval
	AutoSyncOn() error

	// AutoSyncOff stops scheduled passes
	AutoSyncOff() error
}

// AutoSyncOn starts running passes on the configured interval.
func (c *client) AutoSyncOn() error {
	interval := c.options.autoSyncInterval
	if interval <= 0 {
		return &errors.ValidationError{
			Field:   "autoSyncInterval",
			Value:   interval,
			Message: "sync interval must be positive",
		}
	}

	// Stop any existing schedule to prevent resource leaks
	if err := c.AutoSyncOff(); err != nil {
		return err
	}

	c.autoMu.Lock()
	defer c.autoMu.Unlock()

	// Recreate stopCh since it was closed in AutoSyncOff
	c.stopCh = make(chan struct{})
	c.ticker = time.NewTicker(interval)

	ctx, cancel := context.WithCancel(context.Background())
	c.syncCancel = cancel

	run := c.options.autoSyncFunc
	if run == nil {
		run = syncAll
	}

	go func(parentCtx context.Context, ticker *time.Ticker, stopCh <-chan struct{}) {
		for {
			select {
			case <-ticker.C:
				syncCtx, syncCancel := context.WithTimeout(parentCtx, constants.SyncTimeout)
				err := run(syncCtx, c)
				syncCancel()

				if err != nil {
					if stderrors.Is(err, context.Canceled) && parentCtx.Err() != nil {
						return
					}
					logging.Error().Err(err).Msg("Scheduled sync failed")
				}
			case <-parentCtx.Done():
				return
			case <-stopCh:
				return
			}
		}
	}(ctx, c.ticker, c.stopCh)

	logging.Info().Dur("interval", interval).Msg("Scheduled sync enabled")
	return nil
}

// AutoSyncOff stops scheduled passes.
func (c *client) AutoSyncOff() error {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()

	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.syncCancel != nil {
		c.syncCancel()
		c.syncCancel = nil
	}
	select {
	case <-c.stopCh:
		// Already closed
	default:
		close(c.stopCh)
	}
	return nil
}

func syncAll(ctx context.Context, c Client) error {
	_, err := c.SyncAll(ctx)
	return err
}
