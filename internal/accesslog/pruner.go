package accesslog

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

const pruneSchedule = "@every 1h"

type Pruner struct {
	store     *Store
	retention time.Duration
	cron      *cron.Cron
}

// NewPruner removes entries older than retentionDays once per hour. A retention of zero or less disables it.
func NewPruner(store *Store, retentionDays int) (*Pruner, error) {
	p := &Pruner{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		cron:      cron.New(),
	}

	if retentionDays <= 0 {
		return p, nil
	}

	if _, err := p.cron.AddFunc(pruneSchedule, func() {
		if _, err := p.PruneNow(context.Background()); err != nil {
			log.Errorf("Could not prune access log: %s", err)
		}
	}); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}

	deleted, err := p.store.Prune(ctx, time.Now().Add(-p.retention))

	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		log.Debugf("Pruned %d access log entries", deleted)
	}

	return deleted, nil
}

// Run prunes once, then on schedule until ctx is done.
func (p *Pruner) Run(ctx context.Context) error {
	if _, err := p.PruneNow(ctx); err != nil {
		log.Errorf("Could not prune access log: %s", err)
	}

	p.cron.Start()

	<-ctx.Done()

	<-p.cron.Stop().Done()

	return nil
}
