package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/punch"
	"golang.org/x/sync/errgroup"
)

// SyncTarget is one terminal polled by the scheduler.
type SyncTarget struct {
	Address   string
	Port      int
	CompanyID string
}

type SyncJobs struct {
	syncService punch.SyncService
	targets     []SyncTarget
	concurrency int
}

func NewSyncJobs(syncService punch.SyncService, targets []SyncTarget, concurrency int) *SyncJobs {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncJobs{
		syncService: syncService,
		targets:     targets,
		concurrency: concurrency,
	}
}

func (j *SyncJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	if len(j.targets) == 0 {
		return
	}
	scheduler.AddJob("incremental_device_sync", interval, j.SyncAllDevices)
}

// SyncAllDevices runs an incremental sync per target with bounded
// concurrency. One failing terminal never stops the others.
func (j *SyncJobs) SyncAllDevices(ctx context.Context) error {
	slog.Info("Cron: Starting incremental device sync", "devices", len(j.targets))

	var (
		g        errgroup.Group
		failed   atomic.Int32
		inserted atomic.Int64
	)
	g.SetLimit(j.concurrency)

	for _, target := range j.targets {
		g.Go(func() error {
			result, err := j.syncService.IncrementalSync(ctx, punch.IncrementalSyncRequest{
				DeviceAddress: target.Address,
				CompanyID:     target.CompanyID,
				Port:          target.Port,
			})
			if err != nil {
				failed.Add(1)
				slog.Error("Cron: Device sync failed",
					"device", target.Address,
					"company_id", target.CompanyID,
					"error", err,
				)
				return nil
			}
			inserted.Add(int64(result.InsertedCount))
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Cron: Incremental device sync finished",
		"devices", len(j.targets),
		"failed", failed.Load(),
		"inserted", inserted.Load(),
	)
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d devices failed to sync", n, len(j.targets))
	}
	return nil
}
