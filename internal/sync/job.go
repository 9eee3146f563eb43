// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package sync

import (
	"context"
	"time"

	"github.com/jotline/jotline/internal/logger"
)

// CommitJob periodically triggers a commit cycle, flushing edits queued
// while the transport was down. The debounce path handles the interactive
// case; this job is the safety net behind it.
type CommitJob struct {
	engine   *Engine
	interval time.Duration
	log      *logger.Logger
	ctx      context.Context
}

// NewCommitJob builds the periodic commit worker. The job stops when ctx is
// cancelled.
func NewCommitJob(ctx context.Context, engine *Engine, interval time.Duration, log *logger.Logger) *CommitJob {
	return &CommitJob{
		engine:   engine,
		interval: interval,
		log:      log.WithComponent("commit-job"),
		ctx:      ctx,
	}
}

// Run starts the ticker loop on its own goroutine.
func (j *CommitJob) Run() {
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.log.Info().Dur("interval", j.interval).Msg("commit job started")
		for {
			select {
			case <-j.ctx.Done():
				j.log.Info().Msg("commit job stopped")
				return
			case <-ticker.C:
				j.engine.Commit(j.ctx)
			}
		}
	}()
}
