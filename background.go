package disjoint

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunBackground drives the container's sweep loop until ctx is cancelled,
// applying cfg's strategy: a StrategyTimed mask triggers a full collecting
// Sweep once per cfg.Period, otherwise each tick only culls expired
// disjunctions. An allocFail channel, when non-nil and StrategyAllocFail is
// set, triggers an immediate collecting Sweep on receipt -- the Go-native
// substitute for a synchronous allocation-failure hook, since Go gives user
// code no callback at the point an allocation would otherwise fail.
//
// RunBackground blocks until ctx is done; callers run it in its own
// goroutine, mirroring the teacher's own background-loop goroutines.
func (c *Container) RunBackground(ctx context.Context, cfg StrategyConfig, allocFail <-chan struct{}) error {
	mask, err := cfg.Mask()
	if err != nil {
		return err
	}

	log := newLogger()

	period := cfg.Period
	if period <= 0 {
		period = time.Minute
	}
	var tick *time.Ticker
	var tickC <-chan time.Time
	if mask&StrategyTimed != 0 {
		tick = time.NewTicker(period)
		defer tick.Stop()
		tickC = tick.C
	}

	cull := time.NewTicker(period)
	defer cull.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cull.C:
			c.safeSweep(ctx, false, cfg.MaxConcurrent, log, "cull")
		case <-tickC:
			c.safeSweep(ctx, true, cfg.MaxConcurrent, log, "timed")
		case <-orDone(mask&StrategyAllocFail != 0, allocFail):
			c.safeSweep(ctx, true, cfg.MaxConcurrent, log, "allocfail")
		}
	}
}

// safeSweep runs one Sweep wrapped in a catch-all recover, per spec.md §7:
// the background loop must never die to an unhandled panic silently. An
// escaped panic is logged with its origin and then re-raised, aborting the
// process exactly as an uncaught one would, but only after the reason made
// it to the log.
func (c *Container) safeSweep(ctx context.Context, collect bool, maxConcurrent int, log zerolog.Logger, label string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("sweep", label).Msg("disjoint: background sweep panicked, aborting")
			panic(r)
		}
	}()
	if err := c.Sweep(ctx, collect, maxConcurrent); err != nil {
		log.Error().Err(err).Str("sweep", label).Msg("disjoint: sweep failed")
	}
}

// orDone returns ch when enabled is true, or a nil channel (which blocks
// forever in a select) otherwise -- the idiomatic way to make a select case
// conditionally inert.
func orDone(enabled bool, ch <-chan struct{}) <-chan struct{} {
	if !enabled || ch == nil {
		return nil
	}
	return ch
}
