// Package scheduler runs the propagation of every source to every receiver.
//
// Receivers are split into contiguous index ranges handed to a fixed worker
// pool. Inside a receiver, discretized sources are processed best first and
// the loop stops once the sources left cannot move the accepted level by more
// than the configured error budget.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"noiseprop/internal/acoustics"
	"noiseprop/internal/aggregator"
	"noiseprop/internal/attenuation"
	perrors "noiseprop/internal/errors"
	"noiseprop/internal/geo"
	"noiseprop/internal/oracle"
	"noiseprop/internal/path"
	"noiseprop/internal/source"
)

// Config controls the worker pool and the stop rule.
type Config struct {
	// ThreadCount is the number of workers, NumCPU when zero or negative.
	ThreadCount int
	// MaximumError is the error budget in dB. Zero disables the stop rule.
	MaximumError float64
}

// Range is a half-open interval of receiver indices.
type Range struct {
	Start, End int
}

// Partition splits n receivers into at most threads contiguous ranges of
// ceil(n/threads) receivers.
func Partition(n, threads int) []Range {
	if n <= 0 {
		return nil
	}
	if threads < 1 {
		threads = 1
	}
	batch := (n + threads - 1) / threads
	out := make([]Range, 0, threads)
	for start := 0; start < n; start += batch {
		out = append(out, Range{Start: start, End: min(start+batch, n)})
	}
	return out
}

// Engine wires the propagation components of a run.
type Engine struct {
	builder   *path.Builder
	evaluator *attenuation.Evaluator
	sources   *source.Discretizer
	oracle    oracle.Oracle
	agg       *aggregator.Aggregator
	cfg       Config
	logger    *slog.Logger

	done atomic.Int64
}

// New creates an engine. The components must be fully built: workers only
// read them.
func New(b *path.Builder, e *attenuation.Evaluator, d *source.Discretizer, o oracle.Oracle, agg *aggregator.Aggregator, cfg Config, logger *slog.Logger) *Engine {
	if cfg.ThreadCount <= 0 {
		cfg.ThreadCount = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		builder:   b,
		evaluator: e,
		sources:   d,
		oracle:    o,
		agg:       agg,
		cfg:       cfg,
		logger:    logger,
	}
}

// Progress returns the number of receivers completed so far.
func (e *Engine) Progress() int64 {
	return e.done.Load()
}

// Run computes every receiver and pushes the results to the aggregator.
// Receiver positions are absolute. A failing range does not stop the other
// ranges; the failures are returned joined.
func (e *Engine) Run(ctx context.Context, receivers []geo.Coordinate) error {
	start := time.Now()
	images := e.builder.MirrorImages()
	ranges := Partition(len(receivers), e.cfg.ThreadCount)

	var err error
	if e.cfg.ThreadCount == 1 || len(ranges) <= 1 {
		var errs []error
		for _, r := range ranges {
			if rerr := e.runRange(ctx, r, receivers); rerr != nil {
				errs = append(errs, rerr)
			}
		}
		err = errors.Join(errs...)
	} else {
		p := pool.New().WithErrors().WithMaxGoroutines(e.cfg.ThreadCount)
		for _, r := range ranges {
			p.Go(func() error {
				return e.runRange(ctx, r, receivers)
			})
		}
		err = p.Wait()
	}

	e.agg.AddMirrorImages(e.builder.MirrorImages() - images)
	stats := e.agg.Stats()
	e.logger.Info("Propagation finished",
		"receivers", stats.Receivers,
		"pairs", stats.Pairs,
		"directPaths", stats.DirectPaths,
		"reflectedPaths", stats.ReflectedPaths,
		"diffractedPaths", stats.DiffractedPaths,
		"mirrorImages", stats.MirrorImages,
		"skippedSources", stats.SkippedSources,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return err
}

func (e *Engine) runRange(ctx context.Context, r Range, receivers []geo.Coordinate) (err error) {
	current := r.Start
	defer func() {
		if rec := recover(); rec != nil {
			err = e.rangeFailed(r, current, fmt.Errorf("panic: %v", rec))
		}
	}()

	e.logger.Debug("Starting receiver range", "start", r.Start, "end", r.End)
	buf := e.agg.NewBuffer()
	for ; current < r.End; current++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if rerr := e.receiver(buf, current, receivers[current]); rerr != nil {
			return e.rangeFailed(r, current, rerr)
		}
		e.done.Add(1)
	}
	return nil
}

func (e *Engine) rangeFailed(r Range, receiver int, cause error) error {
	e.logger.Error("Receiver range failed",
		"start", r.Start,
		"end", r.End,
		"receiver", receiver,
		"error", cause.Error(),
	)
	return perrors.New(perrors.RangeFailed, fmt.Sprintf("receiver range [%d, %d) failed at receiver %d", r.Start, r.End, receiver), cause).
		WithDetails(map[string]any{"start": r.Start, "end": r.End, "receiver": receiver})
}

// receiver processes the discretized sources around one receiver, best first.
func (e *Engine) receiver(buf *aggregator.Buffer, idx int, rcv geo.Coordinate) error {
	buf.Begin(idx)
	points := e.candidates(rcv)

	var remaining, received float64
	for _, p := range points {
		remaining += p.TotalBound
	}

	processed := 0
	for _, sp := range points {
		if e.converged(received, remaining) {
			break
		}
		paths := e.builder.Paths(sp.Position, rcv, sp.walls)
		levels, err := e.evaluator.EvaluateMeteo(paths)
		if err != nil {
			return err
		}
		if levels != nil {
			if sp.Li != 1 {
				gain := 10 * math.Log10(sp.Li)
				for i := range levels {
					levels[i] += gain
				}
			}
			for i, w := range sp.Power {
				received += w * acoustics.DbaToW(levels[i])
			}
		}
		if err := buf.Add(sp.Index, levels, paths); err != nil {
			return err
		}
		remaining = math.Max(0, remaining-sp.TotalBound)
		processed++
	}

	buf.FinalizeReceiver(aggregator.Summary{
		Power:     received,
		Processed: processed,
		Skipped:   len(points) - processed,
	})
	return nil
}

// candidate is a discretized source with the walls it may reflect on toward
// the current receiver.
type candidate struct {
	source.Point
	walls []oracle.Wall
}

// candidates returns the sources around rcv in processing order. Each bound
// covers one path per direct route and mirror image the pair can produce.
func (e *Engine) candidates(rcv geo.Coordinate) []candidate {
	points := e.sources.Near(rcv)
	out := make([]candidate, len(points))
	for i, p := range points {
		walls := e.walls(p.Position, rcv)
		p.Scale(float64(e.pathSlots(p.Position, rcv, walls)))
		out[i] = candidate{Point: p, walls: walls}
	}
	sort.Slice(out, func(i, j int) bool { return source.Less(out[i].Point, out[j].Point) })
	return out
}

// pathSlots is the largest number of paths the builder can return for the
// pair: the free field, or one path over the roofs and one around each side,
// plus one per mirror image.
func (e *Engine) pathSlots(src, rcv geo.Coordinate, walls []oracle.Wall) int {
	slots := 1
	if !e.oracle.IsFreeField(src, rcv) {
		slots = 3
	}
	if len(walls) > 0 {
		cfg := e.builder.Settings()
		arena := path.BuildMirrors(rcv, src, walls, cfg.ReflectionOrder, cfg.MaxReflectionDistance, cfg.MaxSourceDistance)
		slots += len(arena.Nodes)
	}
	return slots
}

// converged reports whether the remaining bound can no longer change the
// accepted level by the error budget.
func (e *Engine) converged(received, remaining float64) bool {
	if e.cfg.MaximumError <= 0 || received <= 0 {
		return false
	}
	return acoustics.WToDba(received+remaining)-acoustics.WToDba(received) < e.cfg.MaximumError
}

// walls returns the facades that can hold a reflection for the pair: those
// within the reflection distance of the segment are all within that distance
// plus half the segment length of its midpoint.
func (e *Engine) walls(src, rcv geo.Coordinate) []oracle.Wall {
	cfg := e.builder.Settings()
	if cfg.ReflectionOrder <= 0 {
		return nil
	}
	mid := src.Lerp(rcv, 0.5)
	return e.oracle.WallsWithinRange(src.Distance2D(rcv)/2+cfg.MaxReflectionDistance, mid)
}
