// Package aggregator collects per receiver results from the scheduler workers.
//
// Each worker owns a Buffer. Fragments of one source are merged inside the
// buffer and the receiver's records are pushed to the shared Aggregator under
// a single lock once the receiver is finished. Internal dense indices are
// replaced by external ids at that point.
package aggregator

import (
	"sort"
	"sync"
	"sync/atomic"

	"noiseprop/internal/acoustics"
	"noiseprop/internal/path"
)

// Record is the merged attenuation between a receiver and a source, in dB per
// band.
type Record struct {
	ReceiverID int64     `json:"receiverId"`
	SourceID   int64     `json:"sourceId"`
	Levels     []float64 `json:"levels"`
}

// PathRecord is one evaluated path kept for diagnostics.
type PathRecord struct {
	ReceiverID int64     `json:"receiverId"`
	SourceID   int64     `json:"sourceId"`
	Path       path.Path `json:"path"`
}

// Summary is the received power accepted at a receiver.
type Summary struct {
	ReceiverID int64 `json:"receiverId"`
	// Power is the total accepted power in W.
	Power float64 `json:"power"`
	// Level is Power in dB.
	Level     float64 `json:"level"`
	Processed int     `json:"processed"`
	Skipped   int     `json:"skipped"`
}

// Stats is a snapshot of the run counters.
type Stats struct {
	Pairs           int64 `json:"pairs"`
	DirectPaths     int64 `json:"directPaths"`
	ReflectedPaths  int64 `json:"reflectedPaths"`
	DiffractedPaths int64 `json:"diffractedPaths"`
	MirrorImages    int64 `json:"mirrorImages"`
	SkippedSources  int64 `json:"skippedSources"`
	Receivers       int64 `json:"receivers"`
}

type counters struct {
	pairs, direct, reflected, diffracted atomic.Int64
	mirrors, skipped, receivers          atomic.Int64
}

// Aggregator is the shared result sink of a run.
type Aggregator struct {
	sourceIDs   []int64
	receiverIDs []int64
	keepPaths   bool

	mu        sync.Mutex
	records   []Record
	paths     []PathRecord
	summaries []Summary

	stats counters
}

// New creates an aggregator mapping internal source and receiver indices to
// the given external ids.
func New(sourceIDs, receiverIDs []int64, keepPaths bool) *Aggregator {
	return &Aggregator{
		sourceIDs:   sourceIDs,
		receiverIDs: receiverIDs,
		keepPaths:   keepPaths,
	}
}

// KeepPaths reports whether evaluated paths are retained.
func (a *Aggregator) KeepPaths() bool {
	return a.keepPaths
}

// AddMirrorImages counts mirror images built for a receiver.
func (a *Aggregator) AddMirrorImages(n int64) {
	a.stats.mirrors.Add(n)
}

// Records returns the merged records ordered by receiver id then source id.
func (a *Aggregator) Records() []Record {
	a.mu.Lock()
	out := append([]Record(nil), a.records...)
	a.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceiverID != out[j].ReceiverID {
			return out[i].ReceiverID < out[j].ReceiverID
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// Paths returns the retained paths, empty unless keepPaths was set.
func (a *Aggregator) Paths() []PathRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]PathRecord(nil), a.paths...)
}

// Summaries returns the receiver summaries ordered by receiver id.
func (a *Aggregator) Summaries() []Summary {
	a.mu.Lock()
	out := append([]Summary(nil), a.summaries...)
	a.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ReceiverID < out[j].ReceiverID })
	return out
}

// Stats returns a snapshot of the counters.
func (a *Aggregator) Stats() Stats {
	return Stats{
		Pairs:           a.stats.pairs.Load(),
		DirectPaths:     a.stats.direct.Load(),
		ReflectedPaths:  a.stats.reflected.Load(),
		DiffractedPaths: a.stats.diffracted.Load(),
		MirrorImages:    a.stats.mirrors.Load(),
		SkippedSources:  a.stats.skipped.Load(),
		Receivers:       a.stats.receivers.Load(),
	}
}

func (a *Aggregator) countPaths(paths []path.Path) {
	for _, p := range paths {
		switch p.Kind() {
		case path.Direct:
			a.stats.direct.Add(1)
		case path.Reflected:
			a.stats.reflected.Add(1)
		default:
			a.stats.diffracted.Add(1)
		}
	}
}

// NewBuffer returns a buffer owned by a single worker.
func (a *Aggregator) NewBuffer() *Buffer {
	return &Buffer{agg: a, receiver: -1}
}

// Buffer accumulates the results of one receiver at a time. It is not safe
// for concurrent use.
type Buffer struct {
	agg      *Aggregator
	receiver int
	order    []int
	levels   map[int][]float64
	paths    []PathRecord
}

// Begin starts a new receiver, dropping anything not finalized.
func (b *Buffer) Begin(receiver int) {
	b.receiver = receiver
	b.order = b.order[:0]
	b.levels = make(map[int][]float64)
	b.paths = nil
}

// Add merges the attenuation of one fragment of a source into the buffer.
// Fragments of the same source are summed energetically.
func (b *Buffer) Add(sourceIndex int, levels []float64, paths []path.Path) error {
	b.agg.stats.pairs.Add(1)
	b.agg.countPaths(paths)
	if b.agg.keepPaths {
		rid, sid := b.agg.receiverIDs[b.receiver], b.agg.sourceIDs[sourceIndex]
		for _, p := range paths {
			b.paths = append(b.paths, PathRecord{ReceiverID: rid, SourceID: sid, Path: p})
		}
	}
	if levels == nil {
		return nil
	}
	prev, ok := b.levels[sourceIndex]
	if !ok {
		b.order = append(b.order, sourceIndex)
		b.levels[sourceIndex] = append([]float64(nil), levels...)
		return nil
	}
	merged, err := acoustics.SumDbArray(prev, levels)
	if err != nil {
		return err
	}
	b.levels[sourceIndex] = merged
	return nil
}

// FinalizeReceiver pushes the receiver's records and summary to the
// aggregator. Summary.ReceiverID is filled from the receiver index.
func (b *Buffer) FinalizeReceiver(summary Summary) {
	a := b.agg
	rid := a.receiverIDs[b.receiver]
	records := make([]Record, 0, len(b.order))
	for _, idx := range b.order {
		records = append(records, Record{ReceiverID: rid, SourceID: a.sourceIDs[idx], Levels: b.levels[idx]})
	}
	summary.ReceiverID = rid
	if summary.Power > 0 {
		summary.Level = acoustics.WToDba(summary.Power)
	}

	a.mu.Lock()
	a.records = append(a.records, records...)
	a.paths = append(a.paths, b.paths...)
	a.summaries = append(a.summaries, summary)
	a.mu.Unlock()

	a.stats.skipped.Add(int64(summary.Skipped))
	a.stats.receivers.Add(1)
	b.Begin(-1)
}
