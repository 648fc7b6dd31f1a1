package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"noiseprop/internal/config"
	perrors "noiseprop/internal/errors"
	"noiseprop/internal/slogutil"
	"noiseprop/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.Propagation.ThreadCount = 2
	cfg.Propagation.MaximumError = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return cfg
}

func TestRunScene_Stored(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.StorePaths = true

	resp, err := runScene(context.Background(), cfg, "testdata/street.yaml", true, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("runScene failed: %v", err)
	}
	if resp.RunID == "" {
		t.Fatal("stored run has no id")
	}
	if resp.Sources != 2 || resp.Receivers != 3 {
		t.Errorf("sources = %d, receivers = %d, want 2 and 3", resp.Sources, resp.Receivers)
	}
	if len(resp.Levels) != 3 {
		t.Fatalf("got %d receiver levels, want 3", len(resp.Levels))
	}
	for _, s := range resp.Levels {
		if s.Power <= 0 || s.Skipped != 0 {
			t.Errorf("receiver %d: power = %v, skipped = %d", s.ReceiverID, s.Power, s.Skipped)
		}
	}
	if resp.Stats.Pairs == 0 || resp.Stats.DirectPaths == 0 {
		t.Errorf("stats = %+v", resp.Stats)
	}

	db, err := storage.Open(cfg.Storage.Path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	got, err := loadResults(db, resultsQuery{all: true})
	if err != nil {
		t.Fatalf("loadResults failed: %v", err)
	}
	if got.Run.ID != resp.RunID || got.Run.Status != storage.StatusCompleted {
		t.Errorf("run = %s (%s), want %s completed", got.Run.ID, got.Run.Status, resp.RunID)
	}
	if len(got.Attenuation) != 6 {
		t.Errorf("got %d attenuation records, want 6", len(got.Attenuation))
	}

	rcv, src := int64(10), int64(2)
	got, err = loadResults(db, resultsQuery{runID: resp.RunID, receiver: &rcv, source: &src})
	if err != nil {
		t.Fatalf("loadResults failed: %v", err)
	}
	if len(got.Attenuation) != 2 {
		t.Errorf("got %d records for receiver 10, want 2", len(got.Attenuation))
	}
	if len(got.Paths) == 0 {
		t.Error("no stored path for receiver 10 and source 2")
	}
}

func TestRunScene_NoStore(t *testing.T) {
	cfg := testConfig(t)
	resp, err := runScene(context.Background(), cfg, "testdata/street.yaml", false, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("runScene failed: %v", err)
	}
	if resp.RunID != "" {
		t.Errorf("RunID = %q, want empty", resp.RunID)
	}
	if _, err := os.Stat(cfg.Storage.Path); !os.IsNotExist(err) {
		t.Errorf("database created without storage: %v", err)
	}
}

func TestRunScene_BandMismatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bands.Nominal = []float64{500, 1000}
	_, err := runScene(context.Background(), cfg, "testdata/street.yaml", false, slogutil.NewDiscardLogger())
	if !perrors.IsCode(err, perrors.BandMismatch) {
		t.Errorf("error = %v, want BAND_MISMATCH", err)
	}
}

func TestRunScene_MissingScene(t *testing.T) {
	cfg := testConfig(t)
	_, err := runScene(context.Background(), cfg, "testdata/absent.yaml", true, slogutil.NewDiscardLogger())
	if !perrors.IsCode(err, perrors.InvalidScene) {
		t.Errorf("error = %v, want INVALID_SCENE", err)
	}
}

func TestRunScene_ThreadCountIndependent(t *testing.T) {
	var levels [2][]float64
	for i, threads := range []int{1, 4} {
		cfg := testConfig(t)
		cfg.Propagation.ThreadCount = threads
		resp, err := runScene(context.Background(), cfg, "testdata/street.yaml", false, slogutil.NewDiscardLogger())
		if err != nil {
			t.Fatalf("runScene(threads=%d) failed: %v", threads, err)
		}
		for _, s := range resp.Levels {
			levels[i] = append(levels[i], s.Level)
		}
	}
	for j := range levels[0] {
		if levels[0][j] != levels[1][j] {
			t.Errorf("receiver %d level = %v with 1 thread, %v with 4", j, levels[0][j], levels[1][j])
		}
	}
}

func TestFormatRunHuman(t *testing.T) {
	cfg := testConfig(t)
	resp, err := runScene(context.Background(), cfg, "testdata/street.yaml", false, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("runScene failed: %v", err)
	}
	out, err := FormatResponse(resp, FormatHuman)
	if err != nil {
		t.Fatalf("FormatResponse failed: %v", err)
	}
	for _, want := range []string{"Run: street", "RECEIVER", "Pairs evaluated:", "63 125 250 500 1k 2k 4k 8k"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
