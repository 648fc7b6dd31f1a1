package testutil

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"testing"
)

// updateReference rewrites the expected levels of the reference cases.
// Use: go test ./... -run TestReference -update
var updateReference = flag.Bool("update", false, "update reference levels")

// ShouldUpdate returns true if reference levels should be rewritten.
func ShouldUpdate() bool {
	return *updateReference
}

// CompareLevels checks got against the expected levels of c, failing with a
// per-band report on mismatch. With -update the case file is rewritten with
// got instead.
func CompareLevels(t *testing.T, c *ReferenceCase, got []float64) {
	t.Helper()

	if len(got) != len(c.Expected) {
		t.Fatalf("%s: got %d bands, want %d", c.Name, len(got), len(c.Expected))
	}

	if *updateReference {
		UpdateReference(t, c, got)
		t.Logf("Updated reference: %s", c.path)
		return
	}

	if report, ok := levelReport(c, got); !ok {
		t.Fatalf("Reference mismatch for %s (tolerance %.2f dB):\n%s\nRun with -update to refresh:\n  go test ./... -run %s -update",
			c.Name, c.Tolerance, report, t.Name())
	}
}

// UpdateReference writes got, rounded to 0.01 dB, as the expected levels of c.
func UpdateReference(t *testing.T, c *ReferenceCase, got []float64) {
	t.Helper()

	updated := *c
	updated.Expected = make([]float64, len(got))
	for i, v := range got {
		updated.Expected[i] = math.Round(v*100) / 100
	}

	data, err := json.MarshalIndent(&updated, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal reference case: %v", err)
	}
	if err := os.WriteFile(c.path, append(data, '\n'), 0o644); err != nil {
		t.Fatalf("Failed to write reference case: %v", err)
	}
}

// levelReport lists every band with its expected and computed level, marking
// the ones out of tolerance.
func levelReport(c *ReferenceCase, got []float64) (string, bool) {
	var buf bytes.Buffer
	ok := true

	fmt.Fprintf(&buf, "%10s %9s %9s %7s\n", "band (Hz)", "expected", "got", "diff")
	for i, want := range c.Expected {
		diff := got[i] - want
		mark := " "
		if math.IsNaN(got[i]) || math.Abs(diff) > c.Tolerance {
			mark = "!"
			ok = false
		}
		fmt.Fprintf(&buf, "%s%9g %9.2f %9.2f %+7.2f\n", mark, c.Nominal[i], want, got[i], diff)
	}
	return buf.String(), ok
}
