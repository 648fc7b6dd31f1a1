// Package testutil loads the reference propagation cases kept under
// testdata/reference and compares computed levels against them.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
)

// ReferenceCase is a single source-receiver configuration with its expected
// per-band sound pressure levels.
type ReferenceCase struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Source and Receiver are absolute positions (x, y, z) in m.
	Source   [3]float64 `json:"source"`
	Receiver [3]float64 `json:"receiver"`
	// G is the ground absorption of the whole domain.
	G float64 `json:"g"`

	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`

	// Nominal and Exact are the band centre frequencies in Hz.
	Nominal []float64 `json:"nominal"`
	Exact   []float64 `json:"exact"`
	// Power is the sound power level of the source in dB, the same in every
	// band.
	Power float64 `json:"power"`
	// Expected holds the received level per band in dB.
	Expected  []float64 `json:"expected"`
	Tolerance float64   `json:"tolerance"`

	path string
}

// Path returns the file the case was loaded from.
func (c *ReferenceCase) Path() string {
	return c.path
}

// LoadReference loads testdata/reference/<name>.json, failing the test on
// error. A missing tolerance defaults to 0.1 dB.
func LoadReference(t *testing.T, name string) *ReferenceCase {
	t.Helper()

	p := filepath.Join(referenceRoot(t), name+".json")
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("Failed to read reference case: %v", err)
	}

	var c ReferenceCase
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("Failed to parse reference case %s: %v", p, err)
	}
	if len(c.Expected) != len(c.Nominal) {
		t.Fatalf("Reference case %s has %d expected levels for %d bands", name, len(c.Expected), len(c.Nominal))
	}
	if c.Tolerance == 0 {
		c.Tolerance = 0.1
	}
	c.path = p
	return &c
}

// AvailableReferences returns the names of the reference cases, sorted.
func AvailableReferences(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(referenceRoot(t))
	if err != nil {
		t.Fatalf("Failed to read reference directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// ForEachReference runs fn for every reference case.
func ForEachReference(t *testing.T, fn func(t *testing.T, c *ReferenceCase)) {
	t.Helper()

	names := AvailableReferences(t)
	if len(names) == 0 {
		t.Skip("No reference case available")
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			fn(t, LoadReference(t, name))
		})
	}
}

// referenceRoot returns the absolute path to testdata/reference/.
func referenceRoot(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	root := filepath.Join(projectRoot, "testdata", "reference")

	if _, err := os.Stat(root); os.IsNotExist(err) {
		t.Fatalf("Reference root not found: %s", root)
	}
	return root
}
