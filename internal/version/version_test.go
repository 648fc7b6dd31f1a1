package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	tests := []struct {
		name   string
		commit string
		want   string
	}{
		{"unknown commit", "unknown", "1.0.0"},
		{"short commit", "abc", "1.0.0"},
		{"exactly 7 chars", "1234567", "1.0.0"},
		{"full hash", "abc1234567890", "1.0.0 (abc1234)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = "1.0.0", tt.commit
			if got := Info(); got != tt.want {
				t.Errorf("Info() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	defer func() { Version, Commit, BuildDate = origVersion, origCommit, origDate }()

	Version, Commit, BuildDate = "1.2.3", "abcdef123456", "2026-01-15"
	got := Full()
	for _, part := range []string{"noiseprop 1.2.3", "commit: abcdef123456", "built:  2026-01-15"} {
		if !strings.Contains(got, part) {
			t.Errorf("Full() = %q, want to contain %q", got, part)
		}
	}
}

func TestDefaultVersion(t *testing.T) {
	if parts := strings.Split(Version, "."); len(parts) != 3 {
		t.Errorf("Version %q is not major.minor.patch", Version)
	}
}
