package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/ipomatch/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(validConfig(), validConfig())
	if d.Changed() {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiff_ScoringChanged(t *testing.T) {
	t.Parallel()
	old := validConfig()
	updated := validConfig()
	updated.Scoring.LongThreshold = 106

	d := config.Diff(old, updated)
	if !d.ScoringChanged {
		t.Fatal("ScoringChanged should be true")
	}
	if d.NewScoring.LongThreshold != 106 {
		t.Errorf("NewScoring.LongThreshold: got %v, want 106", d.NewScoring.LongThreshold)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("scoring changes should not require restart, got %v", d.RestartRequired)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := validConfig()
	updated := validConfig()
	updated.Server.LogLevel = config.LogDebug

	d := config.Diff(old, updated)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level change not detected: %+v", d)
	}
	if slices.Contains(d.RestartRequired, "server") {
		t.Error("log level alone should not require a server restart")
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := validConfig()
	updated := validConfig()
	updated.Server.ReadTimeout = time.Second
	updated.Catalog.Headers = map[string]string{"Authorization": "Bearer x"}
	updated.NER.URLs = []string{"http://ner:8000/extract"}

	d := config.Diff(old, updated)
	want := []string{"server", "catalog", "ner"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired: got %v, want %v", d.RestartRequired, want)
	}
	if d.ScoringChanged {
		t.Error("ScoringChanged should be false")
	}
}
