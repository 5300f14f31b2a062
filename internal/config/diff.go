package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Scoring and log level changes can be applied in place; every other
// section is listed in RestartRequired.
type ConfigDiff struct {
	ScoringChanged bool
	NewScoring     ScoringConfig

	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Changed reports whether any difference was found.
func (d ConfigDiff) Changed() bool {
	return d.ScoringChanged || d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Scoring != new.Scoring {
		d.ScoringChanged = true
		d.NewScoring = new.Scoring
	}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Server minus the log level.
	oldSrv, newSrv := old.Server, new.Server
	oldSrv.LogLevel, newSrv.LogLevel = "", ""
	if !reflect.DeepEqual(oldSrv, newSrv) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}

	sections := []struct {
		name     string
		old, new any
	}{
		{"catalog", old.Catalog, new.Catalog},
		{"location", old.Location, new.Location},
		{"ner", old.NER, new.NER},
		{"classifier", old.Classifier, new.Classifier},
		{"resilience", old.Resilience, new.Resilience},
		{"telemetry", old.Telemetry, new.Telemetry},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}

	return d
}
