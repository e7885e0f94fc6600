package automation

import (
	"strings"
	"time"
)

// statFunctions are the aggregate names a stat_<sensor>_<fn>_<window>
// identifier may name; parseStatIdent validates against this set.
var statFunctions = map[string]struct{}{
	"mean": {}, "min": {}, "max": {}, "stddev": {}, "count": {},
}

// statIdent is a parsed stat_<sensor>_<fn>_<window> identifier. windowTok
// is kept verbatim (rather than re-derived from window.String(), which
// normalizes e.g. 1h to "1h0m0s") so key() reproduces exactly the
// identifier a rule's condition/formula references.
type statIdent struct {
	sensor    string
	fn        string
	window    time.Duration
	windowTok string
}

func (s statIdent) key() string {
	return "stat_" + s.sensor + "_" + s.fn + "_" + s.windowTok
}

// parseStatIdent splits a "stat_..." identifier into sensor/fn/window.
// The window token must parse as a Go duration (30s, 5m, 1h); the
// function token must be one of statFunctions; everything between
// "stat_" and those last two underscore-delimited tokens is the sensor
// name, which may itself contain underscores.
func parseStatIdent(name string) (statIdent, bool) {
	if !strings.HasPrefix(name, "stat_") {
		return statIdent{}, false
	}
	rest := strings.TrimPrefix(name, "stat_")
	parts := strings.Split(rest, "_")
	if len(parts) < 3 {
		return statIdent{}, false
	}
	windowTok := parts[len(parts)-1]
	fnTok := parts[len(parts)-2]
	sensor := strings.Join(parts[:len(parts)-2], "_")
	if sensor == "" {
		return statIdent{}, false
	}
	if _, ok := statFunctions[fnTok]; !ok {
		return statIdent{}, false
	}
	d, err := time.ParseDuration(windowTok)
	if err != nil {
		return statIdent{}, false
	}
	return statIdent{sensor: sensor, fn: fnTok, window: d, windowTok: windowTok}, true
}
