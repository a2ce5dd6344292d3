// Completion: 90% - Process-wide compiler configuration: flags win over
// environment, environment wins over built-in defaults.
//
// Grounded on dependencies.go's existing SINDARINC_<FUNC> override
// convention (per-native-function env overrides) generalized to the
// compiler's own global knobs, read through github.com/xyproto/env/v2
// for typed environment lookups.
package main

import "github.com/xyproto/env/v2"

// Package-level switches every stage of the pipeline reads directly,
// the same "a few package vars everyone checks" pattern
// safe_buffer.go/compilation_pipeline.go already lean on for VerboseMode.
var (
	VerboseMode    bool
	QuietMode      bool
	SingleFlag     bool
	UpdateDepsFlag bool
	NoColor        bool
	CCOverride     string
	ArenaSize      int
	PGOProfilePath string
)

// LoadDriverConfig reads SINDARINC_CC / SINDARINC_ARENA_SIZE /
// SINDARINC_NO_COLOR / SINDARINC_PGO_PROFILE from the environment;
// main.go applies the command-line flags after this call, so they
// overwrite whichever of these they correspond to.
func LoadDriverConfig() {
	CCOverride = env.Str("SINDARINC_CC", "")
	ArenaSize = env.Int("SINDARINC_ARENA_SIZE", 0)
	NoColor = env.Bool("SINDARINC_NO_COLOR")
	PGOProfilePath = env.Str("SINDARINC_PGO_PROFILE", "")
}
