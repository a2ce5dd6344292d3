// Completion: 55% - Profile-guided optimization: ingest a pprof CPU
// profile from a previous run and use it to pick the functions whose
// loops reuse the function arena instead of a per-iteration loop arena
// (the one consumer for github.com/google/pprof/profile).
package main

import (
	"fmt"
	"os"

	"github.com/google/pprof/profile"
)

// HotSpot is one function this compile run's profile says is worth
// spending extra optimizer effort on.
type HotSpot struct {
	FunctionName string
	SampleCount  int64
}

// LoadProfile parses a pprof-format CPU profile (its path comes from the
// -pgo flag or the SINDARINC_PGO_PROFILE env var read in driverconfig.go)
// and returns the functions it names, heaviest first.
func LoadProfile(path string) ([]HotSpot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile %s: %w", path, err)
	}
	defer f.Close()

	prof, err := profile.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing pprof profile %s: %w", path, err)
	}

	counts := make(map[string]int64)
	for _, sample := range prof.Sample {
		if len(sample.Value) == 0 {
			continue
		}
		for _, loc := range sample.Location {
			for _, line := range loc.Line {
				if line.Function == nil {
					continue
				}
				counts[line.Function.Name] += sample.Value[0]
			}
		}
	}

	hotspots := make([]HotSpot, 0, len(counts))
	for name, n := range counts {
		hotspots = append(hotspots, HotSpot{FunctionName: name, SampleCount: n})
	}
	sortHotSpotsDescending(hotspots)
	return hotspots, nil
}

func sortHotSpotsDescending(spots []HotSpot) {
	for i := 1; i < len(spots); i++ {
		for j := i; j > 0 && spots[j].SampleCount > spots[j-1].SampleCount; j-- {
			spots[j], spots[j-1] = spots[j-1], spots[j]
		}
	}
}

// ApplyProfileGuidance biases the optimizer toward functions the
// profile marks hot: currently limited to forcing the arena discipline
// of a hot `default` function to be treated as a tight loop candidate
// by codegen_stmt.go's loop-arena reuse path. Functions
// named in the profile but absent from this compile unit are skipped
// silently - profiles are commonly reused across incremental builds
// where some functions have since been removed.
func ApplyProfileGuidance(prog *Program, hotspots []HotSpot, threshold int64) map[string]bool {
	hot := make(map[string]bool, len(hotspots))
	for _, h := range hotspots {
		if h.SampleCount >= threshold {
			hot[h.FunctionName] = true
		}
	}
	marked := make(map[string]bool)
	for _, s := range prog.Statements {
		fn, ok := s.(*FunctionStmt)
		if !ok {
			continue
		}
		if hot[mangleName(fn.Name.Lexeme)] || hot[fn.Name.Lexeme] {
			marked[fn.Name.Lexeme] = true
		}
	}
	return marked
}
