// Completion: 85% - `sindarinc watch` - rebuild on source change.
//
// Glues the platform FileWatcher implementations (filewatcher_unix.go /
// filewatcher_darwin.go / filewatcher_windows.go) to the compile
// pipeline: the entry file and every sibling .sn module it imports are
// watched, and any write triggers a debounced rebuild. The watcher
// files carry the OS-specific mechanics (inotify, kqueue, polling);
// this file owns what "a change" means for a compilation unit.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// cmdWatch compiles once, then keeps recompiling whenever a watched
// source file changes. It never exits on a failed rebuild - diagnostics
// print and the watcher keeps going, so a broken intermediate save
// doesn't kill the loop.
func cmdWatch(ctx *CommandContext, args []string) error {
	var srcPath, outputPath string
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" && i+1 < len(args) {
			outputPath = args[i+1]
			i++
		} else if !strings.HasPrefix(args[i], "-") && srcPath == "" {
			srcPath = args[i]
		}
	}
	if srcPath == "" {
		return fmt.Errorf("usage: sindarinc watch <file.sn> [-o output]")
	}
	if outputPath == "" {
		outputPath = strings.TrimSuffix(filepath.Base(srcPath), ".sn")
		if ctx.Platform.OS == OSWindows {
			outputPath += ".exe"
		}
	}

	// Change events are cross-checked against recorded mtimes so a
	// touch without a content-relevant mtime change (or a duplicate
	// event for the same save) doesn't trigger a redundant rebuild.
	freshness := NewModuleFreshnessCache(16)
	for _, f := range watchSet(srcPath) {
		if info, err := os.Stat(f); err == nil {
			freshness.Stale(f, float64(info.ModTime().UnixNano())/1e9)
		}
	}

	rebuild := func(changed string) {
		if info, err := os.Stat(changed); err == nil {
			if !freshness.Stale(changed, float64(info.ModTime().UnixNano())/1e9) {
				return
			}
		}
		if !ctx.Quiet {
			fmt.Fprintf(os.Stderr, "[watch] %s changed, rebuilding\n", filepath.Base(changed))
		}
		if err := CompileSindarinWithOptions(srcPath, outputPath, ctx.Platform, ctx.OptTimeout, ctx.Verbose); err != nil {
			fmt.Fprintf(os.Stderr, "[watch] build failed: %v\n", err)
			return
		}
		if !ctx.Quiet {
			fmt.Fprintf(os.Stderr, "[watch] built %s\n", outputPath)
		}
	}

	// Initial build; a failure here still starts the watcher, since the
	// point of watch mode is iterating until it compiles.
	if err := CompileSindarinWithOptions(srcPath, outputPath, ctx.Platform, ctx.OptTimeout, ctx.Verbose); err != nil {
		fmt.Fprintf(os.Stderr, "[watch] initial build failed: %v\n", err)
	} else if !ctx.Quiet {
		fmt.Fprintf(os.Stderr, "[watch] built %s\n", outputPath)
	}

	fw, err := NewFileWatcher(rebuild)
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer fw.Close()

	for _, f := range watchSet(srcPath) {
		if err := fw.AddFile(f); err != nil {
			fmt.Fprintf(os.Stderr, "[watch] %v\n", err)
		}
	}

	if !ctx.Quiet {
		fmt.Fprintf(os.Stderr, "[watch] watching %s (ctrl-c to stop)\n", srcPath)
	}
	fw.Watch()
	return nil
}

// watchSet is the entry file plus every sibling .sn module it could
// import - the same universe resolveSiblingImports draws from, so a
// change to any module in the compilation unit triggers a rebuild.
func watchSet(srcPath string) []string {
	files := []string{srcPath}
	if SingleFlag {
		return files
	}
	siblings, err := filepath.Glob(filepath.Join(filepath.Dir(srcPath), "*.sn"))
	if err != nil {
		return files
	}
	abs, _ := filepath.Abs(srcPath)
	for _, s := range siblings {
		sAbs, _ := filepath.Abs(s)
		if sAbs != abs {
			files = append(files, s)
		}
	}
	return files
}
