// Completion: 85% - Top-level compiler driver.
//
// Wires the pipeline every other file in this package assumes exists:
// lex -> parse -> resolve imports -> typecheck -> optimize -> emit C ->
// invoke the host C compiler against the embedded runtime.
package main

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

//go:embed runtimec
var runtimeCSource embed.FS

// CompileOptions collects the knobs cmdBuild/cmdRun/cmdTest in cli.go
// thread through to one compilation.
type CompileOptions struct {
	OutputPath  string
	Platform    Platform
	OptTimeout  float64
	Verbose     bool
	SingleFile  bool
	KeepCSource bool
}

// CompileSindarinWithOptions runs the full pipeline for one entry source
// file, producing a native executable at outputPath. It is the single
// function cli.go, watch.go and run.go call; cmdBuild/cmdRun/cmdTest in
// cli.go only differ in which arguments they pass and what they do with
// the result.
func CompileSindarinWithOptions(srcPath, outputPath string, platform Platform, optTimeout float64, verbose bool) error {
	state := NewCompilerState(platform, CompileOptions{
		OutputPath: outputPath,
		Platform:   platform,
		OptTimeout: optTimeout,
		Verbose:    verbose,
	})
	return state.Run(srcPath)
}

// compileToC runs every stage up to and including code generation and
// returns the emitted C translation unit as text, without invoking the
// host compiler. CompilerState.Run calls it before writing the C file
// and invoking cc.
func compileToC(srcPath string) (string, *ErrorCollector, error) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", srcPath, err)
	}

	parser := NewParserWithFilename(string(src), srcPath)
	prog := parser.ParseProgram()
	errs := NewErrorCollector(20)
	errs.SetSourceCode(string(src))
	if parser.HasErrors() {
		return "", errs, fmt.Errorf("parse errors in %s: %v", srcPath, parser.Errors)
	}

	if !SingleFlag {
		if err := resolveSiblingImports(prog, srcPath); err != nil {
			return "", errs, err
		}
	}

	table := NewSymbolTable()
	checker := NewChecker(table, errs)
	checker.CheckProgram(srcPath, prog)
	if errs.HasErrors() {
		return "", errs, fmt.Errorf("type errors in %s", srcPath)
	}

	prog = optimizeProgram(prog)

	var hotFuncs map[string]bool
	if PGOProfilePath != "" {
		hotspots, perr := LoadProfile(PGOProfilePath)
		if perr != nil {
			return "", errs, fmt.Errorf("loading PGO profile %s: %w", PGOProfilePath, perr)
		}
		hotFuncs = ApplyProfileGuidance(prog, hotspots, 0)
	}

	gen := NewCodeGen(table, errs)
	gen.SetHotFunctions(hotFuncs)
	c := gen.GenerateProgram(prog)
	if errs.HasErrors() {
		return "", errs, fmt.Errorf("codegen errors in %s", srcPath)
	}
	return c, errs, nil
}

// writeEmbeddedRuntime unpacks the embedded runtimec/ tree into dir so
// the host compiler can #include "runtimec/sindarin_runtime.h" and link
// its translation units, without requiring a separate install step
// (the single compiler binary carries its own runtime).
func writeEmbeddedRuntime(dir string) ([]string, error) {
	var cFiles []string
	entries, err := runtimeCSource.ReadDir("runtimec")
	if err != nil {
		return nil, err
	}
	target := filepath.Join(dir, "runtimec")
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, err
	}
	for _, e := range entries {
		data, err := runtimeCSource.ReadFile(filepath.Join("runtimec", e.Name()))
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(target, e.Name())
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return nil, err
		}
		if filepath.Ext(e.Name()) == ".c" {
			cFiles = append(cFiles, dst)
		}
	}
	return cFiles, nil
}

// invokeHostCC links the generated C against the embedded runtime using
// the configured host compiler (driverconfig.go's SINDARINC_CC, cross
// triple from target.go); machine code is the host toolchain's job,
// never emitted here.
func invokeHostCC(cSourcePath string, runtimeFiles []string, outputPath string, platform Platform, verbose bool) error {
	cc := HostCC()
	args := []string{cSourcePath}
	args = append(args, runtimeFiles...)
	args = append(args, "-I"+filepath.Dir(cSourcePath), "-lpthread", "-o", outputPath)
	args = append(args, CrossCompileFlags(platform)...)

	cmd := exec.Command(cc, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if verbose {
		fmt.Fprintf(os.Stderr, "%s %v\n", cc, args)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w\n%s", cc, err, stderr.String())
	}
	return nil
}
