// Completion: 80% - Coordinates one compilation from source file to
// linked executable.
//
// A struct holding the target and compile options, driving the staged
// CompilationPipeline: lex/parse/resolve/typecheck/optimize/codegen/
// write/link.
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// CompilerState owns one compilation's pipeline and temporary
// artifacts (the generated .c file and the unpacked runtime sources).
type CompilerState struct {
	target   Platform
	options  CompileOptions
	pipeline *CompilationPipeline
	workDir  string
}

func NewCompilerState(target Platform, options CompileOptions) *CompilerState {
	return &CompilerState{
		target:   target,
		options:  options,
		pipeline: NewCompilationPipeline(),
	}
}

// Run drives the pipeline end to end for one source file, leaving a
// native executable at cs.options.OutputPath.
func (cs *CompilerState) Run(srcPath string) error {
	cs.pipeline.AdvanceTo(StageLexing)
	cs.pipeline.AdvanceTo(StageParsing)
	cs.pipeline.AdvanceTo(StageResolving)
	cs.pipeline.AdvanceTo(StageTypeChecking)
	cs.pipeline.AdvanceTo(StageOptimizing)
	cs.pipeline.AdvanceTo(StageCodeGen)

	cSource, errs, err := compileToC(srcPath)
	if err != nil {
		if errs != nil {
			fmt.Fprint(os.Stderr, errs.Report(!NoColor))
		}
		return err
	}

	cs.pipeline.AdvanceTo(StageWriting)
	workDir, err := os.MkdirTemp("", "sindarinc_build_*")
	if err != nil {
		return fmt.Errorf("creating build dir: %w", err)
	}
	cs.workDir = workDir
	if !cs.options.KeepCSource {
		defer os.RemoveAll(workDir)
	} else if cs.options.Verbose {
		fmt.Fprintf(os.Stderr, "kept build dir: %s\n", workDir)
	}

	cSourcePath := filepath.Join(workDir, "program.c")
	if err := os.WriteFile(cSourcePath, []byte(cSource), 0o644); err != nil {
		return fmt.Errorf("writing generated C: %w", err)
	}

	runtimeFiles, err := writeEmbeddedRuntime(workDir)
	if err != nil {
		return fmt.Errorf("unpacking embedded runtime: %w", err)
	}

	cs.pipeline.AdvanceTo(StageLinking)
	outputPath := cs.options.OutputPath
	if outputPath == "" {
		outputPath = "a.out"
	}
	absOutput, err := filepath.Abs(outputPath)
	if err != nil {
		return err
	}
	if err := invokeHostCC(cSourcePath, runtimeFiles, absOutput, cs.target, cs.options.Verbose); err != nil {
		return err
	}

	cs.pipeline.AdvanceTo(StageComplete)
	return nil
}
