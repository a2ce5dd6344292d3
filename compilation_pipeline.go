// Completion: 75% - Validated stage machine tracking one compilation's
// progress, with a history dump for diagnosing a stage skipped or
// re-entered out of order.
//
// An ordered stage enum, AdvanceTo validating each transition,
// Checkpoint logging gated by VerboseMode, and a stage-history slice
// for the panic message: lex -> parse -> resolve -> typecheck ->
// optimize -> codegen -> write C -> link.
package main

import "fmt"

type CompilationStage int

const (
	StageInit CompilationStage = iota
	StageLexing
	StageParsing
	StageResolving
	StageTypeChecking
	StageOptimizing
	StageCodeGen
	StageWriting
	StageLinking
	StageComplete
)

func (s CompilationStage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageLexing:
		return "lexing"
	case StageParsing:
		return "parsing"
	case StageResolving:
		return "resolving imports"
	case StageTypeChecking:
		return "type checking"
	case StageOptimizing:
		return "optimizing"
	case StageCodeGen:
		return "generating C"
	case StageWriting:
		return "writing build directory"
	case StageLinking:
		return "linking"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// CompilationPipeline tracks which stage a compilation is in and
// enforces that stages only ever advance forward, one at a time.
type CompilationPipeline struct {
	currentStage CompilationStage
	stages       []CompilationStage
}

func NewCompilationPipeline() *CompilationPipeline {
	return &CompilationPipeline{
		currentStage: StageInit,
		stages:       []CompilationStage{StageInit},
	}
}

// AdvanceTo transitions the pipeline to the next stage. Panics if asked
// to skip a stage or move backward, since that would mean some part of
// the driver called the stages out of order - a programming error in
// this compiler, not a user-facing diagnostic.
func (p *CompilationPipeline) AdvanceTo(next CompilationStage) {
	if next != p.currentStage+1 {
		panic(fmt.Sprintf("compilation pipeline: invalid transition %s -> %s\nstage history: %v",
			p.currentStage, next, p.stages))
	}
	p.currentStage = next
	p.stages = append(p.stages, next)
	p.Checkpoint()
}

func (p *CompilationPipeline) CurrentStage() CompilationStage {
	return p.currentStage
}

func (p *CompilationPipeline) ValidateStage(expected CompilationStage) bool {
	return p.currentStage == expected
}

func (p *CompilationPipeline) Checkpoint() {
	if VerboseMode {
		fmt.Printf("[pipeline] %s\n", p.currentStage)
	}
}
