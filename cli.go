// Completion: 100% - Utility module complete
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// cli.go - user-friendly command-line interface for sindarinc
//
// This file implements a Go-like CLI interface with subcommands:
// - sindarinc (default: compile current directory or show help)
// - sindarinc build <file> (compile to executable)
// - sindarinc run <file> (compile and run immediately)
// - sindarinc <file.sn> (shorthand for build)
//
// Also supports shebang execution: #!/usr/bin/sindarinc

// CommandContext holds the execution context for a CLI command
type CommandContext struct {
	Args       []string
	Platform   Platform
	Verbose    bool
	Quiet      bool
	OptTimeout float64
	UpdateDeps bool
	SingleFile bool
	OutputPath string
}

// RunCLI is the main entry point for the user-friendly CLI
// It determines which command to run based on arguments
func RunCLI(args []string, platform Platform, verbose, quiet bool, optTimeout float64, updateDeps, singleFile bool, outputPath string) error {
	ctx := &CommandContext{
		Args:       args,
		Platform:   platform,
		Verbose:    verbose,
		Quiet:      quiet,
		OptTimeout: optTimeout,
		UpdateDeps: updateDeps,
		SingleFile: singleFile,
		OutputPath: outputPath,
	}

	// No arguments - show help
	if len(args) == 0 {
		return cmdHelp(ctx)
	}

	// Check for shebang execution: a .sn file whose first two bytes are "#!"
	if strings.HasSuffix(args[0], ".sn") {
		content, err := os.ReadFile(args[0])
		if err == nil && len(content) > 2 && content[0] == '#' && content[1] == '!' {
			return cmdRunShebang(ctx, args[0], args[1:])
		}
	}

	subcmd := args[0]

	switch subcmd {
	case "build":
		if len(args) < 2 {
			return fmt.Errorf("usage: sindarinc build <file.sn> [-o output]")
		}
		return cmdBuild(ctx, args[1:])

	case "run":
		if len(args) < 2 {
			return fmt.Errorf("usage: sindarinc run <file.sn> [args...]")
		}
		return cmdRun(ctx, args[1:])

	case "test":
		return cmdTest(ctx, args[1:])

	case "watch":
		if len(args) < 2 {
			return fmt.Errorf("usage: sindarinc watch <file.sn> [-o output]")
		}
		return cmdWatch(ctx, args[1:])

	case "help", "--help", "-h":
		return cmdHelp(ctx)

	case "version", "--version", "-V":
		fmt.Println(versionString)
		return nil

	default:
		if strings.HasSuffix(subcmd, ".sn") {
			return cmdBuild(ctx, args)
		}

		info, err := os.Stat(subcmd)
		if err == nil && info.IsDir() {
			return cmdBuildDir(ctx, subcmd)
		}

		return fmt.Errorf("unknown command: %s\n\nRun 'sindarinc help' for usage information", subcmd)
	}
}

// cmdBuild compiles a sindarin source file to an executable
func cmdBuild(ctx *CommandContext, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: sindarinc build <file.sn> [-o output]")
	}

	inputFiles := []string{}
	outputPath := ""

	for i := 0; i < len(args); i++ {
		if args[i] == "-o" && i+1 < len(args) {
			outputPath = args[i+1]
			i++
		} else if !strings.HasPrefix(args[i], "-") {
			inputFiles = append(inputFiles, args[i])
		}
	}

	if len(inputFiles) == 0 {
		return fmt.Errorf("no input files specified")
	}

	for _, file := range inputFiles {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", file)
		}
	}

	if outputPath == "" && ctx.OutputPath != "" {
		outputPath = ctx.OutputPath
	}

	if outputPath != "" && strings.HasSuffix(strings.ToLower(outputPath), ".exe") && ctx.Platform.OS != OSWindows {
		ctx.Platform.OS = OSWindows
		if ctx.Verbose {
			fmt.Fprintf(os.Stderr, "Auto-detected Windows target from .exe output filename\n")
		}
	}

	if outputPath == "" {
		outputPath = strings.TrimSuffix(filepath.Base(inputFiles[0]), ".sn")
		if ctx.Platform.OS == OSWindows {
			outputPath += ".exe"
		}
	}

	oldSingleFlag := SingleFlag
	if !ctx.SingleFile {
		SingleFlag = true
		defer func() { SingleFlag = oldSingleFlag }()
	}

	if ctx.Verbose {
		if len(inputFiles) == 1 {
			fmt.Fprintf(os.Stderr, "Building %s -> %s\n", inputFiles[0], outputPath)
		} else {
			fmt.Fprintf(os.Stderr, "Building %d files -> %s\n", len(inputFiles), outputPath)
		}
	}

	var err error
	if len(inputFiles) == 1 {
		err = CompileSindarinWithOptions(inputFiles[0], outputPath, ctx.Platform, ctx.OptTimeout, ctx.Verbose)
	} else {
		var combinedSource strings.Builder
		for i, file := range inputFiles {
			content, readErr := os.ReadFile(file)
			if readErr != nil {
				return fmt.Errorf("failed to read %s: %v", file, readErr)
			}
			if i > 0 {
				combinedSource.WriteString("\n")
			}
			combinedSource.Write(content)
			if ctx.Verbose {
				fmt.Fprintf(os.Stderr, "  + %s (%d bytes)\n", file, len(content))
			}
		}

		tmpFile, tmpErr := os.CreateTemp("", "sindarinc_multi_*.sn")
		if tmpErr != nil {
			return fmt.Errorf("failed to create temp file: %v", tmpErr)
		}
		tmpPath := tmpFile.Name()
		defer os.Remove(tmpPath)

		if _, writeErr := tmpFile.WriteString(combinedSource.String()); writeErr != nil {
			tmpFile.Close()
			return fmt.Errorf("failed to write combined source: %v", writeErr)
		}
		tmpFile.Close()

		err = CompileSindarinWithOptions(tmpPath, outputPath, ctx.Platform, ctx.OptTimeout, ctx.Verbose)
	}

	if err != nil {
		return fmt.Errorf("compilation failed: %v", err)
	}

	if ctx.Verbose {
		fmt.Printf("Built: %s\n", outputPath)
	}

	return nil
}

// cmdRun compiles a sindarin source file to a scratch executable and runs it
func cmdRun(ctx *CommandContext, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: sindarinc run <file.sn> [args...]")
	}

	inputFile := args[0]
	programArgs := args[1:]

	tmpDir := "/dev/shm"
	if _, err := os.Stat(tmpDir); os.IsNotExist(err) {
		tmpDir = os.TempDir()
	}

	baseName := strings.TrimSuffix(filepath.Base(inputFile), ".sn")
	tmpExec := filepath.Join(tmpDir, fmt.Sprintf("sindarinc_run_%s_%d", baseName, os.Getpid()))

	oldSingleFlag := SingleFlag
	if !ctx.SingleFile {
		SingleFlag = true
		defer func() { SingleFlag = oldSingleFlag }()
	}

	if ctx.Verbose {
		fmt.Fprintf(os.Stderr, "Compiling %s -> %s (single-file mode)\n", inputFile, tmpExec)
	}

	err := CompileSindarinWithOptions(inputFile, tmpExec, ctx.Platform, ctx.OptTimeout, ctx.Verbose)
	if err != nil {
		return fmt.Errorf("compilation failed: %v", err)
	}
	defer os.Remove(tmpExec)

	if ctx.Verbose {
		fmt.Fprintf(os.Stderr, "Running %s\n", tmpExec)
	}

	cmd := exec.Command(tmpExec, programArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("execution failed: %v", err)
	}

	return nil
}

// cmdRunShebang handles shebang execution (#!/usr/bin/sindarinc)
func cmdRunShebang(ctx *CommandContext, scriptPath string, scriptArgs []string) error {
	tmpDir := "/dev/shm"
	if _, err := os.Stat(tmpDir); os.IsNotExist(err) {
		tmpDir = os.TempDir()
	}

	baseName := strings.TrimSuffix(filepath.Base(scriptPath), ".sn")
	tmpExec := filepath.Join(tmpDir, fmt.Sprintf("sindarinc_shebang_%s_%d", baseName, os.Getpid()))

	oldSingleFlag := SingleFlag
	SingleFlag = true
	defer func() { SingleFlag = oldSingleFlag }()

	err := CompileSindarinWithOptions(scriptPath, tmpExec, ctx.Platform, ctx.OptTimeout, ctx.Verbose)
	if err != nil {
		return fmt.Errorf("compilation failed: %v", err)
	}
	defer os.Remove(tmpExec)

	cmd := exec.Command(tmpExec, scriptArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("execution failed: %v", err)
	}

	return nil
}

// cmdBuildDir finds the main .sn file in a directory and compiles it
// (does not compile test files or library files)
func cmdBuildDir(ctx *CommandContext, dirPath string) error {
	matches, err := filepath.Glob(filepath.Join(dirPath, "*.sn"))
	if err != nil {
		return fmt.Errorf("failed to find .sn files: %v", err)
	}

	var nonTestFiles []string
	for _, file := range matches {
		baseName := filepath.Base(file)
		if !strings.HasPrefix(baseName, "test_") {
			nonTestFiles = append(nonTestFiles, file)
		}
	}

	if len(nonTestFiles) == 0 {
		return fmt.Errorf("no non-test .sn files found in %s", dirPath)
	}

	var mainFile string
	for _, file := range nonTestFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		if strings.Contains(string(content), "fn main(") {
			mainFile = file
			break
		}
	}

	if mainFile == "" {
		return fmt.Errorf("no main function found in .sn files in %s", dirPath)
	}

	outputPath := strings.TrimSuffix(filepath.Base(mainFile), ".sn")
	if ctx.Platform.OS == OSWindows {
		outputPath += ".exe"
	}

	if ctx.Verbose {
		fmt.Fprintf(os.Stderr, "Building %s -> %s\n", mainFile, outputPath)
	}

	// Don't use single-file mode - allow imports from same directory
	oldSingleFlag := SingleFlag
	SingleFlag = false
	defer func() { SingleFlag = oldSingleFlag }()

	err = CompileSindarinWithOptions(mainFile, outputPath, ctx.Platform, ctx.OptTimeout, ctx.Verbose)
	if err != nil {
		return fmt.Errorf("compilation of %s failed: %v", mainFile, err)
	}

	if ctx.Verbose {
		fmt.Printf("Built: %s\n", outputPath)
	}

	return nil
}

// cmdTest runs all test_*.sn and *_test.sn files in the given directory
// (the current directory when none is given)
func cmdTest(ctx *CommandContext, args []string) error {
	searchDir := "."
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			searchDir = arg
			break
		}
	}

	matchesPrefix, err := filepath.Glob(filepath.Join(searchDir, "test_*.sn"))
	if err != nil {
		return fmt.Errorf("failed to find test files: %v", err)
	}

	matchesSuffix, err := filepath.Glob(filepath.Join(searchDir, "*_test.sn"))
	if err != nil {
		return fmt.Errorf("failed to find test files: %v", err)
	}

	matchMap := make(map[string]bool)
	for _, m := range matchesPrefix {
		matchMap[m] = true
	}
	for _, m := range matchesSuffix {
		matchMap[m] = true
	}

	matches := make([]string, 0, len(matchMap))
	for m := range matchMap {
		matches = append(matches, m)
	}

	if len(matches) == 0 {
		if !ctx.Quiet {
			fmt.Printf("No test files found in %s\n", searchDir)
		}
		return nil
	}

	if ctx.Verbose {
		fmt.Fprintf(os.Stderr, "Found %d test file(s)\n", len(matches))
	}

	passed := 0
	failed := 0
	failedTests := []string{}

	for _, testFile := range matches {
		testName := filepath.Base(testFile)

		content, err := os.ReadFile(testFile)
		if err != nil {
			return fmt.Errorf("failed to read test file %s: %v", testFile, err)
		}

		if strings.Contains(string(content), "fn main(") {
			return fmt.Errorf("test file %s should not contain a main function", testName)
		}

		if !ctx.Quiet {
			fmt.Printf("Running %s... ", testName)
		}

		tmpDir := "/dev/shm"
		if _, err := os.Stat(tmpDir); os.IsNotExist(err) {
			tmpDir = os.TempDir()
		}

		baseName := strings.TrimSuffix(testName, ".sn")
		tmpExec := filepath.Join(tmpDir, fmt.Sprintf("sindarinc_test_%s_%d", baseName, os.Getpid()))

		testDir := filepath.Dir(testFile)
		testRunnerPath := filepath.Join(testDir, fmt.Sprintf("_test_runner_%d.sn", os.Getpid()))

		testFunctions, parseErr := findTestFunctions(testFile)
		if parseErr != nil {
			if !ctx.Quiet {
				fmt.Printf("FAIL (parse error)\n")
			}
			if ctx.Verbose {
				fmt.Fprintf(os.Stderr, "  Error: %v\n", parseErr)
			}
			failed++
			failedTests = append(failedTests, testName)
			continue
		}

		runnerErr := generateTestRunner(testRunnerPath, testFile, testFunctions)
		if runnerErr != nil {
			if !ctx.Quiet {
				fmt.Printf("FAIL (runner generation error)\n")
			}
			if ctx.Verbose {
				fmt.Fprintf(os.Stderr, "  Error: %v\n", runnerErr)
			}
			failed++
			failedTests = append(failedTests, testName)
			continue
		}
		defer os.Remove(testRunnerPath)

		oldSingleFlag := SingleFlag
		SingleFlag = false // allow importing from same directory

		err = CompileSindarinWithOptions(testRunnerPath, tmpExec, ctx.Platform, ctx.OptTimeout, false)
		SingleFlag = oldSingleFlag

		if err != nil {
			if !ctx.Quiet {
				fmt.Printf("FAIL (compilation error)\n")
			}
			if ctx.Verbose {
				fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
			}
			failed++
			failedTests = append(failedTests, testName)
			continue
		}

		cmd := exec.Command(tmpExec)
		cmd.Stdin = os.Stdin
		if ctx.Verbose {
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
		}

		err = cmd.Run()
		os.Remove(tmpExec)

		if err != nil {
			if !ctx.Quiet {
				fmt.Printf("FAIL\n")
			}
			if ctx.Verbose {
				fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
			}
			failed++
			failedTests = append(failedTests, testName)
		} else {
			if !ctx.Quiet {
				fmt.Printf("PASS\n")
			}
			passed++
		}
	}

	if !ctx.Quiet {
		fmt.Printf("\n")
		if failed == 0 {
			fmt.Printf("All tests passed (%d/%d)\n", passed, passed+failed)
		} else {
			fmt.Printf("%d test(s) failed, %d passed (%d total)\n", failed, passed, passed+failed)
			fmt.Printf("\nFailed tests:\n")
			for _, name := range failedTests {
				fmt.Printf("  - %s\n", name)
			}
		}
	}

	if failed > 0 {
		os.Exit(1)
	}

	return nil
}

// cmdHelp displays usage information
func cmdHelp(ctx *CommandContext) error {
	fmt.Printf(`sindarinc - the sindarin compiler (version 1.5.2)

USAGE:
    sindarinc <command> [arguments]

COMMANDS:
    build <file.sn>       Compile a sindarin source file to an executable
    run <file.sn>         Compile and run a sindarin program immediately
    test [directory]      Run all test_*.sn and *_test.sn files (default: current directory)
    watch <file.sn>       Rebuild automatically whenever a source file changes
    help                  Show this help message
    version               Show version information

SHORTHAND:
    sindarinc <file.sn>    Same as 'sindarinc build <file.sn>'
    sindarinc              Show this help message (or build if .sn files found)

FLAGS (can be used with any command):
    -o, --output <file>    Output executable filename (default: input name without .sn)
    -v, --verbose          Verbose mode (show detailed compilation info)
    -q, --quiet            Quiet mode (suppress progress messages)
    --arch <arch>          Target architecture: amd64, arm64, riscv64 (default: host architecture)
    --os <os>              Target OS: linux, darwin, freebsd (default: host OS)
    --target <platform>    Target platform: amd64-linux, arm64-darwin, etc.
    --opt-timeout <secs>   Optimization pass timeout in seconds (default: 2.0)
    -u, --update-deps      Update dependency repositories from Git
    -s, --single           Compile single file only (don't load siblings)

EXAMPLES:
    # Compile a program
    sindarinc build hello.sn
    sindarinc build hello.sn -o hello

    # Compile and run immediately
    sindarinc run hello.sn
    sindarinc run server.sn --port 8080

    # Shorthand compilation
    sindarinc hello.sn

    # Run tests
    sindarinc test
    sindarinc test ./tests

    # Shebang execution (add #!/usr/bin/sindarinc to first line of .sn file)
    chmod +x script.sn
    ./script.sn arg1 arg2

`)
	return nil
}

// findTestFunctions parses a test file and finds all top-level function
// declarations whose name starts with "test" or "Test".
func findTestFunctions(testFile string) ([]string, error) {
	content, err := os.ReadFile(testFile)
	if err != nil {
		return nil, err
	}

	parser := NewParserWithFilename(string(content), testFile)
	program := parser.ParseProgram()

	if parser.HasErrors() {
		return nil, fmt.Errorf("parse errors in %s", testFile)
	}

	var testFuncs []string
	for _, stmt := range program.Statements {
		if fn, ok := stmt.(*FunctionStmt); ok {
			name := fn.Name.Lexeme
			if strings.HasPrefix(name, "test") || strings.HasPrefix(name, "Test") {
				testFuncs = append(testFuncs, name)
			}
		}
	}

	return testFuncs, nil
}

// generateTestRunner creates a test runner file that calls all test functions
// The runner includes the test file content inline, without its import lines;
// sibling modules in the same directory are loaded by cmdTest's non-single-file compile
func generateTestRunner(runnerPath, testFile string, testFunctions []string) error {
	testContent, err := os.ReadFile(testFile)
	if err != nil {
		return err
	}

	var builder strings.Builder

	// Inline the test file content, dropping its own import statements
	// since the runner lives alongside it in the same directory.
	testLines := strings.Split(string(testContent), "\n")
	for _, line := range testLines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "import ") && trimmed != "" {
			builder.WriteString(line)
			builder.WriteString("\n")
		}
	}

	builder.WriteString("\nfn main() {\n")
	for _, testFunc := range testFunctions {
		builder.WriteString(fmt.Sprintf("    %s()\n", testFunc))
	}
	builder.WriteString("    exit(0)\n")
	builder.WriteString("}\n")

	return os.WriteFile(runnerPath, []byte(builder.String()), 0644)
}
