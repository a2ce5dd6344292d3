// Completion: 100% - Utility module complete
package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// containsMainFunction checks if code contains a main function definition
func containsMainFunction(code string) bool {
	return strings.Contains(code, "fn main(")
}

// needsMainWrapper checks if code should be wrapped in a main function
func needsMainWrapper(code string) bool {
	// Don't wrap if already has main
	if containsMainFunction(code) {
		return false
	}
	// Don't wrap if has imports (imports must be at module level)
	if strings.Contains(code, "import ") {
		return false
	}
	// Don't wrap if the snippet declares its own functions - those must
	// stay at module level.
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "fn ") || strings.HasPrefix(trimmed, "shared fn ") ||
			strings.HasPrefix(trimmed, "private fn ") || strings.HasPrefix(trimmed, "native fn ") {
			return false
		}
	}
	return true
}

// compileAndRun compiles and runs a sindarin source snippet end to end
// (lex -> parse -> check -> codegen -> host cc -> execute), returning
// the program's combined stdout/stderr. No test in the repository calls it.
func compileAndRun(t *testing.T, code string) string {
	t.Helper()

	tmpDir := t.TempDir()

	// Auto-wrap test code in a main function if it doesn't have one, so
	// test snippets can use bare top-level statements.
	if needsMainWrapper(code) {
		lines := strings.Split(code, "\n")
		var cleaned []string
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		code = "fn main() {\n" + strings.Join(cleaned, "\n") + "\n}"
	}

	srcFile := filepath.Join(tmpDir, "test.sn")
	if err := os.WriteFile(srcFile, []byte(code), 0644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}

	exePath := filepath.Join(tmpDir, "test")
	if runtime.GOOS == "windows" {
		exePath += ".exe"
	}

	platform := GetDefaultPlatform()
	if err := CompileSindarinWithOptions(srcFile, exePath, platform, 0, false); err != nil {
		t.Fatalf("compilation failed: %v", err)
	}

	cmd := exec.Command(exePath)
	cmd.Env = os.Environ()
	runOutput, err := cmd.CombinedOutput()
	if err != nil {
		// A sindarin program's exit code is its result value, not a
		// build-tool failure signal - only a genuine exec error (not
		// simply a non-zero exit) should fail the test.
		if _, ok := err.(*exec.ExitError); ok {
			return string(runOutput)
		}
		t.Fatalf("execution failed: %v\noutput: %s", err, runOutput)
	}

	return string(runOutput)
}
