// Completion: 95% - CLI interface complete, all flags working
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// A whole-program compiler that lowers sindarin source to portable C
// and links it with a host C compiler, for Linux, macOS, and FreeBSD.

const versionString = "sindarinc 1.5.2"

// Architecture type
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchARM64
	ArchRiscv64
)

func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86_64"
	case ArchARM64:
		return "aarch64"
	case ArchRiscv64:
		return "riscv64"
	case ArchUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ParseArch parses an architecture string (like GOARCH values)
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "x86_64", "amd64", "x86-64":
		return ArchX86_64, nil
	case "aarch64", "arm64":
		return ArchARM64, nil
	case "riscv64", "riscv", "rv64":
		return ArchRiscv64, nil
	default:
		return 0, fmt.Errorf("unsupported architecture: %s (supported: amd64, arm64, riscv64)", s)
	}
}

// OS type
type OS int

const (
	OSLinux OS = iota
	OSDarwin
	OSFreeBSD
	OSWindows
)

func (o OS) String() string {
	switch o {
	case OSLinux:
		return "linux"
	case OSDarwin:
		return "darwin"
	case OSFreeBSD:
		return "freebsd"
	case OSWindows:
		return "windows"
	default:
		return "unknown"
	}
}

// ParseOS parses an OS string (like GOOS values)
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(s) {
	case "linux":
		return OSLinux, nil
	case "darwin", "macos":
		return OSDarwin, nil
	case "freebsd":
		return OSFreeBSD, nil
	case "windows", "win":
		return OSWindows, nil
	default:
		return 0, fmt.Errorf("unsupported OS: %s (supported: linux, darwin, freebsd)", s)
	}
}

// Platform represents a target platform (architecture + OS)
type Platform struct {
	Arch Arch
	OS   OS
}

// String returns a string representation like "aarch64" (just the arch for compatibility)
func (p Platform) String() string {
	return p.Arch.String()
}

// FullString returns the full platform string like "arm64-darwin"
func (p Platform) FullString() string {
	archStr := p.Arch.String()
	// Convert aarch64 -> arm64 for cleaner output
	if p.Arch == ArchARM64 {
		archStr = "arm64"
	} else if p.Arch == ArchX86_64 {
		archStr = "amd64"
	}
	return archStr + "-" + p.OS.String()
}

// GetDefaultPlatform returns the platform for the current runtime
func GetDefaultPlatform() Platform {
	var arch Arch
	switch runtime.GOARCH {
	case "amd64":
		arch = ArchX86_64
	case "arm64":
		arch = ArchARM64
	case "riscv64":
		arch = ArchRiscv64
	default:
		arch = ArchX86_64 // fallback
	}

	var os OS
	switch runtime.GOOS {
	case "linux":
		os = OSLinux
	case "darwin":
		os = OSDarwin
	case "freebsd":
		os = OSFreeBSD
	default:
		os = OSLinux // fallback
	}

	return Platform{Arch: arch, OS: os}
}

func main() {
	defaultPlatform := GetDefaultPlatform()
	defaultArchStr := "amd64"
	if defaultPlatform.Arch == ArchARM64 {
		defaultArchStr = "arm64"
	} else if defaultPlatform.Arch == ArchRiscv64 {
		defaultArchStr = "riscv64"
	}
	defaultOSStr := defaultPlatform.OS.String()

	// NOTE: Go's flag package stops parsing at the first non-flag argument,
	// so flags must come before the filename: sindarinc build --arch arm64 program.sn
	var archFlag = flag.String("arch", defaultArchStr, "target architecture (amd64, arm64, riscv64)")
	var osFlag = flag.String("os", defaultOSStr, "target OS (linux, darwin, freebsd)")
	var targetFlag = flag.String("target", "", "target platform (e.g., arm64-darwin, amd64-linux, riscv64-linux)")
	var outputFlag = flag.String("o", "", "output executable filename")
	var outputLongFlag = flag.String("output", "", "output executable filename")
	var versionShort = flag.Bool("V", false, "print version information and exit")
	var version = flag.Bool("version", false, "print version information and exit")
	var verbose = flag.Bool("v", false, "verbose mode (show build messages and detailed compilation info)")
	var verboseLong = flag.Bool("verbose", false, "verbose mode (show build messages and detailed compilation info)")
	var quiet = flag.Bool("q", false, "quiet mode (suppress non-error output)")
	var updateDeps = flag.Bool("u", false, "update all dependency repositories from Git")
	var updateDepsLong = flag.Bool("update-deps", false, "update all dependency repositories from Git")
	var optTimeout = flag.Float64("opt-timeout", 2.0, "optimization pass timeout in seconds (0 to disable)")
	var singleFlag = flag.Bool("single", false, "compile single file only (don't resolve sibling .sn imports)")
	var singleShort = flag.Bool("s", false, "shorthand for --single")
	var pgoFlag = flag.String("pgo", "", "CPU profile (pprof format) to guide loop-arena codegen")
	flag.Parse()

	LoadDriverConfig()
	if *pgoFlag != "" {
		PGOProfilePath = *pgoFlag
	}

	UpdateDepsFlag = *updateDeps || *updateDepsLong
	SingleFlag = *singleFlag || *singleShort
	VerboseMode = *verbose || *verboseLong
	QuietMode = *quiet

	if *version || *versionShort {
		fmt.Println(versionString)
		os.Exit(0)
	}

	outputPath := *outputFlag
	if *outputLongFlag != "" {
		outputPath = *outputLongFlag
	}

	var targetArch Arch
	var targetOS OS
	var err error
	if *targetFlag != "" {
		parts := strings.Split(*targetFlag, "-")
		if len(parts) != 2 {
			fmt.Fprintf(os.Stderr, "Error: invalid --target format %q. Expected ARCH-OS (e.g. arm64-darwin)\n", *targetFlag)
			os.Exit(1)
		}
		targetArch, err = ParseArch(parts[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		osStr := parts[1]
		if osStr == "macos" {
			osStr = "darwin"
		}
		targetOS, err = ParseOS(osStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		targetArch, err = ParseArch(*archFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		targetOS, err = ParseOS(*osFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	targetPlatform := Platform{Arch: targetArch, OS: targetOS}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "----=[ %s ]=----\n", versionString)
		fmt.Fprintf(os.Stderr, "Target platform: %s\n", targetPlatform.FullString())
	}

	args := flag.Args()
	if len(args) == 0 {
		matches, _ := filepath.Glob("*.sn")
		if len(matches) > 0 {
			args = []string{"."}
		} else {
			args = []string{"help"}
		}
	}

	if err := RunCLI(args, targetPlatform, VerboseMode, QuietMode, *optTimeout, UpdateDepsFlag, SingleFlag, outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
