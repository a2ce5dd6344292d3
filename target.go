// Completion: 80% - Host C toolchain target selection.
//
// A Target describes what platform we are building for
// (Arch()/OS()/String()/FullString()) and picks the host C compiler and
// cross-compile flags to hand it, since this compiler emits portable C
// and delegates machine-code generation entirely to that compiler.
package main

import "runtime"

type Target interface {
	Arch() Arch
	OS() OS
	String() string
	FullString() string
}

type TargetImpl struct {
	arch Arch
	os   OS
}

func NewTarget(arch Arch, os OS) Target {
	return &TargetImpl{arch: arch, os: os}
}

func (t *TargetImpl) Arch() Arch   { return t.arch }
func (t *TargetImpl) OS() OS       { return t.os }
func (t *TargetImpl) String() string {
	return Platform{Arch: t.arch, OS: t.os}.String()
}
func (t *TargetImpl) FullString() string {
	return Platform{Arch: t.arch, OS: t.os}.FullString()
}

func PlatformToTarget(p Platform) Target {
	return NewTarget(p.Arch, p.OS)
}

func GetDefaultTarget() Target {
	return PlatformToTarget(GetDefaultPlatform())
}

// HostCC resolves which C compiler to invoke, honoring
// driverconfig.go's SINDARINC_CC override before falling back to the
// platform's usual default.
func HostCC() string {
	if CCOverride != "" {
		return CCOverride
	}
	if runtime.GOOS == "darwin" {
		return "clang"
	}
	return "cc"
}

// crossTriple maps a Platform to the --target triple clang/gcc expect
// when cross-compiling; a host-native platform needs no triple at all,
// since the host compiler already defaults to it.
func crossTriple(p Platform) string {
	var archPart string
	switch p.Arch {
	case ArchX86_64:
		archPart = "x86_64"
	case ArchARM64:
		archPart = "aarch64"
	case ArchRiscv64:
		archPart = "riscv64"
	default:
		return ""
	}
	var osPart string
	switch p.OS {
	case OSLinux:
		osPart = "linux-gnu"
	case OSDarwin:
		osPart = "apple-darwin"
	case OSFreeBSD:
		osPart = "freebsd"
	default:
		return ""
	}
	return archPart + "-" + osPart
}

// CrossCompileFlags returns the extra flags invokeHostCC should pass
// when the requested platform differs from the host's own, empty when
// building natively.
func CrossCompileFlags(p Platform) []string {
	if p == GetDefaultPlatform() {
		return nil
	}
	triple := crossTriple(p)
	if triple == "" {
		return nil
	}
	return []string{"--target=" + triple}
}
