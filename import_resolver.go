// Completion: 100% - Import resolution module complete
//
// Resolution priority is library -> git repo -> directory, unchanged
// Two concurrency/validation additions sit on top: concurrent fetch of
// independent imports via golang.org/x/sync/errgroup, and semver
// validation of an import's `@version` specifier via golang.org/x/mod/semver,
// so a bad version specifier fails before any network traffic.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"
)

// ImportSpec represents a parsed import statement
type ImportSpec struct {
	Source  string // The import path/URL
	Version string // Version specifier (@v1.0.0, @main, @latest, etc.)
	Alias   string // Optional alias (from "as alias")
	IsLocal bool   // True if local path (starts with ., /, or is absolute)
}

// ParseImportSource parses an import source string and returns an ImportSpec
// Handles:
// - "sdl3" -> library import
// - "github.com/user/repo" -> git repo
// - "github.com/user/repo@v1.0.0" -> git repo with version
// - "git@github.com:user/repo.git" -> SSH format git repo
// - "." or "./path" or "/path" -> local directory
// - "/path/to/lib.so" -> C library file
func ParseImportSource(source string) (*ImportSpec, error) {
	spec := &ImportSpec{Source: source}

	// The "@" of an SSH "git@host:..." prefix is not a version separator.
	searchFrom := 0
	if strings.HasPrefix(source, "git@") {
		searchFrom = len("git@")
	}
	if idx := strings.Index(source[searchFrom:], "@"); idx != -1 {
		idx += searchFrom
		spec.Source = source[:idx]
		spec.Version = source[idx+1:]
	}

	if spec.Version != "" && spec.Version != "latest" && spec.Version != "main" {
		if !semver.IsValid(normalizeSemver(spec.Version)) {
			return nil, fmt.Errorf("import %s: %q is not a recognized version (semver, \"latest\", or \"main\")", source, spec.Version)
		}
	}

	if strings.HasPrefix(spec.Source, ".") || strings.HasPrefix(spec.Source, "/") || filepath.IsAbs(spec.Source) {
		spec.IsLocal = true
	}

	return spec, nil
}

// normalizeSemver prefixes a bare "1.2.3" with "v" since
// golang.org/x/mod/semver only recognizes the "vMAJOR.MINOR.PATCH" form.
func normalizeSemver(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// ResolveImport resolves an import and returns the path to the resolved files
// Priority: libraries first → git repos → directories
func ResolveImport(spec *ImportSpec, targetOS, targetArch string) ([]string, error) {
	if paths, err := tryResolveLibrary(spec, targetOS); err == nil && len(paths) > 0 {
		return paths, nil
	}

	if !spec.IsLocal && isGitURL(spec.Source) {
		return resolveGitRepo(spec)
	}

	if spec.IsLocal || isLikelyDirectory(spec.Source) {
		return resolveDirectory(spec)
	}

	if paths, err := tryResolveLibrary(spec, targetOS); err == nil && len(paths) > 0 {
		return paths, nil
	}

	return nil, fmt.Errorf("could not resolve import: %s", spec.Source)
}

// ResolveImportsConcurrently resolves a batch of independent import
// specs in parallel, since a git clone or pkg-config shell-out per
// import is I/O bound and the imports don't depend on each other.
func ResolveImportsConcurrently(specs []*ImportSpec, targetOS, targetArch string) ([][]string, error) {
	results := make([][]string, len(specs))
	var g errgroup.Group
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			paths, err := ResolveImport(spec, targetOS, targetArch)
			if err != nil {
				return fmt.Errorf("%s: %w", spec.Source, err)
			}
			results[i] = paths
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func tryResolveLibrary(spec *ImportSpec, targetOS string) ([]string, error) {
	libName := spec.Source

	if strings.HasSuffix(libName, ".so") || strings.Contains(libName, ".so.") ||
		strings.HasSuffix(libName, ".dll") || strings.HasSuffix(libName, ".dylib") {
		if _, err := os.Stat(libName); err == nil {
			return []string{libName}, nil
		}
		return nil, fmt.Errorf("library file not found: %s", libName)
	}

	if targetOS == "windows" {
		return resolveWindowsLibrary(libName)
	}

	if paths := resolvePkgConfig(libName); len(paths) > 0 {
		return paths, nil
	}

	return resolveSystemLibrary(libName)
}

func resolvePkgConfig(libName string) []string {
	cmd := exec.Command("pkg-config", "--cflags-only-I", libName)
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	var paths []string
	for _, flag := range strings.Fields(string(output)) {
		if strings.HasPrefix(flag, "-I") {
			headerPath := strings.TrimPrefix(flag, "-I")
			matches, err := filepath.Glob(filepath.Join(headerPath, "*.h"))
			if err == nil && len(matches) > 0 {
				paths = append(paths, matches...)
			}
		}
	}

	return paths
}

func resolveSystemLibrary(libName string) ([]string, error) {
	standardPaths := []string{
		"./include",
		"/usr/include",
		"/usr/local/include",
		"/opt/local/include",
	}

	for _, basePath := range standardPaths {
		headerPath := filepath.Join(basePath, libName+".h")
		if _, err := os.Stat(headerPath); err == nil {
			return []string{headerPath}, nil
		}

		dirPath := filepath.Join(basePath, libName)
		if info, err := os.Stat(dirPath); err == nil && info.IsDir() {
			matches, err := filepath.Glob(filepath.Join(dirPath, "*.h"))
			if err == nil && len(matches) > 0 {
				return matches, nil
			}
		}
	}

	return nil, fmt.Errorf("library not found: %s", libName)
}

func resolveWindowsLibrary(libName string) ([]string, error) {
	dllName := libName + ".dll"
	if _, err := os.Stat(dllName); err == nil {
		return []string{dllName}, nil
	}

	upperLib := strings.ToUpper(libName)
	potentialDLLs := []string{
		fmt.Sprintf("%s.dll", upperLib),
		fmt.Sprintf("%s.dll", libName),
		fmt.Sprintf("lib%s.dll", libName),
	}
	for _, dll := range potentialDLLs {
		if _, err := os.Stat(dll); err == nil {
			return []string{dll}, nil
		}
	}

	systemPaths := []string{
		os.Getenv("WINDIR") + "\\System32",
		os.Getenv("WINDIR") + "\\SysWOW64",
	}

	for _, sysPath := range systemPaths {
		dllPath := filepath.Join(sysPath, dllName)
		if _, err := os.Stat(dllPath); err == nil {
			return []string{dllPath}, nil
		}
	}

	return nil, fmt.Errorf("windows library not found: %s", libName)
}

func isGitURL(source string) bool {
	return strings.Contains(source, "github.com") ||
		strings.Contains(source, "gitlab.com") ||
		strings.Contains(source, "bitbucket.org") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasSuffix(source, ".git")
}

func isLikelyDirectory(source string) bool {
	return strings.Contains(source, "/") || strings.Contains(source, "\\")
}

// resolveGitRepo clones or updates a git repository and returns paths to .sn files
func resolveGitRepo(spec *ImportSpec) ([]string, error) {
	repoURL := spec.Source

	if strings.HasPrefix(repoURL, "git@") {
		repoURL = strings.TrimPrefix(repoURL, "git@")
		repoURL = strings.Replace(repoURL, ":", "/", 1)
		repoURL = strings.TrimSuffix(repoURL, ".git")
	}

	if !strings.HasPrefix(repoURL, "http://") && !strings.HasPrefix(repoURL, "https://") {
		repoURL = "https://" + repoURL
	}

	var repoPath string
	var err error
	if spec.Version != "" {
		repoPath, err = EnsureRepoClonedWithVersion(repoURL, spec.Version, false)
	} else {
		repoPath, err = EnsureRepoCloned(repoURL, false)
	}
	if err != nil {
		return nil, err
	}

	return findSindarinFiles(repoPath, false)
}

// resolveDirectory resolves a local directory or file import and returns paths to .sn files
func resolveDirectory(spec *ImportSpec) ([]string, error) {
	dirPath := spec.Source

	if dirPath == "." {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dirPath = wd
	}

	if !filepath.IsAbs(dirPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dirPath = filepath.Join(wd, dirPath)
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("path not found: %s", dirPath)
	}

	if !info.IsDir() {
		if strings.HasSuffix(dirPath, ".sn") {
			return []string{dirPath}, nil
		}
		return nil, fmt.Errorf("not a .sn file or directory: %s", dirPath)
	}

	return findSindarinFiles(dirPath, true)
}

// findSindarinFiles finds all .sn files in a directory. If topLevelOnly
// is true, only files in the root of the directory are returned.
func findSindarinFiles(dirPath string, topLevelOnly bool) ([]string, error) {
	var files []string

	if topLevelOnly {
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sn") {
				name := entry.Name()
				if !strings.HasPrefix(name, "test_") && !strings.HasPrefix(name, "_") {
					files = append(files, filepath.Join(dirPath, entry.Name()))
				}
			}
		}
	} else {
		err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && strings.HasSuffix(path, ".sn") {
				baseName := filepath.Base(path)
				if !strings.HasPrefix(baseName, "test_") && !strings.HasPrefix(baseName, "_") {
					files = append(files, path)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no .sn files found in: %s", dirPath)
	}

	return files, nil
}

// resolveSiblingImports loads every top-level import statement in prog,
// parses the sibling .sn files it resolves to, and folds their
// top-level statements into prog so the rest of the pipeline sees one
// merged program. Local relative imports resolve via resolveDirectory;
// git/library imports are left to ResolveImport's normal priority chain.
// This is skipped entirely in single-file mode (cli.go's -s flag).
func resolveSiblingImports(prog *Program, srcPath string) error {
	if len(prog.Imports) == 0 {
		return nil
	}

	specs := make([]*ImportSpec, 0, len(prog.Imports))
	for _, imp := range prog.Imports {
		spec, err := ParseImportSource(imp.URL)
		if err != nil {
			return err
		}
		if imp.Version != "" {
			spec.Version = imp.Version
		}
		spec.Alias = imp.Alias
		specs = append(specs, spec)
	}

	resolved, err := ResolveImportsConcurrently(specs, GetDefaultPlatform().OS.String(), GetDefaultPlatform().Arch.String())
	if err != nil {
		return err
	}

	srcDir := filepath.Dir(srcPath)
	selfAbs, _ := filepath.Abs(srcPath)
	for _, paths := range resolved {
		for _, p := range paths {
			abs, _ := filepath.Abs(p)
			if abs == selfAbs {
				continue
			}
			if filepath.Dir(abs) != srcDir && !strings.HasSuffix(abs, ".sn") {
				continue
			}
			content, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			sub := NewParserWithFilename(string(content), p)
			subProg := sub.ParseProgram()
			if sub.HasErrors() {
				return fmt.Errorf("parse errors in imported module %s: %v", p, sub.Errors)
			}
			prog.Statements = append(prog.Statements, subProg.Statements...)
		}
	}
	return nil
}
