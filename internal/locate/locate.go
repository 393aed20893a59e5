// Package locate resolves the llama-server executable and candidate model
// files on the local filesystem. Discovery is deterministic: candidates are
// probed in a fixed priority order and the first match wins.
package locate

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"llamad/internal/common/fsutil"
	"llamad/pkg/types"
)

const modelExt = ".gguf"

// BinaryName returns the platform-specific llama-server executable name.
func BinaryName() string {
	if runtime.GOOS == "windows" {
		return "llama-server.exe"
	}
	return "llama-server"
}

// binaryNotFoundError reports that no llama-server executable was found in
// any of the searched locations.
type binaryNotFoundError struct{ name string }

func (e binaryNotFoundError) Error() string {
	return "binary not found: " + e.name
}

// IsBinaryNotFound reports whether err indicates a missing llama-server binary.
func IsBinaryNotFound(err error) bool {
	_, ok := err.(binaryNotFoundError)
	return ok
}

// FindBinary locates the llama-server executable. Search order:
//  1. the explicitly configured path (may contain '~')
//  2. the application data directories
//  3. PATH
//  4. legacy well-known install locations
//
// The first existing, executable candidate wins; no quality heuristics.
func FindBinary(configured string) (string, error) {
	name := BinaryName()

	if strings.TrimSpace(configured) != "" {
		if p, err := fsutil.ExpandHome(configured); err == nil && fsutil.IsExecutable(p) {
			return p, nil
		}
	}

	for _, dir := range dataDirs() {
		p := filepath.Join(dir, name)
		if fsutil.IsExecutable(p) {
			return p, nil
		}
	}

	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}

	for _, dir := range legacyDirs() {
		p := filepath.Join(dir, name)
		if fsutil.IsExecutable(p) {
			return p, nil
		}
	}

	return "", binaryNotFoundError{name: name}
}

// dataDirs lists application-owned install directories, most specific first.
func dataDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".local", "share", "llamad", "llama.cpp", "build", "bin"),
		filepath.Join(home, "Library", "Application Support", "llamad", "llama.cpp", "build", "bin"),
	}
}

// legacyDirs lists historical install locations still honored for discovery.
func legacyDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, "llama.cpp", "build", "bin"),
			filepath.Join(home, ".local", "bin"),
		)
	}
	dirs = append(dirs, "/usr/local/bin", "/opt/homebrew/bin")
	return dirs
}

// FindModels recursively scans dir for model files and returns descriptors
// sorted case-insensitively by display name. A missing or unreadable
// directory yields an empty list; directory contents are re-read on every
// call because they may change between passes.
func FindModels(dir string) []types.ModelDescriptor {
	base, err := fsutil.ExpandHome(dir)
	if err != nil || strings.TrimSpace(base) == "" {
		return nil
	}
	if !fsutil.PathExists(base) {
		return nil
	}
	var models []types.ModelDescriptor
	_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), modelExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		models = append(models, types.NewModelDescriptor(abs, info.Size()))
		return nil
	})
	sort.Slice(models, func(i, j int) bool {
		return strings.ToLower(models[i].Name) < strings.ToLower(models[j].Name)
	})
	return models
}
