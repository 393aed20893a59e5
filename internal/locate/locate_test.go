package locate

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeExec(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func setHome(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}

func TestFindBinaryConfiguredWins(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec bit semantics differ on windows")
	}
	home := t.TempDir()
	setHome(t, home)

	// All three tiers present simultaneously: configured must win.
	dataDir := filepath.Join(home, ".local", "share", "llamad", "llama.cpp", "build", "bin")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeExec(t, dataDir, BinaryName())

	pathDir := t.TempDir()
	writeExec(t, pathDir, BinaryName())
	t.Setenv("PATH", pathDir)

	cfgDir := t.TempDir()
	configured := writeExec(t, cfgDir, "my-llama-server")

	got, err := FindBinary(configured)
	if err != nil {
		t.Fatalf("FindBinary: %v", err)
	}
	if got != configured {
		t.Fatalf("precedence violated: got %q want %q", got, configured)
	}
}

func TestFindBinaryDataDirBeforePath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec bit semantics differ on windows")
	}
	home := t.TempDir()
	setHome(t, home)

	dataDir := filepath.Join(home, ".local", "share", "llamad", "llama.cpp", "build", "bin")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := writeExec(t, dataDir, BinaryName())

	pathDir := t.TempDir()
	writeExec(t, pathDir, BinaryName())
	t.Setenv("PATH", pathDir)

	got, err := FindBinary("")
	if err != nil {
		t.Fatalf("FindBinary: %v", err)
	}
	if got != want {
		t.Fatalf("got %q want data dir binary %q", got, want)
	}
}

func TestFindBinaryFallsBackToPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec bit semantics differ on windows")
	}
	setHome(t, t.TempDir())
	pathDir := t.TempDir()
	want := writeExec(t, pathDir, BinaryName())
	t.Setenv("PATH", pathDir)

	got, err := FindBinary("")
	if err != nil {
		t.Fatalf("FindBinary: %v", err)
	}
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFindBinaryNotFound(t *testing.T) {
	setHome(t, t.TempDir())
	t.Setenv("PATH", t.TempDir())
	_, err := FindBinary("")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsBinaryNotFound(err) {
		t.Fatalf("expected binary-not-found error, got %v", err)
	}
}

func TestFindBinaryConfiguredNotExecutableFallsThrough(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec bit semantics differ on windows")
	}
	setHome(t, t.TempDir())
	d := t.TempDir()
	plain := filepath.Join(d, "llama-server")
	if err := os.WriteFile(plain, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pathDir := t.TempDir()
	want := writeExec(t, pathDir, BinaryName())
	t.Setenv("PATH", pathDir)

	got, err := FindBinary(plain)
	if err != nil {
		t.Fatalf("FindBinary: %v", err)
	}
	if got != want {
		t.Fatalf("non-executable configured path should fall through: got %q", got)
	}
}

func TestFindModels(t *testing.T) {
	d := t.TempDir()
	sub := filepath.Join(d, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		filepath.Join(d, "Zephyr.Q5.gguf"):   "zzzz",
		filepath.Join(d, "alpha.gguf"):       "aa",
		filepath.Join(sub, "Beta.Q4.GGUF"):   "bbb",
		filepath.Join(d, "notes.txt"):        "skip me",
		filepath.Join(sub, "weights.gguf.bak"): "skip me too",
	}
	for p, content := range files {
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	models := FindModels(d)
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %d: %+v", len(models), models)
	}
	// Case-insensitive order by display name.
	if models[0].Name != "alpha" || models[1].Name != "Beta.Q4" || models[2].Name != "Zephyr.Q5" {
		t.Fatalf("unexpected order: %+v", models)
	}
	if models[0].SizeBytes != 2 {
		t.Fatalf("size not derived from stat: %+v", models[0])
	}
	if !filepath.IsAbs(models[0].Path) {
		t.Fatalf("expected absolute path: %q", models[0].Path)
	}
}

func TestFindModelsMissingDir(t *testing.T) {
	if got := FindModels(filepath.Join(t.TempDir(), "nope")); len(got) != 0 {
		t.Fatalf("missing dir must yield empty list, got %+v", got)
	}
	if got := FindModels(""); len(got) != 0 {
		t.Fatalf("empty dir must yield empty list, got %+v", got)
	}
}
