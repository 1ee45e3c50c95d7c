package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTargetsMichelson(t *testing.T) {
	opts := Default()
	if opts.Target != TargetMichelson {
		t.Fatalf("Default().Target = %v, want %v", opts.Target, TargetMichelson)
	}
}

func TestLoadParsesYAMLOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	contents := "caller: tz1abc\ntest_mode: true\ntarget: test\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.Caller != "tz1abc" {
		t.Fatalf("Caller = %q, want tz1abc", opts.Caller)
	}
	if !opts.TestMode {
		t.Fatal("expected test_mode to be true")
	}
	if opts.Target != TargetTest {
		t.Fatalf("Target = %v, want %v", opts.Target, TargetTest)
	}
}

func TestLoadRejectsUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	if err := os.WriteFile(path, []byte("target: evm\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject an unknown target")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected Load to error on a missing file")
	}
}
