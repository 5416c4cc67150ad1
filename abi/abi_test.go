package abi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan-target")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestResultCodeValuesMatchHostABI(t *testing.T) {
	cases := map[ResultCode]int{
		Failed:     0,
		OK:         1,
		VirusFound: 2,
		VirusCured: 3,
		Impossible: 4,
		Error:      5,
	}
	for code, want := range cases {
		if int(code) != want {
			t.Errorf("%v = %d, want %d", code, int(code), want)
		}
	}
}

func TestPluginTestFileEmptyFileIsOK(t *testing.T) {
	p := New(nil)
	path := writeTempFile(t, "")
	code, text := p.TestFile(nil, path)
	if code != OK {
		t.Fatalf("code = %v (%s), want OK", code, text)
	}
}

func TestPluginTestFileMissingFileIsFailed(t *testing.T) {
	p := New(nil)
	code, _ := p.TestFile(nil, filepath.Join(t.TempDir(), "missing"))
	if code != Failed {
		t.Fatalf("code = %v, want Failed", code)
	}
}

func TestPluginInitFailureIsRecordedInErrorBuffer(t *testing.T) {
	p := New(nil)
	code := p.Init(map[string]string{"Address": "", "Port": "1"})
	if code != Error {
		t.Fatalf("code = %v, want Error", code)
	}
	if p.LastError() == "" {
		t.Fatalf("LastError() is empty after a failed Init")
	}
}

func TestPluginTestFileClampsLongVerdictText(t *testing.T) {
	p := New(nil)
	// A missing-file verdict echoes the filename back in its text
	// ("<path> does not exist."); a sufficiently long path drives that
	// text past the host ABI's 512-byte buffer without needing a daemon.
	longPath := filepath.Join(t.TempDir(), strings.Repeat("x", maxString*2))

	code, text := p.TestFile(nil, longPath)
	if code != Failed {
		t.Fatalf("code = %v, want Failed", code)
	}
	if len(text) > maxString-1 {
		t.Fatalf("len(text) = %d, want at most %d", len(text), maxString-1)
	}
}

func TestTruncateCStringClampsToLimit(t *testing.T) {
	got := truncateCString(strings.Repeat("a", 600), maxString)
	if len(got) != maxString-1 {
		t.Fatalf("len(got) = %d, want %d", len(got), maxString-1)
	}
}

func TestTruncateCStringLeavesShortStringsUntouched(t *testing.T) {
	got := truncateCString("short", maxString)
	if got != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}
}

func TestPluginInfoIsStable(t *testing.T) {
	p := New(nil)
	info := p.Info()
	if info.Name == "" || info.APIVersion == 0 {
		t.Fatalf("Info() = %+v, fields should not be zero", info)
	}
}
