package browser

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseNetscapeCookies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	content := "# Netscape HTTP Cookie File\n" +
		".example.com\tTRUE\t/\tTRUE\t1999999999\tsession\tabc123\n" +
		"invalid line with too few fields\n" +
		"example.org\tFALSE\t/path\tFALSE\t0\tfoo\tbar\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cookies, err := parseNetscapeCookies(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("expected 2 valid cookies, got %d", len(cookies))
	}
	if cookies[0].Domain != ".example.com" {
		t.Errorf("expected leading dot preserved, got %q", cookies[0].Domain)
	}
	if !cookies[0].Secure {
		t.Error("expected first cookie to be secure")
	}
	if cookies[1].Name != "foo" || cookies[1].Value != "bar" {
		t.Errorf("unexpected second cookie: %+v", cookies[1])
	}
}

func TestCookieStoreReloadsOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	os.WriteFile(path, []byte("example.com\tFALSE\t/\tFALSE\t0\ta\t1\n"), 0o644)

	store := NewCookieStore(path)
	first := store.Load()
	if len(first) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(first))
	}

	os.WriteFile(path, []byte("example.com\tFALSE\t/\tFALSE\t0\ta\t1\nexample.com\tFALSE\t/\tFALSE\t0\tb\t2\n"), 0o644)
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	second := store.Load()
	if len(second) != 2 {
		t.Fatalf("expected 2 cookies after the file's mtime changed, got %d", len(second))
	}
}

func TestValidateUpload(t *testing.T) {
	valid := "example.com\tFALSE\t/\tFALSE\t0\ta\t1\n"
	if !ValidateUpload(valid) {
		t.Error("expected valid cookies content to pass validation")
	}
	if ValidateUpload("# just a comment\n") {
		t.Error("expected comment-only content to fail validation")
	}
	if ValidateUpload("too\tfew\tfields\n") {
		t.Error("expected too-few-fields line to fail validation")
	}
}
