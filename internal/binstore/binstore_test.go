package binstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWeekOf(t *testing.T) {
	cases := []struct {
		date string
		want Week
	}{
		{"2020-01-01", Week{2020, 1}},
		{"2021-01-01", Week{2020, 53}},
		{"2024-12-30", Week{2025, 1}},
	}
	for _, c := range cases {
		d, err := time.Parse("2006-01-02", c.date)
		if err != nil {
			t.Fatal(err)
		}
		got := WeekOf(d)
		if got != c.want {
			t.Errorf("WeekOf(%s) = %+v, want %+v", c.date, got, c.want)
		}
	}
}

func TestBinPathPureFunction(t *testing.T) {
	w := Week{Year: 2024, Week: 5}
	a := BinPath(w, PDF)
	b := BinPath(w, PDF)
	if a != b {
		t.Errorf("BinPath not pure: %q != %q", a, b)
	}
	if filepath.Base(a) != "pdfs" {
		t.Errorf("expected pdfs plural directory, got %q", a)
	}
}

func TestDeleteIfDifferentNoopWhenSame(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.pdf")
	os.WriteFile(path, []byte("data"), 0o644)

	if err := DeleteIfDifferent(path, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("file should still exist when old and new paths are identical")
	}
}

func TestDeleteIfDifferentRemovesOld(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.pdf")
	newPath := filepath.Join(dir, "new.pdf")
	os.WriteFile(oldPath, []byte("data"), 0o644)
	os.WriteFile(newPath, []byte("data"), 0o644)

	if err := DeleteIfDifferent(oldPath, newPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("expected old path to be removed")
	}
}

func TestDeleteIfDifferentMissingOldIsNotError(t *testing.T) {
	dir := t.TempDir()
	if err := DeleteIfDifferent(filepath.Join(dir, "missing.pdf"), filepath.Join(dir, "new.pdf")); err != nil {
		t.Errorf("missing old path should not be an error, got %v", err)
	}
}

func TestBaseNameFromURLStripsQueryBeforeNonDescriptiveCheck(t *testing.T) {
	got := baseNameFromURL("https://news.ycombinator.com/item?id=1", "Hello World", false)
	want := "news.ycombinator.com-hello-world"
	if got != want {
		t.Errorf("baseNameFromURL() = %q, want %q", got, want)
	}
}

func TestBaseNameFromURLDescriptivePathIgnoresQuery(t *testing.T) {
	got := baseNameFromURL("https://example.com/articles/my-great-read?utm_source=x&ref=y", "", false)
	want := "example.com-articles-my-great-read"
	if got != want {
		t.Errorf("baseNameFromURL() = %q, want %q", got, want)
	}
}
