package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// stubFetcher materializes a fixed file tree instead of cloning.
type stubFetcher struct {
	files map[string][]byte
	err   error
}

func (s *stubFetcher) Clone(ctx context.Context, url, dir string) error {
	if s.err != nil {
		return s.err
	}
	for rel, content := range s.files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestLoadFiltersByExtension(t *testing.T) {
	fetcher := &stubFetcher{files: map[string][]byte{
		"main.py":          []byte("print('hi')"),
		"src/app.js":       []byte("console.log(1)"),
		"src/index.ts":     []byte("export {}"),
		"Main.java":        []byte("class Main {}"),
		"README.md":        []byte("# readme"),
		"notes.txt":        []byte("notes"),
		"logo.png":         []byte("not-an-image"),
		"config.json":      []byte("{}"),
		"Makefile":         []byte("all:"),
		".git/description": []byte("ignored"),
	}}
	loader := NewLoader(fetcher, t.TempDir())

	docs, err := loader.Load(context.Background(), "https://example.com/org/repo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 6 {
		t.Fatalf("Expected 6 documents, got %d", len(docs))
	}

	sources := make(map[string]string)
	for _, d := range docs {
		sources[d.Source] = d.Content
	}
	for _, want := range []string{"main.py", "src/app.js", "src/index.ts", "Main.java", "README.md", "notes.txt"} {
		if _, ok := sources[want]; !ok {
			t.Errorf("Expected document for %s, got sources %v", want, sources)
		}
	}
	if sources["main.py"] != "print('hi')" {
		t.Errorf("Unexpected content for main.py: %q", sources["main.py"])
	}
}

func TestLoadSkipsBinaryAndEmptyFiles(t *testing.T) {
	fetcher := &stubFetcher{files: map[string][]byte{
		"good.py":   []byte("x = 1"),
		"binary.py": {0x00, 0x01, 0x02},
		"blank.md":  []byte("   \n\t\n"),
	}}
	loader := NewLoader(fetcher, t.TempDir())

	docs, err := loader.Load(context.Background(), "https://example.com/org/repo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "good.py" {
		t.Errorf("Expected only good.py, got %v", docs)
	}
}

func TestLoadSanitizesInvalidUTF8(t *testing.T) {
	fetcher := &stubFetcher{files: map[string][]byte{
		"latin1.txt": {'c', 'a', 'f', 0xE9, '\n'},
	}}
	loader := NewLoader(fetcher, t.TempDir())

	docs, err := loader.Load(context.Background(), "https://example.com/org/repo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}
	if docs[0].Content != "caf\n" {
		t.Errorf("Expected invalid bytes dropped, got %q", docs[0].Content)
	}
}

func TestLoadCloneFailure(t *testing.T) {
	cloneDir := t.TempDir()
	fetcher := &stubFetcher{err: os.ErrPermission}
	loader := NewLoader(fetcher, cloneDir)

	if _, err := loader.Load(context.Background(), "https://example.com/org/repo"); err == nil {
		t.Fatal("Expected error when clone fails")
	}

	entries, err := os.ReadDir(cloneDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected scratch dir removed after failure, found %d entries", len(entries))
	}
}

func TestLoadCleansUpScratchDir(t *testing.T) {
	cloneDir := t.TempDir()
	fetcher := &stubFetcher{files: map[string][]byte{"a.py": []byte("pass")}}
	loader := NewLoader(fetcher, cloneDir)

	if _, err := loader.Load(context.Background(), "https://example.com/org/repo"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	entries, err := os.ReadDir(cloneDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected scratch dir removed after success, found %d entries", len(entries))
	}
}
