package scanner

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"javaidx/config"
	"javaidx/idx"
	"javaidx/idx/idxtest"
	"javaidx/logger"
	"javaidx/metadata"
	"javaidx/utils"
)

func init() {
	logger.Init("error")
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Quiet = true
	cfg.ConcurrencyLevel = 2
	cfg.ConcurrencySet = true
	return cfg
}

func signedEntry(version int32, url string) idxtest.Entry {
	return idxtest.Entry{
		CacheVersion:  version,
		ContentLength: 1234,
		LastModified:  time.UnixMilli(1500000000000),
		URL:           url,
		CodebaseIP:    "203.0.113.7",
		Signing:       idx.Signing{Section2Length: 90},
		Headers: []idx.Header{
			{Name: "<null>", Value: "HTTP/1.1 200 OK"},
			{Name: "content-type", Value: "application/java-archive"},
		},
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeJar(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("META-INF/MANIFEST.MF")
	if err != nil {
		t.Fatalf("zip entry: %v", err)
	}
	w.Write([]byte("Manifest-Version: 1.0\r\nMain-Class: com.example.Loader\r\n\r\n"))
	w, _ = zw.Create("com/example/Loader.class")
	w.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	f.Close()
}

func TestScanFileCollectsEvidence(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "6f3a2b1c-41d2e0f7.idx")
	data := idxtest.Build(signedEntry(idx.Version605, "https://downloads.example.com/app.jar"))
	writeFile(t, idxPath, data)
	writeJar(t, filepath.Join(dir, "6f3a2b1c-41d2e0f7"))
	watchlist := filepath.Join(dir, "hosts.txt")
	writeFile(t, watchlist, []byte("# known hosts\nexample.com\n"))

	cfg := testConfig()
	cfg.HashAlgorithms = []string{"sha256"}
	cfg.SearchTerms = []string{"java-archive", "missing"}
	cfg.WatchlistFile = watchlist

	entry, err := ScanFile(context.Background(), cfg, idxPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if entry.URL != "https://downloads.example.com/app.jar" || entry.CodebaseIP != "203.0.113.7" {
		t.Fatalf("unexpected record: %+v", entry.Record)
	}
	if entry.Evidence == nil || entry.Evidence.Size != int64(len(data)) {
		t.Fatalf("unexpected evidence: %+v", entry.Evidence)
	}
	sum := sha256.Sum256(data)
	if got := entry.Evidence.Hashes["sha256"]; got != hex.EncodeToString(sum[:]) {
		t.Fatalf("sha256 = %q", got)
	}
	if entry.Evidence.ModTime == "" || entry.Evidence.Permissions == "" {
		t.Fatalf("missing stat evidence: %+v", entry.Evidence)
	}

	if entry.Content == nil {
		t.Fatal("expected cached content")
	}
	if entry.Content.MimeType != metadata.MimeJAR {
		t.Fatalf("mime = %q", entry.Content.MimeType)
	}
	manifest, ok := entry.Content.Metadata["manifest"].(map[string]string)
	if !ok || manifest["Main-Class"] != "com.example.Loader" {
		t.Fatalf("unexpected metadata: %v", entry.Content.Metadata)
	}
	if _, ok := entry.Content.Hashes["sha256"]; !ok {
		t.Fatal("content hash missing")
	}

	if entry.SearchHits["java-archive"] != 1 || len(entry.SearchHits) != 1 {
		t.Fatalf("unexpected search hits: %v", entry.SearchHits)
	}
	if len(entry.WatchlistHits) != 1 || entry.WatchlistHits[0] != "downloads.example.com" {
		t.Fatalf("unexpected watchlist hits: %v", entry.WatchlistHits)
	}
	if !entry.HasSignalData() {
		t.Fatal("expected signal data")
	}
}

func TestScanFileWithoutContent(t *testing.T) {
	idxPath := filepath.Join(t.TempDir(), "orphan.idx")
	writeFile(t, idxPath, idxtest.Build(signedEntry(idx.Version604, "http://a.test/x.jnlp")))

	entry, err := ScanFile(context.Background(), testConfig(), idxPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if entry.Content != nil {
		t.Fatalf("unexpected content: %+v", entry.Content)
	}
	if entry.SearchHits != nil || entry.WatchlistHits != nil {
		t.Fatal("search and watchlist should be off by default")
	}
	if entry.HasSignalData() {
		t.Fatal("expected no signal data")
	}
}

func TestScanFileMissing(t *testing.T) {
	_, err := ScanFile(context.Background(), testConfig(), filepath.Join(t.TempDir(), "none.idx"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestScanFileTruncated(t *testing.T) {
	idxPath := filepath.Join(t.TempDir(), "short.idx")
	data := idxtest.Build(signedEntry(idx.Version603, "http://a.test/a.jar"))
	writeFile(t, idxPath, data[:40])

	entry, err := ScanFile(context.Background(), testConfig(), idxPath)
	if !errors.Is(err, idx.ErrTruncated) {
		t.Fatalf("expected truncation, got %v", err)
	}
	if entry == nil || !entry.Error || entry.URL != "" {
		t.Fatalf("expected error record, got %+v", entry)
	}
	if entry.Evidence != nil {
		t.Fatal("modules should not run on failed records")
	}
}

func buildCacheTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "6", "b.idx"), idxtest.Build(signedEntry(idx.Version604, "http://b.test/b.jar")))
	legacy := idxtest.Entry{
		CacheVersion: idx.Version602,
		URL:          "http://a.test/a.jar",
		Headers:      []idx.Header{{Name: "deploy_resource_codebase_ip", Value: "198.51.100.1"}},
	}
	writeFile(t, filepath.Join(root, "1", "a.idx"), idxtest.Build(legacy))
	writeFile(t, filepath.Join(root, "2", "broken.idx"), []byte{0, 0, 0, 0, 2})
	writeFile(t, filepath.Join(root, "3", "future.idx"), idxtest.Build(idxtest.Entry{CacheVersion: 700}))
	writeFile(t, filepath.Join(root, "3", "notes.txt"), []byte("not an index"))
	return root
}

func TestScanDirectory(t *testing.T) {
	root := buildCacheTree(t)
	cfg := testConfig()
	cfg.Directory = root
	cfg.SkipCount = false

	res, err := ScanDirectory(context.Background(), cfg)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := Stats{Found: 4, Decoded: 3, Failed: 1, Unsupported: 1}
	if res.Stats != want {
		t.Fatalf("stats = %+v, want %+v", res.Stats, want)
	}
	if len(res.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(res.Entries))
	}
	names := []string{res.Entries[0].FileName, res.Entries[1].FileName, res.Entries[2].FileName}
	if names[0] != "a.idx" || names[1] != "future.idx" || names[2] != "b.idx" {
		t.Fatalf("entries not ordered by path: %v", names)
	}
	if res.Entries[0].CodebaseIP != "198.51.100.1" {
		t.Fatalf("codebase ip = %q", res.Entries[0].CodebaseIP)
	}
	if len(res.Failures) != 1 || res.Failures[0].Path != filepath.Join(root, "2", "broken.idx") {
		t.Fatalf("unexpected failures: %+v", res.Failures)
	}
	if res.Failures[0].Field != "cache_version" || res.Failures[0].Reason != idx.ErrTruncated.Error() {
		t.Fatalf("unexpected failure detail: %+v", res.Failures[0])
	}
}

func TestScanDirectorySkipUnsupported(t *testing.T) {
	cfg := testConfig()
	cfg.Directory = buildCacheTree(t)
	cfg.SkipUnsupported = true
	cfg.MaxIOPerSecond = 1000

	res, err := ScanDirectory(context.Background(), cfg)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Entries) != 2 || res.Stats.Unsupported != 1 {
		t.Fatalf("expected unsupported record dropped, got %d entries %+v", len(res.Entries), res.Stats)
	}
	for _, e := range res.Entries {
		if !e.Supported() {
			t.Fatalf("unsupported entry kept: %s", e.Path)
		}
	}
}

func TestScanDirectoryExcludePatterns(t *testing.T) {
	cfg := testConfig()
	cfg.Directory = buildCacheTree(t)
	cfg.ExcludePatterns = []string{"broken.idx", "future.idx"}

	res, err := ScanDirectory(context.Background(), cfg)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Stats.Found != 2 || res.Stats.Failed != 0 || len(res.Entries) != 2 {
		t.Fatalf("unexpected result: %+v", res.Stats)
	}
}

func TestScanDirectoryCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Directory = buildCacheTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ScanDirectory(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res == nil {
		t.Fatal("expected partial result")
	}
}

func TestScanDirectoryNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.idx")
	writeFile(t, file, []byte{0})
	cfg := testConfig()
	cfg.Directory = file
	if _, err := ScanDirectory(context.Background(), cfg); err == nil {
		t.Fatal("expected error for file path")
	}
}

func TestCountIndexFiles(t *testing.T) {
	root := buildCacheTree(t)
	count, err := countIndexFiles(context.Background(), root, utils.NewPatternMatcher([]string{"*.idx"}, nil))
	if err != nil || count != 4 {
		t.Fatalf("count: %v %d", err, count)
	}
}

func TestFastWalkerLexicalOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"c.idx", "a.idx", "b/z.idx", "b/a.idx"} {
		writeFile(t, filepath.Join(root, name), []byte{0})
	}
	var got []string
	err := walkIndexFiles(context.Background(), root, utils.NewPatternMatcher(nil, nil), func(path string, info os.FileInfo) error {
		rel, _ := filepath.Rel(root, path)
		got = append(got, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	want := []string{"a.idx", "b/a.idx", "b/z.idx", "c.idx"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAdjustConcurrency(t *testing.T) {
	cfg := &config.Config{NiceLevel: "high"}
	adjustConcurrency(cfg)
	if cfg.ConcurrencyLevel != runtime.NumCPU() {
		t.Fatalf("high expected %d got %d", runtime.NumCPU(), cfg.ConcurrencyLevel)
	}
	cfg = &config.Config{NiceLevel: "medium"}
	adjustConcurrency(cfg)
	if cfg.ConcurrencyLevel != max(runtime.NumCPU()/2, 1) {
		t.Fatalf("medium got %d", cfg.ConcurrencyLevel)
	}
	cfg = &config.Config{NiceLevel: "low"}
	adjustConcurrency(cfg)
	if cfg.ConcurrencyLevel != 1 {
		t.Fatalf("low expected 1")
	}
	cfg = &config.Config{NiceLevel: "low", ConcurrencyLevel: 6, ConcurrencySet: true}
	adjustConcurrency(cfg)
	if cfg.ConcurrencyLevel != 6 {
		t.Fatalf("explicit concurrency overridden: %d", cfg.ConcurrencyLevel)
	}
}

func TestProgressVisible(t *testing.T) {
	t.Setenv("JAVAIDX_DISABLE_PROGRESS", "yes")
	if progressVisible() {
		t.Fatal("expected hidden progress")
	}
	t.Setenv("JAVAIDX_DISABLE_PROGRESS", "")
	if !progressVisible() {
		t.Fatal("expected visible progress")
	}
}

func TestContentMimeType(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	writeFile(t, plain, []byte("hello cache"))

	rec := &idx.Record{URL: "https://a.test/launch.JNLP?x=1"}
	if got := contentMimeType(plain, rec); got != metadata.MimeJNLP {
		t.Fatalf("jnlp by url = %q", got)
	}
	rec = &idx.Record{
		URL:     "https://a.test/resource",
		Headers: []idx.Header{{Name: "Content-Type", Value: "Text/Plain; charset=utf-8"}},
	}
	if got := contentMimeType(plain, rec); got != "text/plain" {
		t.Fatalf("header fallback = %q", got)
	}
	if got := contentMimeType(plain, &idx.Record{}); got != "" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestNewFailure(t *testing.T) {
	err := &idx.DecodeError{Path: "x.idx", Field: "url", Offset: 42, Err: idx.ErrTruncated}
	f := newFailure("x.idx", err)
	if f.Field != "url" || f.Offset != 42 || f.Reason != "truncated input" {
		t.Fatalf("unexpected failure: %+v", f)
	}
	f = newFailure("y.idx", errors.New("boom"))
	if f.Reason != "boom" || f.Field != "" {
		t.Fatalf("unexpected failure: %+v", f)
	}
}
