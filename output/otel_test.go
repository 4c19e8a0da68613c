package output

import (
	"testing"
	"time"

	"javaidx/config"
	"javaidx/idx"
	"javaidx/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelLog "go.opentelemetry.io/otel/log"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

func findAttr(kvs []otelLog.KeyValue, key string) (otelLog.Value, bool) {
	for _, kv := range kvs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return otelLog.Value{}, false
}

func recordAttrs(r otelLog.Record) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue
	r.WalkAttributes(func(kv otelLog.KeyValue) bool {
		kvs = append(kvs, kv)
		return true
	})
	return kvs
}

func exportEntry() *scanner.Entry {
	return &scanner.Entry{
		Record: &idx.Record{
			Path:          "/home/u/.java/cache/6.0/12/4c1e9f0c-2b7a41d9.idx",
			FileName:      "4c1e9f0c-2b7a41d9.idx",
			CacheVersion:  idx.Version605,
			URL:           "https://evil.example/payload.jar",
			ContentLength: 2048,
			LastModified:  time.Date(2016, 3, 1, 10, 0, 0, 0, time.UTC),
			CodebaseIP:    "198.51.100.23",
			Headers:       []idx.Header{{Name: "server", Value: "nginx"}},
		},
		Evidence: &scanner.Evidence{Size: 412, Hashes: map[string]string{"sha256": "abc"}},
		Content: &scanner.Content{
			Path:     "/home/u/.java/cache/6.0/12/4c1e9f0c-2b7a41d9",
			MimeType: "application/java-archive",
		},
		WatchlistHits: []string{"evil.example"},
	}
}

func TestResolveOtelEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "https://logs.example.test/v1/logs")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://fallback.example.test")

	cfg := &config.Config{OtelEndpoint: "  https://explicit.example.test  ", OtelFromEnv: true}
	assert.Equal(t, "https://explicit.example.test", resolveOtelEndpoint(cfg))

	cfg = &config.Config{OtelFromEnv: true}
	assert.Equal(t, "https://logs.example.test/v1/logs", resolveOtelEndpoint(cfg))

	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "")
	assert.Equal(t, "https://fallback.example.test", resolveOtelEndpoint(cfg))

	cfg = &config.Config{OtelFromEnv: false}
	assert.Empty(t, resolveOtelEndpoint(cfg))
}

func TestNewOtelLoggerDisabledAndInvalid(t *testing.T) {
	o, err := newOtelLogger(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, o)
	// a nil logger drops everything
	o.Emit(recordTypeEntry, exportEntry())
	o.Shutdown()

	_, err = newOtelLogger(&config.Config{OtelEndpoint: "collector:4318"})
	require.Error(t, err)
}

func TestSanitizePayload(t *testing.T) {
	data := payloadToMap(exportEntry())
	require.NotNil(t, data)

	sanitized := sanitizePayload(recordTypeEntry, data, otelPolicy{})
	assert.NotContains(t, sanitized, "path")
	assert.NotContains(t, sanitized, "headers")
	assert.NotContains(t, sanitized["content"], "path")
	assert.Equal(t, "https://evil.example/payload.jar", sanitized["url"])
	assert.Contains(t, data, "path", "input must not be modified")
	assert.Contains(t, data["content"], "path", "input must not be modified")

	kept := sanitizePayload(recordTypeEntry, data, otelPolicy{includePaths: true, includeHeaders: true})
	assert.Contains(t, kept, "path")
	assert.Contains(t, kept, "headers")

	metrics := map[string]interface{}{"start_time": "x"}
	assert.Equal(t, metrics, sanitizePayload(recordTypeMetrics, metrics, otelPolicy{}))
}

func TestEntrySemanticAttributes(t *testing.T) {
	data := payloadToMap(exportEntry())

	attrs := semanticAttributes(recordTypeEntry, data, otelPolicy{includePaths: true, includeHeaders: true})
	v, ok := findAttr(attrs, string(semconv.FilePathKey))
	require.True(t, ok)
	assert.Equal(t, "/home/u/.java/cache/6.0/12/4c1e9f0c-2b7a41d9.idx", v.AsString())
	v, ok = findAttr(attrs, string(semconv.URLFullKey))
	require.True(t, ok)
	assert.Equal(t, "https://evil.example/payload.jar", v.AsString())
	v, ok = findAttr(attrs, string(semconv.FileSizeKey))
	require.True(t, ok)
	assert.EqualValues(t, 412, v.AsInt64())
	v, ok = findAttr(attrs, "javaidx.idx.cache_version")
	require.True(t, ok)
	assert.EqualValues(t, 605, v.AsInt64())
	_, ok = findAttr(attrs, "javaidx.idx.hash.sha256")
	assert.True(t, ok)
	_, ok = findAttr(attrs, "javaidx.watchlist_hits")
	assert.True(t, ok)
	_, ok = findAttr(attrs, "javaidx.idx.headers")
	assert.True(t, ok)

	attrs = semanticAttributes(recordTypeEntry, data, otelPolicy{})
	_, ok = findAttr(attrs, string(semconv.FilePathKey))
	assert.False(t, ok)
	_, ok = findAttr(attrs, "javaidx.idx.headers")
	assert.False(t, ok)
	_, ok = findAttr(attrs, string(semconv.FileNameKey))
	assert.True(t, ok)
}

func TestBuildLogRecord(t *testing.T) {
	r := buildLogRecord(recordTypeEntry, exportEntry(), otelPolicy{})
	assert.Equal(t, otelLog.SeverityWarn, r.Severity())
	assert.Equal(t, "javaidx.record", r.EventName())
	assert.Equal(t, otelLog.KindMap, r.Body().Kind())
	v, ok := findAttr(recordAttrs(r), "record_type")
	require.True(t, ok)
	assert.Equal(t, recordTypeEntry, v.AsString())

	quiet := exportEntry()
	quiet.WatchlistHits = nil
	r = buildLogRecord(recordTypeEntry, quiet, otelPolicy{})
	assert.Equal(t, otelLog.SeverityInfo, r.Severity())

	r = buildLogRecord(recordTypeMetrics, &Metrics{StartTime: "s", FilesFound: 3}, otelPolicy{})
	v, ok = findAttr(recordAttrs(r), "javaidx.metrics.files_found")
	require.True(t, ok)
	assert.EqualValues(t, 3, v.AsInt64())
}

func TestToLogValue(t *testing.T) {
	assert.Equal(t, otelLog.KindEmpty, toLogValue(nil).Kind())
	assert.Equal(t, otelLog.KindInt64, toLogValue(float64(3)).Kind())
	assert.Equal(t, otelLog.KindFloat64, toLogValue(1.5).Kind())
	assert.Equal(t, otelLog.KindSlice, toLogValue([]interface{}{"a", 1.0}).Kind())
	assert.Equal(t, otelLog.KindMap, toLogValue(map[string]string{"a": "b"}).Kind())
	assert.Equal(t, otelLog.KindString, toLogValue(struct{}{}).Kind())
}
