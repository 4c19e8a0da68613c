package output

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"javaidx/config"
	"javaidx/logger"
	"javaidx/scanner"
	"javaidx/version"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otelLog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

const (
	recordTypeEntry   = "idx_record"
	recordTypeMetrics = "metrics"
)

// otelLogger ships decoded records as OTLP log records. A nil *otelLogger
// is valid and drops everything.
type otelLogger struct {
	provider *sdklog.LoggerProvider
	logger   otelLog.Logger
	timeout  time.Duration
	endpoint string
	policy   otelPolicy
}

// otelPolicy controls which identifying fields leave the host.
type otelPolicy struct {
	includePaths   bool
	includeHeaders bool
}

func newOtelLogger(cfg *config.Config) (*otelLogger, error) {
	if cfg == nil {
		return nil, nil
	}
	endpoint := resolveOtelEndpoint(cfg)
	if endpoint == "" {
		return nil, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("otel endpoint must include scheme (http or https)")
	}

	opts := []otlploghttp.Option{otlploghttp.WithEndpointURL(endpoint)}
	if len(cfg.OtelHeaders) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(cfg.OtelHeaders))
	}
	if cfg.OtelTimeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(cfg.OtelTimeout))
	}
	exp, err := otlploghttp.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.OtelServiceName),
		semconv.ServiceVersionKey.String(version.Version),
	)
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	)
	logger.Infof("Exporting records to %s", endpoint)
	return &otelLogger{
		provider: provider,
		logger:   provider.Logger("javaidx"),
		timeout:  cfg.OtelTimeout,
		endpoint: endpoint,
		policy: otelPolicy{
			includePaths:   cfg.OtelExportPaths,
			includeHeaders: cfg.OtelExportHeaders,
		},
	}, nil
}

func resolveOtelEndpoint(cfg *config.Config) string {
	if endpoint := strings.TrimSpace(cfg.OtelEndpoint); endpoint != "" {
		return endpoint
	}
	if !cfg.OtelFromEnv {
		return ""
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")); endpoint != "" {
		return endpoint
	}
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
}

func (o *otelLogger) Emit(recordType string, payload interface{}) {
	if o == nil || o.logger == nil {
		return
	}
	o.logger.Emit(context.Background(), buildLogRecord(recordType, payload, o.policy))
}

func buildLogRecord(recordType string, payload interface{}, policy otelPolicy) otelLog.Record {
	data := sanitizePayload(recordType, payloadToMap(payload), policy)

	var record otelLog.Record
	now := time.Now()
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetEventName("javaidx.record")
	record.SetSeverity(otelLog.SeverityInfo)
	if e, ok := payload.(*scanner.Entry); ok && e.HasSignalData() {
		record.SetSeverity(otelLog.SeverityWarn)
	}
	record.AddAttributes(
		otelLog.String("record_type", recordType),
		otelLog.String("schema_version", SchemaVersion),
	)
	if attrs := semanticAttributes(recordType, data, policy); len(attrs) > 0 {
		record.AddAttributes(attrs...)
	}
	if body := toLogValue(data); body.Kind() != otelLog.KindEmpty {
		record.SetBody(body)
	}
	return record
}

func (o *otelLogger) Shutdown() {
	if o == nil || o.provider == nil {
		return
	}
	timeout := o.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := o.provider.Shutdown(ctx); err != nil {
		logger.Debugf("OTEL shutdown failed: %v", err)
	}
}

// sanitizePayload drops local paths and captured headers unless the policy
// allows them. data is not modified.
func sanitizePayload(recordType string, data map[string]interface{}, policy otelPolicy) map[string]interface{} {
	if recordType != recordTypeEntry || len(data) == 0 {
		return data
	}
	sanitized := maps.Clone(data)
	if !policy.includePaths {
		delete(sanitized, "path")
		if content, ok := sanitized["content"].(map[string]interface{}); ok {
			content = maps.Clone(content)
			delete(content, "path")
			sanitized["content"] = content
		}
	}
	if !policy.includeHeaders {
		delete(sanitized, "headers")
	}
	return sanitized
}

func semanticAttributes(recordType string, data map[string]interface{}, policy otelPolicy) []otelLog.KeyValue {
	if len(data) == 0 {
		return nil
	}
	switch recordType {
	case recordTypeEntry:
		return entrySemanticAttributes(data, policy)
	case recordTypeMetrics:
		return metricsSemanticAttributes(data)
	default:
		return nil
	}
}

func entrySemanticAttributes(data map[string]interface{}, policy otelPolicy) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue

	path := getStringField(data, "path")
	if policy.includePaths && path != "" {
		kvs = append(kvs, otelLog.String(string(semconv.FilePathKey), path))
		kvs = append(kvs, otelLog.String(string(semconv.FileDirectoryKey), filepath.Dir(path)))
	}
	kvs = appendStringAttr(kvs, string(semconv.FileNameKey), getStringField(data, "file_name"))
	kvs = appendStringAttr(kvs, string(semconv.URLFullKey), getStringField(data, "url"))

	if v, ok := getInt64Field(data, "cache_version"); ok {
		kvs = append(kvs, otelLog.Int64("javaidx.idx.cache_version", v))
	}
	if v, ok := getInt64Field(data, "content_length"); ok {
		kvs = append(kvs, otelLog.Int64("javaidx.idx.content_length", v))
	}
	kvs = appendStringAttr(kvs, "javaidx.idx.last_modified", getStringField(data, "last_modified"))
	kvs = appendStringAttr(kvs, "javaidx.idx.expiration", getStringField(data, "expiration"))
	kvs = appendStringAttr(kvs, "javaidx.idx.codebase_ip", getStringField(data, "codebase_ip"))
	kvs = appendStringAttr(kvs, "javaidx.idx.version", getStringField(data, "version"))

	if evidence, ok := data["evidence"].(map[string]interface{}); ok {
		if size, ok := getInt64Field(evidence, "size"); ok {
			kvs = append(kvs, otelLog.Int64(string(semconv.FileSizeKey), size))
		}
		for algo, value := range getStringMapField(evidence, "hashes") {
			kvs = appendStringAttr(kvs, "javaidx.idx.hash."+algo, value)
		}
	}
	if content, ok := data["content"].(map[string]interface{}); ok {
		kvs = appendStringAttr(kvs, "javaidx.content.mime_type", getStringField(content, "mime_type"))
		for algo, value := range getStringMapField(content, "hashes") {
			kvs = appendStringAttr(kvs, "javaidx.content.hash."+algo, value)
		}
		for algo, value := range getStringMapField(content, "fuzzy_hashes") {
			kvs = appendStringAttr(kvs, "javaidx.content.fuzzy_hash."+algo, value)
		}
	}
	kvs = appendInterfaceAttr(kvs, "javaidx.search_hits", data["search_hits"])
	kvs = appendInterfaceAttr(kvs, "javaidx.watchlist_hits", data["watchlist_hits"])
	if policy.includeHeaders {
		kvs = appendInterfaceAttr(kvs, "javaidx.idx.headers", data["headers"])
	}
	return kvs
}

func metricsSemanticAttributes(data map[string]interface{}) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue
	kvs = appendStringAttr(kvs, "javaidx.metrics.start_time", getStringField(data, "start_time"))
	kvs = appendStringAttr(kvs, "javaidx.metrics.end_time", getStringField(data, "end_time"))
	for _, key := range []string{"files_found", "files_decoded", "files_failed", "files_unsupported", "files_skipped"} {
		if v, ok := getInt64Field(data, key); ok {
			kvs = append(kvs, otelLog.Int64("javaidx.metrics."+key, v))
		}
	}
	return kvs
}

// payloadToMap converts structs through their JSON form so the export sees
// the same field names as the report.
func payloadToMap(payload interface{}) map[string]interface{} {
	switch v := payload.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return v
	default:
		data, err := jsonMarshal(payload)
		if err != nil {
			return nil
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil
		}
		return decoded
	}
}

func toLogValue(value interface{}) otelLog.Value {
	switch v := value.(type) {
	case nil:
		return otelLog.Value{}
	case string:
		return otelLog.StringValue(v)
	case bool:
		return otelLog.BoolValue(v)
	case int:
		return otelLog.IntValue(v)
	case int64:
		return otelLog.Int64Value(v)
	case float64:
		if v == float64(int64(v)) {
			return otelLog.Int64Value(int64(v))
		}
		return otelLog.Float64Value(v)
	case map[string]interface{}:
		kvs := make([]otelLog.KeyValue, 0, len(v))
		for key, item := range v {
			kvs = append(kvs, otelLog.KeyValue{Key: key, Value: toLogValue(item)})
		}
		return otelLog.MapValue(kvs...)
	case map[string]string:
		kvs := make([]otelLog.KeyValue, 0, len(v))
		for key, item := range v {
			kvs = append(kvs, otelLog.String(key, item))
		}
		return otelLog.MapValue(kvs...)
	case []string:
		values := make([]otelLog.Value, 0, len(v))
		for _, item := range v {
			values = append(values, otelLog.StringValue(item))
		}
		return otelLog.SliceValue(values...)
	case []interface{}:
		values := make([]otelLog.Value, 0, len(v))
		for _, item := range v {
			values = append(values, toLogValue(item))
		}
		return otelLog.SliceValue(values...)
	default:
		return otelLog.StringValue(fmt.Sprint(v))
	}
}

func getStringField(values map[string]interface{}, key string) string {
	value, ok := values[key]
	if !ok || value == nil {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return fmt.Sprint(value)
}

func getInt64Field(values map[string]interface{}, key string) (int64, bool) {
	switch v := values[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		if parsed, err := v.Int64(); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func getStringMapField(values map[string]interface{}, key string) map[string]string {
	switch v := values[key].(type) {
	case map[string]string:
		return v
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if val != nil {
				out[k] = fmt.Sprint(val)
			}
		}
		return out
	default:
		return nil
	}
}

func appendStringAttr(kvs []otelLog.KeyValue, key, value string) []otelLog.KeyValue {
	if value == "" {
		return kvs
	}
	return append(kvs, otelLog.String(key, value))
}

func appendInterfaceAttr(kvs []otelLog.KeyValue, key string, value interface{}) []otelLog.KeyValue {
	if value == nil {
		return kvs
	}
	converted := toLogValue(value)
	if converted.Kind() == otelLog.KindEmpty {
		return kvs
	}
	return append(kvs, otelLog.KeyValue{Key: key, Value: converted})
}
