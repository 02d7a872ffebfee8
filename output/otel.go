package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"filetally/config"
	"filetally/detect"
	"filetally/logger"
	"filetally/systeminfo"
	"filetally/tally"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otelLog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

const otelEventName = "filetally.record"

// otelExporter mirrors a written summary to an OTLP/HTTP logs endpoint, one
// log record per report row.
type otelExporter struct {
	provider *sdklog.LoggerProvider
	logger   otelLog.Logger
	timeout  time.Duration
	endpoint string
}

func newOtelExporter(cfg *config.Config) (*otelExporter, error) {
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
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	serviceName := cfg.OtelServiceName
	if serviceName == "" {
		serviceName = "filetally"
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	)
	return &otelExporter{
		provider: provider,
		logger:   provider.Logger("filetally"),
		timeout:  cfg.OtelTimeout,
		endpoint: endpoint,
	}, nil
}

func resolveOtelEndpoint(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
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

func (o *otelExporter) Endpoint() string {
	if o == nil {
		return ""
	}
	return o.endpoint
}

func (o *otelExporter) emitSummary(sysInfo *systeminfo.SystemInfo, entries []tally.Entry, hints []tally.LabelCount, m *Metrics) {
	if o == nil {
		return
	}
	if sysInfo != nil {
		o.emit("system_info", systemAttributes(sysInfo), payloadValue(sysInfo))
	}
	for _, e := range entries {
		row := newResultRow(e)
		o.emit("result", resultAttributes(row), payloadValue(row))
	}
	for _, h := range hints {
		o.emit("unknown_hint", []otelLog.KeyValue{
			otelLog.String("filetally.result.kind", detect.KindUnknown.String()),
			otelLog.Int64("filetally.result.count", h.Count),
			otelLog.String("filetally.hint.label", h.Label),
		}, otelLog.StringValue(h.Label))
	}
	if m != nil {
		o.emit("metrics", metricsAttributes(m), payloadValue(m))
	}
}

func (o *otelExporter) emit(recordType string, attrs []otelLog.KeyValue, body otelLog.Value) {
	now := time.Now()
	var record otelLog.Record
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetEventName(otelEventName)
	record.AddAttributes(
		otelLog.String("record_type", recordType),
		otelLog.String("schema_version", SchemaVersion),
	)
	record.AddAttributes(attrs...)
	record.SetBody(body)
	o.logger.Emit(context.Background(), record)
}

// Shutdown flushes pending records.
func (o *otelExporter) Shutdown() {
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

func resultAttributes(row resultRow) []otelLog.KeyValue {
	return []otelLog.KeyValue{
		otelLog.String("filetally.result.kind", row.Kind.String()),
		otelLog.Int64("filetally.result.count", row.Count),
		otelLog.String("filetally.result.description", row.Description),
	}
}

func metricsAttributes(m *Metrics) []otelLog.KeyValue {
	kvs := []otelLog.KeyValue{
		otelLog.Int("filetally.metrics.total_files", m.TotalFiles),
		otelLog.Int("filetally.metrics.files_scanned", m.FilesScanned),
		otelLog.Int("filetally.metrics.files_skipped", m.FilesSkipped),
		otelLog.Int("filetally.metrics.read_errors", m.ReadErrors),
		otelLog.Bool("filetally.metrics.interrupted", m.Interrupted),
	}
	kvs = appendStringAttr(kvs, "filetally.metrics.start_time", m.StartTime)
	return appendStringAttr(kvs, "filetally.metrics.end_time", m.EndTime)
}

func systemAttributes(si *systeminfo.SystemInfo) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue
	kvs = appendStringAttr(kvs, string(semconv.HostNameKey), si.Hostname)
	kvs = appendStringAttr(kvs, string(semconv.OSTypeKey), si.OS)
	kvs = appendStringAttr(kvs, string(semconv.HostArchKey), si.Arch)
	kvs = appendStringAttr(kvs, string(semconv.OSNameKey), si.Platform)
	kvs = appendStringAttr(kvs, string(semconv.OSVersionKey), si.PlatformVersion)
	if si.LogicalCPUs > 0 {
		kvs = append(kvs, otelLog.Int("filetally.system.logical_cpus", si.LogicalCPUs))
	}
	return kvs
}

func appendStringAttr(kvs []otelLog.KeyValue, key, value string) []otelLog.KeyValue {
	if value == "" {
		return kvs
	}
	return append(kvs, otelLog.String(key, value))
}

// payloadValue renders v through its JSON form so the body matches the
// report's field names.
func payloadValue(v any) otelLog.Value {
	data, err := jsonMarshal(v)
	if err != nil {
		return otelLog.Value{}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return otelLog.StringValue(string(data))
	}
	return toLogValue(decoded)
}

func toLogValue(value any) otelLog.Value {
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
		return otelLog.Float64Value(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return otelLog.Int64Value(n)
		}
		if f, err := v.Float64(); err == nil {
			return otelLog.Float64Value(f)
		}
		return otelLog.StringValue(v.String())
	case map[string]any:
		return otelLog.MapValue(toLogKeyValues(v)...)
	case []any:
		values := make([]otelLog.Value, 0, len(v))
		for _, item := range v {
			values = append(values, toLogValue(item))
		}
		return otelLog.SliceValue(values...)
	default:
		return otelLog.StringValue(fmt.Sprint(v))
	}
}

func toLogKeyValues(values map[string]any) []otelLog.KeyValue {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kvs := make([]otelLog.KeyValue, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, otelLog.KeyValue{Key: k, Value: toLogValue(values[k])})
	}
	return kvs
}
