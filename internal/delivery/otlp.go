package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinytelemetry/podtrail/internal/logparse"
	"github.com/tinytelemetry/podtrail/internal/model"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const scopeName = "podtrail"

// OTLPConfig configures export to an OpenTelemetry collector.
type OTLPConfig struct {
	Endpoint string
	Insecure bool
	Headers  map[string]string
	Env      string
	Timeout  time.Duration
}

// OTLPSink exports batches as OTLP log records over gRPC.
type OTLPSink struct {
	cfg    OTLPConfig
	conn   *grpc.ClientConn
	client collogspb.LogsServiceClient
}

// NewOTLPSink creates the gRPC client. The connection is established lazily
// on the first export.
func NewOTLPSink(cfg OTLPConfig) (*OTLPSink, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("otlp sink: endpoint is required")
	}
	if cfg.Env == "" {
		cfg.Env = model.DefaultEnvironmentTag
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = model.DefaultQueryTimeout
	}

	creds := credentials.NewTLS(nil)
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("otlp sink: create client: %w", err)
	}

	slog.Info("delivery: otlp exporter created",
		slog.String("endpoint", cfg.Endpoint),
		slog.Bool("insecure", cfg.Insecure),
	)
	return newOTLPSink(cfg, conn, collogspb.NewLogsServiceClient(conn)), nil
}

func newOTLPSink(cfg OTLPConfig, conn *grpc.ClientConn, client collogspb.LogsServiceClient) *OTLPSink {
	return &OTLPSink{cfg: cfg, conn: conn, client: client}
}

func (s *OTLPSink) Name() string { return "otlp" }

// Deliver exports the batch in a single request.
func (s *OTLPSink) Deliver(ctx context.Context, batch model.Batch) error {
	req := ExportRequest(batch, s.cfg.Env)
	if len(req.ResourceLogs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if len(s.cfg.Headers) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, metadata.New(s.cfg.Headers))
	}

	resp, err := s.client.Export(ctx, req)
	if err != nil {
		return fmt.Errorf("otlp export: %w", err)
	}
	if ps := resp.GetPartialSuccess(); ps != nil && ps.GetRejectedLogRecords() > 0 {
		return fmt.Errorf("otlp export: %d records rejected: %s", ps.GetRejectedLogRecords(), ps.GetErrorMessage())
	}
	return nil
}

// Close releases the gRPC connection.
func (s *OTLPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// ExportRequest groups the batch into one ResourceLogs per source, in order
// of first appearance. Entries without a message are skipped.
func ExportRequest(batch model.Batch, env string) *collogspb.ExportLogsServiceRequest {
	req := &collogspb.ExportLogsServiceRequest{}
	bySource := make(map[model.SourceID]*logspb.ScopeLogs)
	observed := uint64(batch.CollectedAt.UnixNano())

	for _, e := range batch.Entries {
		if e.Message == "" {
			continue
		}
		scope, ok := bySource[e.Source]
		if !ok {
			scope = &logspb.ScopeLogs{Scope: &commonpb.InstrumentationScope{Name: scopeName}}
			req.ResourceLogs = append(req.ResourceLogs, &logspb.ResourceLogs{
				Resource:  &resourcepb.Resource{Attributes: resourceAttributes(e.Source, env)},
				ScopeLogs: []*logspb.ScopeLogs{scope},
			})
			bySource[e.Source] = scope
		}

		sev := logparse.SeverityFromMessage(e.Message)
		scope.LogRecords = append(scope.LogRecords, &logspb.LogRecord{
			TimeUnixNano:         uint64(e.Time) * uint64(time.Millisecond),
			ObservedTimeUnixNano: observed,
			SeverityText:         sev,
			SeverityNumber:       logspb.SeverityNumber(logparse.SeverityNumber(sev)),
			Body:                 stringValue(e.Message),
			Attributes: []*commonpb.KeyValue{
				{Key: "log.timestamp", Value: stringValue(e.Timestamp)},
			},
		})
	}
	return req
}

func resourceAttributes(id model.SourceID, env string) []*commonpb.KeyValue {
	return []*commonpb.KeyValue{
		{Key: "k8s.namespace.name", Value: stringValue(id.Namespace)},
		{Key: "k8s.pod.name", Value: stringValue(id.Pod)},
		{Key: "k8s.container.name", Value: stringValue(id.Container)},
		{Key: "deployment.environment", Value: stringValue(env)},
	}
}

func stringValue(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}
