// Package export builds report export artifacts and stores them.
package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/internal/metrics"
	"github.com/webscanio/api/pkg/domain/report"
	"github.com/webscanio/api/pkg/logger"
)

// ObjectStore persists a finished artifact. The returned URL is optional;
// an empty string means the artifact is reachable only by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Exporter renders reports into a downloadable artifact and hands it to
// an ObjectStore. Format and compression are validated upstream; the
// exporter treats an unknown value as a programming error.
type Exporter struct {
	store  ObjectStore
	prefix string
	logger *logger.Logger
}

// NewExporter creates an Exporter. An empty prefix defaults to "exports".
func NewExporter(store ObjectStore, prefix string, log *logger.Logger) *Exporter {
	if prefix == "" {
		prefix = "exports"
	}
	return &Exporter{
		store:  store,
		prefix: prefix,
		logger: log.With("component", "exporter"),
	}
}

// Export implements app.ReportExporter.
func (e *Exporter) Export(ctx context.Context, req app.ExportRequest) (*app.ExportResult, error) {
	payload, contentType, ext, err := encode(req.Format, req.Reports)
	if err != nil {
		return nil, err
	}

	payload, contentType, ext, err = pack(req.Compression, payload, contentType, ext)
	if err != nil {
		return nil, err
	}

	key := e.objectKey(req.OwnerID.String(), ext)
	url, err := e.store.Put(ctx, key, payload, contentType)
	if err != nil {
		return nil, fmt.Errorf("store export artifact: %w", err)
	}

	metrics.ExportsTotal.WithLabelValues(req.Format).Inc()
	metrics.ExportArtifactBytes.Observe(float64(len(payload)))
	e.logger.Info("export artifact stored",
		"object_key", key,
		"format", req.Format,
		"reports", len(req.Reports),
		"size", len(payload),
	)

	return &app.ExportResult{
		Format:      req.Format,
		ObjectKey:   key,
		URL:         url,
		Size:        int64(len(payload)),
		Count:       len(req.Reports),
		ContentType: contentType,
	}, nil
}

// objectKey builds a collision-free key: one owner's exports never shadow
// another's, and the timestamp keeps repeated exports distinct.
func (e *Exporter) objectKey(owner, ext string) string {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("%s/%s/reports-%s.%s", e.prefix, owner, stamp, ext)
}

// exportDocument is the envelope for structured formats.
type exportDocument struct {
	ExportedAt string         `json:"exportedAt" yaml:"exportedAt"`
	Count      int            `json:"count" yaml:"count"`
	Reports    []exportReport `json:"reports" yaml:"reports"`
}

// exportReport is the wire shape of one report inside an artifact. The
// owner is implied by the request, so it is not repeated per record.
type exportReport struct {
	ID        string           `json:"id" yaml:"id"`
	ScanID    string           `json:"scanId" yaml:"scanId"`
	Title     string           `json:"title" yaml:"title"`
	Summary   string           `json:"summary,omitempty" yaml:"summary,omitempty"`
	Severity  string           `json:"severity" yaml:"severity"`
	Findings  []report.Finding `json:"findings" yaml:"findings"`
	CreatedAt string           `json:"createdAt" yaml:"createdAt"`
	UpdatedAt string           `json:"updatedAt" yaml:"updatedAt"`
}

func toExportReport(rep *report.Report) exportReport {
	findings := rep.Findings
	if findings == nil {
		findings = []report.Finding{}
	}
	return exportReport{
		ID:        rep.ID.String(),
		ScanID:    rep.ScanID.String(),
		Title:     rep.Title,
		Summary:   rep.Summary,
		Severity:  string(rep.Severity),
		Findings:  findings,
		CreatedAt: rep.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: rep.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// encode renders reports in the requested format and returns the payload
// with its content type and file extension.
func encode(format string, reports []*report.Report) ([]byte, string, string, error) {
	records := make([]exportReport, 0, len(reports))
	for _, rep := range reports {
		records = append(records, toExportReport(rep))
	}

	switch format {
	case app.ExportFormatJSON:
		doc := exportDocument{
			ExportedAt: time.Now().UTC().Format(time.RFC3339),
			Count:      len(records),
			Reports:    records,
		}
		payload, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, "", "", fmt.Errorf("encode json export: %w", err)
		}
		return payload, "application/json", "json", nil

	case app.ExportFormatYAML:
		doc := exportDocument{
			ExportedAt: time.Now().UTC().Format(time.RFC3339),
			Count:      len(records),
			Reports:    records,
		}
		payload, err := yaml.Marshal(doc)
		if err != nil {
			return nil, "", "", fmt.Errorf("encode yaml export: %w", err)
		}
		return payload, "application/yaml", "yaml", nil

	case app.ExportFormatCSV:
		payload, err := encodeCSV(records)
		if err != nil {
			return nil, "", "", fmt.Errorf("encode csv export: %w", err)
		}
		return payload, "text/csv", "csv", nil

	default:
		return nil, "", "", fmt.Errorf("unsupported export format %q", format)
	}
}

// encodeCSV flattens reports to one row each; findings collapse to a count.
func encodeCSV(records []exportReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "scanId", "title", "severity", "findings", "summary", "createdAt", "updatedAt"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.ScanID,
			rec.Title,
			rec.Severity,
			strconv.Itoa(len(rec.Findings)),
			rec.Summary,
			rec.CreatedAt,
			rec.UpdatedAt,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pack applies the requested compression on top of an encoded payload.
func pack(compression string, payload []byte, contentType, ext string) ([]byte, string, string, error) {
	switch compression {
	case app.CompressionNone:
		return payload, contentType, ext, nil

	case app.CompressionGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, "", "", fmt.Errorf("gzip export: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, "", "", fmt.Errorf("gzip export: %w", err)
		}
		return buf.Bytes(), "application/gzip", ext + ".gz", nil

	case app.CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, "", "", fmt.Errorf("zstd export: %w", err)
		}
		packed := enc.EncodeAll(payload, nil)
		if err := enc.Close(); err != nil {
			return nil, "", "", fmt.Errorf("zstd export: %w", err)
		}
		return packed, "application/zstd", ext + ".zst", nil

	default:
		return nil, "", "", fmt.Errorf("unsupported compression %q", compression)
	}
}
