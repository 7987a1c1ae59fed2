package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/pkg/domain/report"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

type memStore struct {
	key         string
	body        []byte
	contentType string
	url         string
	err         error
	calls       int
}

func (m *memStore) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	m.key = key
	m.body = body
	m.contentType = contentType
	return m.url, nil
}

func makeReport(t *testing.T, owner shared.ID, title string, findings []report.Finding) *report.Report {
	t.Helper()
	rep, err := report.NewReport(owner, shared.NewID(), title, "summary of "+title, report.SeverityHigh, findings)
	require.NoError(t, err)
	return rep
}

func TestExporterJSON(t *testing.T) {
	owner := shared.NewID()
	store := &memStore{url: "https://bucket.example.com/signed"}
	exporter := NewExporter(store, "exports", logger.NewNop())

	reports := []*report.Report{
		makeReport(t, owner, "TLS weaknesses", []report.Finding{
			{Type: "tls", Severity: "high", Description: "TLS 1.0 enabled"},
			{Type: "header", Severity: "low"},
		}),
		makeReport(t, owner, "Header review", nil),
	}

	result, err := exporter.Export(context.Background(), app.ExportRequest{
		OwnerID: owner,
		Format:  app.ExportFormatJSON,
		Reports: reports,
	})
	require.NoError(t, err)

	assert.Equal(t, app.ExportFormatJSON, result.Format)
	assert.Equal(t, "application/json", result.ContentType)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, int64(len(store.body)), result.Size)
	assert.Equal(t, "https://bucket.example.com/signed", result.URL)

	assert.True(t, strings.HasPrefix(result.ObjectKey, "exports/"+owner.String()+"/"))
	assert.True(t, strings.HasSuffix(result.ObjectKey, ".json"))
	assert.Equal(t, result.ObjectKey, store.key)

	var doc struct {
		Count   int `json:"count"`
		Reports []struct {
			ID       string           `json:"id"`
			Title    string           `json:"title"`
			Severity string           `json:"severity"`
			Findings []report.Finding `json:"findings"`
		} `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(store.body, &doc))
	assert.Equal(t, 2, doc.Count)
	require.Len(t, doc.Reports, 2)
	assert.Equal(t, reports[0].ID.String(), doc.Reports[0].ID)
	assert.Equal(t, "TLS weaknesses", doc.Reports[0].Title)
	assert.Equal(t, "high", doc.Reports[0].Severity)
	assert.Len(t, doc.Reports[0].Findings, 2)
	// Findings default to an empty list, not null.
	assert.NotNil(t, doc.Reports[1].Findings)
	assert.Empty(t, doc.Reports[1].Findings)
}

func TestExporterCSV(t *testing.T) {
	owner := shared.NewID()
	store := &memStore{}
	exporter := NewExporter(store, "exports", logger.NewNop())

	rep := makeReport(t, owner, "Mixed content", []report.Finding{
		{Type: "content", Description: "http resources on https page"},
		{Type: "cookie"},
		{Type: "header"},
	})

	result, err := exporter.Export(context.Background(), app.ExportRequest{
		OwnerID: owner,
		Format:  app.ExportFormatCSV,
		Reports: []*report.Report{rep},
	})
	require.NoError(t, err)

	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.ObjectKey, ".csv"))

	rows, err := csv.NewReader(bytes.NewReader(store.body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "scanId", "title", "severity", "findings", "summary", "createdAt", "updatedAt"}, rows[0])
	assert.Equal(t, rep.ID.String(), rows[1][0])
	assert.Equal(t, "Mixed content", rows[1][2])
	assert.Equal(t, "high", rows[1][3])
	assert.Equal(t, "3", rows[1][4])
}

func TestExporterYAML(t *testing.T) {
	owner := shared.NewID()
	store := &memStore{}
	exporter := NewExporter(store, "exports", logger.NewNop())

	result, err := exporter.Export(context.Background(), app.ExportRequest{
		OwnerID: owner,
		Format:  app.ExportFormatYAML,
		Reports: []*report.Report{makeReport(t, owner, "CSP audit", nil)},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/yaml", result.ContentType)
	assert.True(t, strings.HasSuffix(result.ObjectKey, ".yaml"))

	var doc struct {
		Count   int `yaml:"count"`
		Reports []struct {
			Title string `yaml:"title"`
		} `yaml:"reports"`
	}
	require.NoError(t, yaml.Unmarshal(store.body, &doc))
	assert.Equal(t, 1, doc.Count)
	require.Len(t, doc.Reports, 1)
	assert.Equal(t, "CSP audit", doc.Reports[0].Title)
}

func TestExporterGzip(t *testing.T) {
	owner := shared.NewID()
	store := &memStore{}
	exporter := NewExporter(store, "exports", logger.NewNop())

	result, err := exporter.Export(context.Background(), app.ExportRequest{
		OwnerID:     owner,
		Format:      app.ExportFormatJSON,
		Compression: app.CompressionGzip,
		Reports:     []*report.Report{makeReport(t, owner, "Gzip export", nil)},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/gzip", result.ContentType)
	assert.True(t, strings.HasSuffix(result.ObjectKey, ".json.gz"))

	zr, err := gzip.NewReader(bytes.NewReader(store.body))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.NoError(t, zr.Close())

	var doc struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(plain, &doc))
	assert.Equal(t, 1, doc.Count)
}

func TestExporterZstd(t *testing.T) {
	owner := shared.NewID()
	store := &memStore{}
	exporter := NewExporter(store, "exports", logger.NewNop())

	result, err := exporter.Export(context.Background(), app.ExportRequest{
		OwnerID:     owner,
		Format:      app.ExportFormatCSV,
		Compression: app.CompressionZstd,
		Reports:     []*report.Report{makeReport(t, owner, "Zstd export", nil)},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/zstd", result.ContentType)
	assert.True(t, strings.HasSuffix(result.ObjectKey, ".csv.zst"))

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	plain, err := dec.DecodeAll(store.body, nil)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "Zstd export")
}

func TestExporterUnsupportedFormat(t *testing.T) {
	store := &memStore{}
	exporter := NewExporter(store, "exports", logger.NewNop())

	_, err := exporter.Export(context.Background(), app.ExportRequest{
		OwnerID: shared.NewID(),
		Format:  "xml",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
	assert.Zero(t, store.calls)
}

func TestExporterStoreFailure(t *testing.T) {
	store := &memStore{err: errors.New("bucket unreachable")}
	exporter := NewExporter(store, "exports", logger.NewNop())

	_, err := exporter.Export(context.Background(), app.ExportRequest{
		OwnerID: shared.NewID(),
		Format:  app.ExportFormatJSON,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unreachable")
}

func TestExporterDefaultPrefix(t *testing.T) {
	store := &memStore{}
	exporter := NewExporter(store, "", logger.NewNop())

	result, err := exporter.Export(context.Background(), app.ExportRequest{
		OwnerID: shared.NewID(),
		Format:  app.ExportFormatJSON,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.ObjectKey, "exports/"))
}

func TestFSStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "exports/u1/reports-x.json", []byte(`{"count":0}`), "application/json")
	require.NoError(t, err)
	assert.Empty(t, url)

	body, err := os.ReadFile(filepath.Join(dir, "exports", "u1", "reports-x.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"count":0}`, string(body))
}
