package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/webscanio/api/pkg/domain/scan"
)

func vulnTypes(vulns []scan.Vulnerability) map[string]string {
	out := make(map[string]string, len(vulns))
	for _, v := range vulns {
		out[v.Type] = v.Severity
	}
	return out
}

func mustParse(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("url.Parse(%q) unexpected error: %v", rawURL, err)
	}
	return u
}

func TestEngine_CheckHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    []string
		absent  []string
	}{
		{
			name: "hardened response",
			headers: map[string]string{
				"X-Content-Type-Options":  "nosniff",
				"Content-Security-Policy": "default-src 'self'; frame-ancestors 'none'",
			},
			absent: []string{"missing_content_type_options", "missing_csp", "clickjacking"},
		},
		{
			name:    "bare response",
			headers: map[string]string{},
			want:    []string{"missing_content_type_options", "missing_csp", "clickjacking"},
		},
		{
			name: "frame protection via x-frame-options",
			headers: map[string]string{
				"X-Content-Type-Options": "nosniff",
				"X-Frame-Options":        "DENY",
			},
			want:   []string{"missing_csp"},
			absent: []string{"clickjacking"},
		},
		{
			name: "software disclosure",
			headers: map[string]string{
				"Server":       "nginx/1.25.3",
				"X-Powered-By": "PHP/8.2",
			},
			want: []string{"server_version_disclosure", "powered_by_disclosure"},
		},
		{
			name: "server header without version",
			headers: map[string]string{
				"Server": "nginx",
			},
			absent: []string{"server_version_disclosure"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
			}))
			defer srv.Close()

			e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
			vulns, err := e.checkHeaders(context.Background(), mustParse(t, srv.URL))
			if err != nil {
				t.Fatalf("checkHeaders() unexpected error: %v", err)
			}

			got := vulnTypes(vulns)
			for _, w := range tt.want {
				if _, ok := got[w]; !ok {
					t.Errorf("missing finding %q, got %v", w, got)
				}
			}
			for _, a := range tt.absent {
				if _, ok := got[a]; ok {
					t.Errorf("unexpected finding %q in %v", a, got)
				}
			}
		})
	}
}

func TestEngine_CheckHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
	e.httpClient = srv.Client()

	vulns, err := e.checkHeaders(context.Background(), mustParse(t, srv.URL))
	if err != nil {
		t.Fatalf("checkHeaders() unexpected error: %v", err)
	}
	if _, ok := vulnTypes(vulns)["missing_hsts"]; !ok {
		t.Errorf("https response without HSTS should be flagged, got %v", vulns)
	}

	// The same bare response over plain http must not ask for HSTS.
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer plain.Close()

	e2 := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
	vulns, err = e2.checkHeaders(context.Background(), mustParse(t, plain.URL))
	if err != nil {
		t.Fatalf("checkHeaders() unexpected error: %v", err)
	}
	if _, ok := vulnTypes(vulns)["missing_hsts"]; ok {
		t.Errorf("plain http response should not be asked for HSTS, got %v", vulns)
	}
}

func TestEngine_CheckSSL(t *testing.T) {
	t.Run("plain http is flagged", func(t *testing.T) {
		e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
		vulns, err := e.checkSSL(context.Background(), mustParse(t, "http://example.com"))
		if err != nil {
			t.Fatalf("checkSSL() unexpected error: %v", err)
		}
		if sev, ok := vulnTypes(vulns)["unencrypted_transport"]; !ok || sev != "high" {
			t.Errorf("want high unencrypted_transport, got %v", vulns)
		}
	})

	t.Run("modern tls is clean", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
		e.httpClient = srv.Client()

		vulns, err := e.checkSSL(context.Background(), mustParse(t, srv.URL))
		if err != nil {
			t.Fatalf("checkSSL() unexpected error: %v", err)
		}
		got := vulnTypes(vulns)
		if _, ok := got["unencrypted_transport"]; ok {
			t.Errorf("https target flagged as unencrypted: %v", vulns)
		}
		if _, ok := got["obsolete_tls"]; ok {
			t.Errorf("test server negotiates modern TLS, got %v", vulns)
		}
	})
}

func TestEngine_CheckExposedPaths(t *testing.T) {
	t.Run("leaked env file", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/.env":
				w.Write([]byte("APP_KEY=secret\nDB_PASSWORD=hunter2\n"))
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
		vulns, err := e.checkExposedPaths(context.Background(), mustParse(t, srv.URL))
		if err != nil {
			t.Fatalf("checkExposedPaths() unexpected error: %v", err)
		}
		if len(vulns) != 1 {
			t.Fatalf("vulns = %v, want exactly the env file finding", vulns)
		}
		if vulns[0].Type != "exposed_file" || vulns[0].Severity != "critical" {
			t.Errorf("finding = %+v, want critical exposed_file", vulns[0])
		}
	})

	t.Run("catch-all 200 without markers", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><body>welcome</body></html>"))
		}))
		defer srv.Close()

		e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
		vulns, err := e.checkExposedPaths(context.Background(), mustParse(t, srv.URL))
		if err != nil {
			t.Fatalf("checkExposedPaths() unexpected error: %v", err)
		}
		if len(vulns) != 0 {
			t.Errorf("catch-all page without markers flagged: %v", vulns)
		}
	})

	t.Run("404 everywhere", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
		defer srv.Close()

		e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
		vulns, err := e.checkExposedPaths(context.Background(), mustParse(t, srv.URL))
		if err != nil {
			t.Fatalf("checkExposedPaths() unexpected error: %v", err)
		}
		if len(vulns) != 0 {
			t.Errorf("404 responses flagged: %v", vulns)
		}
	})
}

func TestEngine_CheckContent(t *testing.T) {
	t.Run("insecure form and password field over http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body>
				<form action="http://example.com/login"><input type="password" name="p"></form>
				<form action="http://example.com/search"><input type="text" name="q"></form>
			</body></html>`))
		}))
		defer srv.Close()

		e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
		vulns, err := e.checkContent(context.Background(), mustParse(t, srv.URL))
		if err != nil {
			t.Fatalf("checkContent() unexpected error: %v", err)
		}

		got := vulnTypes(vulns)
		if sev := got["insecure_form"]; sev != "medium" {
			t.Errorf("insecure_form severity = %q, want medium (%v)", sev, vulns)
		}
		if sev := got["insecure_password_field"]; sev != "high" {
			t.Errorf("insecure_password_field severity = %q, want high (%v)", sev, vulns)
		}
		// Two insecure forms still yield a single finding.
		count := 0
		for _, v := range vulns {
			if v.Type == "insecure_form" {
				count++
			}
		}
		if count != 1 {
			t.Errorf("insecure_form findings = %d, want 1", count)
		}
	})

	t.Run("mixed content on https", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><head>
				<script src="http://cdn.example.com/app.js"></script>
				<link rel="stylesheet" href="http://cdn.example.com/site.css">
			</head><body></body></html>`))
		}))
		defer srv.Close()

		e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
		e.httpClient = srv.Client()

		vulns, err := e.checkContent(context.Background(), mustParse(t, srv.URL))
		if err != nil {
			t.Fatalf("checkContent() unexpected error: %v", err)
		}

		count := 0
		for _, v := range vulns {
			if v.Type == "mixed_content" {
				count++
			}
		}
		if count != 2 {
			t.Errorf("mixed_content findings = %d, want script and stylesheet (%v)", count, vulns)
		}
	})

	t.Run("clean https page", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body>
				<form action="/login"><input type="password" name="p"></form>
				<script src="/app.js"></script>
			</body></html>`))
		}))
		defer srv.Close()

		e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
		e.httpClient = srv.Client()

		vulns, err := e.checkContent(context.Background(), mustParse(t, srv.URL))
		if err != nil {
			t.Fatalf("checkContent() unexpected error: %v", err)
		}
		if len(vulns) != 0 {
			t.Errorf("relative references flagged: %v", vulns)
		}
	})
}

func TestEngine_CheckPerformance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>fast</body></html>"))
	}))
	defer srv.Close()

	e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
	vulns, err := e.checkPerformance(context.Background(), mustParse(t, srv.URL))
	if err != nil {
		t.Fatalf("checkPerformance() unexpected error: %v", err)
	}
	if len(vulns) != 0 {
		t.Errorf("small fast page flagged: %v", vulns)
	}
}

func TestEngine_RunCheck_UnknownType(t *testing.T) {
	e := newTestEngine(newFakeScanRepo(), &fakeEventSink{})
	if _, err := e.runCheck(context.Background(), scan.CheckType("dnsEnum"), mustParse(t, "https://example.com")); err == nil {
		t.Error("runCheck() should reject an unknown check type")
	}
}
