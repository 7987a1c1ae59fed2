package jobs

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/webscanio/api/pkg/domain/scan"
)

const (
	portDialTimeout       = 2 * time.Second
	slowResponseThreshold = 2 * time.Second
	certExpiryWarning     = 30 * 24 * time.Hour
	maxFetchBytes         = 5 << 20
)

// riskyPorts are services that should not face the internet. The check
// reports them when a TCP connect succeeds.
var riskyPorts = []struct {
	port     int
	service  string
	severity string
}{
	{21, "ftp", "medium"},
	{23, "telnet", "high"},
	{3306, "mysql", "high"},
	{5432, "postgresql", "high"},
	{6379, "redis", "critical"},
	{27017, "mongodb", "critical"},
}

// exposedPaths are files and pages that leak configuration or source
// when reachable. The marker must appear in the body to count, so a
// catch-all route answering 200 for everything is not a finding.
var exposedPaths = []struct {
	path        string
	marker      string
	severity    string
	description string
}{
	{"/.env", "=", "critical", "Environment file is publicly accessible"},
	{"/.git/config", "[core]", "high", "Git repository metadata is publicly accessible"},
	{"/server-status", "Server Status", "medium", "Server status page is publicly accessible"},
}

// runCheck dispatches one check type against the target.
func (e *Engine) runCheck(ctx context.Context, ct scan.CheckType, target *url.URL) ([]scan.Vulnerability, error) {
	switch ct {
	case scan.CheckHeaders:
		return e.checkHeaders(ctx, target)
	case scan.CheckSSL:
		return e.checkSSL(ctx, target)
	case scan.CheckPortScan:
		return e.checkPorts(ctx, target)
	case scan.CheckVulnDetection:
		return e.checkExposedPaths(ctx, target)
	case scan.CheckContentAnalysis:
		return e.checkContent(ctx, target)
	case scan.CheckPerformanceCheck:
		return e.checkPerformance(ctx, target)
	default:
		return nil, fmt.Errorf("unknown check type: %s", ct)
	}
}

// fetch issues a GET against the URL and returns the response, the
// body (capped at maxFetchBytes) and the total time to read it.
func (e *Engine) fetch(ctx context.Context, rawURL string) (*http.Response, []byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("User-Agent", e.userAgent)

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, nil, 0, err
	}

	return resp, body, time.Since(start), nil
}

// checkHeaders inspects the response for missing security headers and
// software disclosure.
func (e *Engine) checkHeaders(ctx context.Context, target *url.URL) ([]scan.Vulnerability, error) {
	resp, _, _, err := e.fetch(ctx, target.String())
	if err != nil {
		return nil, err
	}

	var vulns []scan.Vulnerability
	h := resp.Header

	if target.Scheme == "https" && h.Get("Strict-Transport-Security") == "" {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "missing_hsts",
			Severity:    "medium",
			Description: "Strict-Transport-Security header is not set",
		})
	}
	if !strings.EqualFold(h.Get("X-Content-Type-Options"), "nosniff") {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "missing_content_type_options",
			Severity:    "low",
			Description: "X-Content-Type-Options header is not set to nosniff",
		})
	}
	csp := h.Get("Content-Security-Policy")
	if csp == "" {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "missing_csp",
			Severity:    "medium",
			Description: "Content-Security-Policy header is not set",
		})
	}
	if h.Get("X-Frame-Options") == "" && !strings.Contains(csp, "frame-ancestors") {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "clickjacking",
			Severity:    "medium",
			Description: "Page can be framed: no X-Frame-Options or frame-ancestors directive",
		})
	}
	if server := h.Get("Server"); strings.Contains(server, "/") {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "server_version_disclosure",
			Severity:    "low",
			Description: fmt.Sprintf("Server header discloses software version: %s", server),
		})
	}
	if powered := h.Get("X-Powered-By"); powered != "" {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "powered_by_disclosure",
			Severity:    "low",
			Description: fmt.Sprintf("X-Powered-By header discloses platform: %s", powered),
		})
	}

	return vulns, nil
}

// checkSSL verifies the target uses TLS and inspects the negotiated
// connection for obsolete versions and expiring certificates.
func (e *Engine) checkSSL(ctx context.Context, target *url.URL) ([]scan.Vulnerability, error) {
	if target.Scheme != "https" {
		return []scan.Vulnerability{{
			Type:        "unencrypted_transport",
			Severity:    "high",
			Description: "Site is served over unencrypted HTTP",
		}}, nil
	}

	resp, _, _, err := e.fetch(ctx, target.String())
	if err != nil {
		return nil, err
	}
	if resp.TLS == nil {
		return nil, nil
	}

	var vulns []scan.Vulnerability

	if resp.TLS.Version < tls.VersionTLS12 {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "obsolete_tls",
			Severity:    "high",
			Description: "Server negotiated a TLS version older than 1.2",
		})
	}

	if len(resp.TLS.PeerCertificates) > 0 {
		cert := resp.TLS.PeerCertificates[0]
		if until := time.Until(cert.NotAfter); until < certExpiryWarning {
			vulns = append(vulns, scan.Vulnerability{
				Type:        "certificate_expiring",
				Severity:    "medium",
				Description: fmt.Sprintf("TLS certificate expires in %d days", int(until.Hours()/24)),
			})
		}
	}

	return vulns, nil
}

// checkPorts probes a short list of service ports that should not be
// reachable from the internet. A failed dial means the port is closed
// and is not an error.
func (e *Engine) checkPorts(ctx context.Context, target *url.URL) ([]scan.Vulnerability, error) {
	host := target.Hostname()
	dialer := net.Dialer{Timeout: portDialTimeout}

	var (
		mu    sync.Mutex
		vulns []scan.Vulnerability
		wg    sync.WaitGroup
	)

	for _, p := range riskyPorts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := net.JoinHostPort(host, strconv.Itoa(p.port))
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return
			}
			conn.Close()

			mu.Lock()
			vulns = append(vulns, scan.Vulnerability{
				Type:        "open_port",
				Severity:    p.severity,
				Description: fmt.Sprintf("TCP port %d (%s) is open to the internet", p.port, p.service),
			})
			mu.Unlock()
		}()
	}
	wg.Wait()

	return vulns, nil
}

// checkExposedPaths probes well-known paths that leak configuration.
// Request failures are treated as not exposed.
func (e *Engine) checkExposedPaths(ctx context.Context, target *url.URL) ([]scan.Vulnerability, error) {
	var vulns []scan.Vulnerability

	for _, p := range exposedPaths {
		probe := url.URL{Scheme: target.Scheme, Host: target.Host, Path: p.path}
		resp, body, _, err := e.fetch(ctx, probe.String())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			continue
		}
		if !strings.Contains(string(body), p.marker) {
			continue
		}
		vulns = append(vulns, scan.Vulnerability{
			Type:        "exposed_file",
			Severity:    p.severity,
			Description: fmt.Sprintf("%s (%s)", p.description, p.path),
		})
	}

	return vulns, nil
}

// checkContent parses the page and looks for insecure form targets,
// password fields on plain HTTP and mixed content. One finding per
// issue type.
func (e *Engine) checkContent(ctx context.Context, target *url.URL) ([]scan.Vulnerability, error) {
	_, body, _, err := e.fetch(ctx, target.String())
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var (
		insecureForm     bool
		insecurePassword bool
		mixedScript      bool
		mixedStylesheet  bool
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "form":
				if strings.HasPrefix(attrValue(n, "action"), "http://") {
					insecureForm = true
				}
			case "input":
				if target.Scheme == "http" && strings.EqualFold(attrValue(n, "type"), "password") {
					insecurePassword = true
				}
			case "script":
				if target.Scheme == "https" && strings.HasPrefix(attrValue(n, "src"), "http://") {
					mixedScript = true
				}
			case "link":
				if target.Scheme == "https" &&
					strings.EqualFold(attrValue(n, "rel"), "stylesheet") &&
					strings.HasPrefix(attrValue(n, "href"), "http://") {
					mixedStylesheet = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var vulns []scan.Vulnerability
	if insecureForm {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "insecure_form",
			Severity:    "medium",
			Description: "Form submits over unencrypted HTTP",
		})
	}
	if insecurePassword {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "insecure_password_field",
			Severity:    "high",
			Description: "Password field served over unencrypted HTTP",
		})
	}
	if mixedScript {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "mixed_content",
			Severity:    "medium",
			Description: "HTTPS page loads a script over unencrypted HTTP",
		})
	}
	if mixedStylesheet {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "mixed_content",
			Severity:    "low",
			Description: "HTTPS page loads a stylesheet over unencrypted HTTP",
		})
	}

	return vulns, nil
}

// checkPerformance times a full page fetch.
func (e *Engine) checkPerformance(ctx context.Context, target *url.URL) ([]scan.Vulnerability, error) {
	_, body, elapsed, err := e.fetch(ctx, target.String())
	if err != nil {
		return nil, err
	}

	var vulns []scan.Vulnerability

	if elapsed > slowResponseThreshold {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "slow_response",
			Severity:    "low",
			Description: fmt.Sprintf("Page took %.1fs to load", elapsed.Seconds()),
		})
	}
	if len(body) >= maxFetchBytes {
		vulns = append(vulns, scan.Vulnerability{
			Type:        "oversized_page",
			Severity:    "low",
			Description: fmt.Sprintf("Page body exceeds %d MB", maxFetchBytes>>20),
		})
	}

	return vulns, nil
}

// attrValue returns the value of the named attribute, or "".
func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
