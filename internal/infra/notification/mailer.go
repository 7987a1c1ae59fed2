package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/pkg/logger"
)

const defaultSMTPTimeout = 30 * time.Second

// Mailer delivers report shares over SMTP.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *logger.Logger
}

// NewMailer creates a Mailer. The configuration must name a host, port,
// and sender address.
func NewMailer(cfg config.SMTPConfig, log *logger.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("SMTP port is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	return &Mailer{
		cfg:    cfg,
		logger: log.With("component", "mailer"),
	}, nil
}

// SendReportShare composes and sends the share email. The body carries
// the report's title, severity, summary, and the sharer's message; the
// findings themselves stay behind the login.
func (m *Mailer) SendReportShare(ctx context.Context, share app.ReportShare) error {
	htmlBody, err := m.buildShareEmail(share)
	if err != nil {
		return fmt.Errorf("build share email: %w", err)
	}

	rep := share.Report
	subject := fmt.Sprintf("[%s] Security report shared with you: %s",
		strings.ToUpper(string(rep.Severity)), rep.Title)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", m.cfg.FromName, m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", share.RecipientEmail)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	if err := m.sendSMTP(ctx, share.RecipientEmail, msg.Bytes()); err != nil {
		return fmt.Errorf("send share email: %w", err)
	}

	m.logger.Info("report share delivered",
		"report_id", rep.ID.String(),
		"recipient", share.RecipientEmail,
	)
	return nil
}

// sendSMTP delivers one message to one recipient.
func (m *Mailer) sendSMTP(ctx context.Context, recipient string, message []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	tlsConfig := &tls.Config{
		ServerName:         m.cfg.Host,
		InsecureSkipVerify: m.cfg.SkipVerify, //nolint:gosec // Configurable for dev environments
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if m.cfg.TLS {
		// Direct TLS (port 465)
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fmt.Errorf("TLS handshake: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("new SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	// Opportunistic STARTTLS on plain connections (port 587)
	if !m.cfg.TLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("STARTTLS: %w", err)
			}
		}
	}

	if m.cfg.User != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", recipient, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}

	_ = client.Quit()
	return nil
}

// buildShareEmail renders the HTML body for a share.
func (m *Mailer) buildShareEmail(share app.ReportShare) (string, error) {
	rep := share.Report

	reportURL := ""
	if m.cfg.BaseURL != "" {
		reportURL = strings.TrimSuffix(m.cfg.BaseURL, "/") + "/reports/" + rep.ID.String()
	}

	data := struct {
		Title         string
		Summary       string
		Severity      string
		Color         string
		Message       string
		FindingsCount int
		URL           string
		Timestamp     string
	}{
		Title:         rep.Title,
		Summary:       rep.Summary,
		Severity:      strings.ToUpper(string(rep.Severity)),
		Color:         severityColor(rep.Severity),
		Message:       share.Message,
		FindingsCount: len(rep.Findings),
		URL:           reportURL,
		Timestamp:     time.Now().UTC().Format("2006-01-02 15:04:05 MST"),
	}

	tmpl, err := template.New("share").Parse(shareEmailTemplate)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// shareEmailTemplate is the HTML template for share emails.
const shareEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0; background-color: #f5f5f5; }
        .container { max-width: 600px; margin: 20px auto; background: #fff; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .header { background: {{.Color}}; color: #fff; padding: 20px; }
        .header h1 { margin: 0; font-size: 20px; font-weight: 600; }
        .severity-badge { display: inline-block; background: rgba(255,255,255,0.2); padding: 4px 12px; border-radius: 4px; font-size: 12px; font-weight: 600; margin-bottom: 10px; }
        .content { padding: 20px; }
        .summary { margin-bottom: 20px; white-space: pre-wrap; }
        .message { background: #f8f9fa; border-left: 3px solid {{.Color}}; border-radius: 4px; padding: 12px 15px; margin: 15px 0; font-style: italic; }
        .meta { color: #666; font-size: 13px; margin: 15px 0; }
        .button { display: inline-block; background: {{.Color}}; color: #fff; padding: 12px 24px; border-radius: 6px; text-decoration: none; font-weight: 500; margin: 15px 0; }
        .footer { background: #f8f9fa; padding: 15px 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <div class="severity-badge">{{.Severity}}</div>
            <h1>{{.Title}}</h1>
        </div>
        <div class="content">
            {{if .Message}}<div class="message">{{.Message}}</div>{{end}}
            {{if .Summary}}<div class="summary">{{.Summary}}</div>{{end}}
            <div class="meta">{{.FindingsCount}} finding(s) in this report. Sign in to view the details.</div>
            {{if .URL}}<a href="{{.URL}}" class="button">View Report</a>{{end}}
        </div>
        <div class="footer">
            Sent by WebScan at {{.Timestamp}}
        </div>
    </div>
</body>
</html>`
