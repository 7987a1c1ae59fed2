package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// Demo accounts share one password so the fixtures are usable straight
// after seeding.
const demoPassword = "Password123"

type demoUser struct {
	id    string
	email string
	name  string
}

var demoUsers = []demoUser{
	{"11111111-1111-1111-1111-111111111111", "alice@example.com", "Alice Demo"},
	{"22222222-2222-2222-2222-222222222222", "bob@example.com", "Bob Demo"},
}

type demoScan struct {
	id      string
	owner   string
	url     string
	domain  string
	types   []string
	status  string
	vulns   []map[string]string
	started bool
	done    bool
}

var demoScans = []demoScan{
	{
		id: "aaaaaaaa-0000-0000-0000-000000000001", owner: demoUsers[0].id,
		url: "https://example.com", domain: "example.com",
		types: []string{"headers", "ssl"}, status: "completed",
		vulns: []map[string]string{
			{"type": "missing_security_header", "severity": "medium", "description": "Content-Security-Policy header is not set"},
			{"type": "missing_security_header", "severity": "low", "description": "X-Content-Type-Options header is not set"},
		},
		started: true, done: true,
	},
	{
		id: "aaaaaaaa-0000-0000-0000-000000000002", owner: demoUsers[0].id,
		url: "https://staging.example.com", domain: "example.com",
		types: []string{"headers", "ssl", "vulnDetection"}, status: "pending",
	},
	{
		id: "aaaaaaaa-0000-0000-0000-000000000003", owner: demoUsers[1].id,
		url: "https://shop.example.org", domain: "example.org",
		types: []string{"headers", "contentAnalysis"}, status: "cancelled",
		started: true, done: true,
	},
}

type demoReport struct {
	id       string
	owner    string
	scan     string
	title    string
	summary  string
	severity string
	findings []map[string]string
}

var demoReports = []demoReport{
	{
		id: "bbbbbbbb-0000-0000-0000-000000000001", owner: demoUsers[0].id,
		scan: demoScans[0].id, title: "Quarterly header review",
		summary:  "Two header gaps on the public site.",
		severity: "medium",
		findings: []map[string]string{
			{"type": "missing_security_header", "severity": "medium", "description": "CSP absent", "remediation": "Add a restrictive Content-Security-Policy"},
		},
	},
	{
		id: "bbbbbbbb-0000-0000-0000-000000000002", owner: demoUsers[0].id,
		scan: demoScans[0].id, title: "Executive summary",
		summary:  "High-level view for the security review meeting.",
		severity: "low",
	},
}

func main() {
	dbURL := flag.String("db", "", "Database URL (or set DATABASE_URL env)")
	clean := flag.Bool("clean", false, "Remove previously seeded records first")
	flag.Parse()

	databaseURL := *dbURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		fmt.Println("Error: Database URL required. Use -db flag or set DATABASE_URL env")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fmt.Printf("Error pinging database: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Connected to database")

	if *clean {
		if err := cleanDatabase(ctx, db); err != nil {
			fmt.Printf("Error cleaning database: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Cleaned existing seed data")
	}

	if err := seed(ctx, db); err != nil {
		fmt.Printf("Error seeding: %v\n", err)
		os.Exit(1)
	}

	printSummary(ctx, db)
	fmt.Println("\nSeed completed successfully!")
	fmt.Printf("Demo accounts use the password %q.\n", demoPassword)
}

func cleanDatabase(ctx context.Context, db *sql.DB) error {
	// Scans and reports cascade off users, so removing the demo users
	// is enough. Only seed IDs are touched.
	ids := make([]string, len(demoUsers))
	for i, u := range demoUsers {
		ids[i] = u.id
	}
	_, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

func seed(ctx context.Context, db *sql.DB) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range demoUsers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, name, status, password_hash)
			VALUES ($1, $2, $3, 'active', $4)
			ON CONFLICT (id) DO NOTHING`,
			u.id, u.email, u.name, string(hash),
		); err != nil {
			return fmt.Errorf("insert user %s: %w", u.email, err)
		}
	}

	now := time.Now().UTC()
	for _, s := range demoScans {
		types, _ := json.Marshal(s.types)
		vulns := []byte("[]")
		if s.vulns != nil {
			vulns, _ = json.Marshal(s.vulns)
		}

		var startedAt, completedAt *time.Time
		if s.started {
			t := now.Add(-time.Hour)
			startedAt = &t
		}
		if s.done {
			t := now.Add(-50 * time.Minute)
			completedAt = &t
		}

		progress := 0
		if s.done {
			progress = 100
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scans (id, owner_id, url, domain, types, status, progress,
			                   vulnerabilities, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			s.id, s.owner, s.url, s.domain, types, s.status, progress,
			vulns, startedAt, completedAt,
		); err != nil {
			return fmt.Errorf("insert scan %s: %w", s.url, err)
		}
	}

	for _, r := range demoReports {
		findings := []byte("[]")
		if r.findings != nil {
			findings, _ = json.Marshal(r.findings)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reports (id, owner_id, scan_id, title, summary, severity, findings)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			r.id, r.owner, r.scan, r.title, r.summary, r.severity, findings,
		); err != nil {
			return fmt.Errorf("insert report %q: %w", r.title, err)
		}
	}

	return tx.Commit()
}

func printSummary(ctx context.Context, db *sql.DB) {
	fmt.Println("\n=== Seed Data Summary ===")

	counts := []struct {
		table string
		query string
	}{
		{"Users", "SELECT COUNT(*) FROM users"},
		{"Scans", "SELECT COUNT(*) FROM scans"},
		{"Completed Scans", "SELECT COUNT(*) FROM scans WHERE status = 'completed'"},
		{"Reports", "SELECT COUNT(*) FROM reports"},
	}

	for _, c := range counts {
		var count int
		if err := db.QueryRowContext(ctx, c.query).Scan(&count); err != nil {
			fmt.Printf("  %s: (error: %v)\n", c.table, err)
		} else {
			fmt.Printf("  %s: %d\n", c.table, count)
		}
	}
}
