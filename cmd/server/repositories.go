package main

import (
	"github.com/webscanio/api/internal/infra/postgres"
)

// Repositories holds all repository instances.
type Repositories struct {
	User   *postgres.UserRepository
	Scan   *postgres.ScanRepository
	Report *postgres.ReportRepository
}

// NewRepositories creates all repositories backed by one database pool.
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		User:   postgres.NewUserRepository(db),
		Scan:   postgres.NewScanRepository(db),
		Report: postgres.NewReportRepository(db),
	}
}
