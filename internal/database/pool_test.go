package database

import (
	"context"
	"testing"
	"time"
)

func TestPoolConfig(t *testing.T) {
	cfg := PoolConfig{
		URL:             "postgres://barkbook:pw@localhost:5432/barkbook?sslmode=disable",
		MaxConns:        12,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
	}
	pc, err := cfg.pgxConfig()
	if err != nil {
		t.Fatalf("pgxConfig: %v", err)
	}
	if pc.MaxConns != 12 || pc.MinConns != 2 || pc.MaxConnLifetime != time.Hour {
		t.Errorf("pool config = max %d, min %d, lifetime %v", pc.MaxConns, pc.MinConns, pc.MaxConnLifetime)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), PoolConfig{URL: "postgres://localhost:notaport/db"})
	if err == nil {
		t.Fatal("expected an error for an unparsable URL")
	}
}

func TestDatabaseName(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@host:5432/barkbook?sslmode=disable": "barkbook",
		"postgres://host":                                   "",
		"::not a url":                                       "",
	}
	for in, want := range tests {
		if got := DatabaseName(in); got != want {
			t.Errorf("DatabaseName(%q) = %q, want %q", in, got, want)
		}
	}
}
