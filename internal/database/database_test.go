package database

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5433", User: "app", Password: "s3cret", Name: "sessions", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=app password=s3cret dbname=sessions sslmode=require", cfg.DSN())
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	body, err := migrations.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "bookings_school_subject_date_slot_key")
	assert.Contains(t, string(body), "bookings_teacher_date_slot_key")
}

func TestNewPool_GivesUpWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cfg := Config{Host: "127.0.0.1", Port: "1", User: "u", Password: "p", Name: "n", SSLMode: "disable", MaxConns: 1}
	_, err := NewPool(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestNewPool_RetriesUnreachableDatabase(t *testing.T) {
	orig := connectBackoff
	connectBackoff = 10 * time.Millisecond
	t.Cleanup(func() { connectBackoff = orig })

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := Config{Host: "127.0.0.1", Port: "1", User: "u", Password: "p", Name: "n", SSLMode: "disable", MaxConns: 1}
	pool, err := NewPool(ctx, cfg, log)
	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Contains(t, err.Error(), "connect to postgres")
	assert.Equal(t, connectAttempts-1, strings.Count(buf.String(), "db connect failed, retrying"))
	assert.Contains(t, buf.String(), "attempt=4")
}
