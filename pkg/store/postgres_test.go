package store

import (
	"strings"
	"testing"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("migrations=%d, want at least 2", len(entries))
	}
	for _, e := range entries {
		data, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		content := string(data)
		if !strings.Contains(content, "-- +goose Up") {
			t.Fatalf("%s missing up annotation", e.Name())
		}
		if !strings.Contains(content, "-- +goose Down") {
			t.Fatalf("%s missing down annotation", e.Name())
		}
	}
}

func TestAppointmentsMigrationCoversAllFields(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/0001_create_appointments.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	content := string(data)
	for _, column := range []string{
		"name", "membership_number", "appointment_type",
		"date", "time", "phone", "email",
	} {
		if !strings.Contains(content, column) {
			t.Fatalf("missing column %q", column)
		}
	}
}
