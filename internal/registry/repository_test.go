package registry

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the registry tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE devices (
			id         TEXT PRIMARY KEY,
			key        TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE features (
			id           TEXT PRIMARY KEY,
			device_id    TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			key          TEXT NOT NULL UNIQUE,
			name         TEXT NOT NULL,
			value        REAL,
			display_text TEXT,
			updated_at   TEXT NOT NULL
		);

		CREATE TABLE settings (
			section    TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (section, key)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestCreateAndFindDevice(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.CreateDevice(ctx, DeviceKey("AC000W000000001"), "Living Room Shark")
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateDevice() should generate an ID")
	}

	found, err := repo.FindDeviceByKey(ctx, "shark:AC000W000000001")
	if err != nil {
		t.Fatalf("FindDeviceByKey() error = %v", err)
	}
	if found.ID != created.ID || found.Name != "Living Room Shark" {
		t.Errorf("found device %+v, want match for %+v", found, created)
	}
}

func TestFindDeviceByKey_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.FindDeviceByKey(context.Background(), "shark:missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("FindDeviceByKey() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRenameDevice(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d, err := repo.CreateDevice(ctx, DeviceKey("DSN1"), "Old Name")
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	if err := repo.RenameDevice(ctx, d.ID, "New Name"); err != nil {
		t.Fatalf("RenameDevice() error = %v", err)
	}

	found, err := repo.FindDeviceByKey(ctx, DeviceKey("DSN1"))
	if err != nil {
		t.Fatalf("FindDeviceByKey() error = %v", err)
	}
	if found.Name != "New Name" {
		t.Errorf("Name = %q, want %q", found.Name, "New Name")
	}

	if err := repo.RenameDevice(ctx, "no-such-id", "x"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("RenameDevice(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestCreateAndFindFeature(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d, err := repo.CreateDevice(ctx, DeviceKey("DSN1"), "Shark")
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	created, err := repo.CreateFeature(ctx, d.ID, FeatureKey("DSN1", FeatureStatus), FeatureStatus)
	if err != nil {
		t.Fatalf("CreateFeature() error = %v", err)
	}

	found, err := repo.FindFeatureByKey(ctx, "shark:DSN1:status")
	if err != nil {
		t.Fatalf("FindFeatureByKey() error = %v", err)
	}
	if found.ID != created.ID || found.DeviceID != d.ID {
		t.Errorf("found feature %+v", found)
	}
	if found.Value != nil {
		t.Errorf("new feature Value = %v, want nil", found.Value)
	}
}

func TestSetFeatureValue(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d, _ := repo.CreateDevice(ctx, DeviceKey("DSN1"), "Shark")
	f, err := repo.CreateFeature(ctx, d.ID, FeatureKey("DSN1", FeatureBattery), FeatureBattery)
	if err != nil {
		t.Fatalf("CreateFeature() error = %v", err)
	}

	if err := repo.SetFeatureValue(ctx, f.ID, 87); err != nil {
		t.Fatalf("SetFeatureValue() error = %v", err)
	}
	if err := repo.SetFeatureDisplayText(ctx, f.ID, "87%"); err != nil {
		t.Fatalf("SetFeatureDisplayText() error = %v", err)
	}

	found, err := repo.FindFeatureByKey(ctx, FeatureKey("DSN1", FeatureBattery))
	if err != nil {
		t.Fatalf("FindFeatureByKey() error = %v", err)
	}
	if found.Value == nil || *found.Value != 87 {
		t.Errorf("Value = %v, want 87", found.Value)
	}
	if found.DisplayText != "87%" {
		t.Errorf("DisplayText = %q", found.DisplayText)
	}

	if err := repo.SetFeatureValue(ctx, "no-such-id", 1); !errors.Is(err, ErrFeatureNotFound) {
		t.Errorf("SetFeatureValue(missing) error = %v, want ErrFeatureNotFound", err)
	}
}

func TestListFeaturesByDevice(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d, _ := repo.CreateDevice(ctx, DeviceKey("DSN1"), "Shark")
	other, _ := repo.CreateDevice(ctx, DeviceKey("DSN2"), "Other Shark")

	for _, name := range []string{FeatureStatus, FeaturePowerMode, FeatureBattery} {
		if _, err := repo.CreateFeature(ctx, d.ID, FeatureKey("DSN1", name), name); err != nil {
			t.Fatalf("CreateFeature(%s) error = %v", name, err)
		}
	}
	if _, err := repo.CreateFeature(ctx, other.ID, FeatureKey("DSN2", FeatureStatus), FeatureStatus); err != nil {
		t.Fatalf("CreateFeature() error = %v", err)
	}

	features, err := repo.ListFeaturesByDevice(ctx, d.ID)
	if err != nil {
		t.Fatalf("ListFeaturesByDevice() error = %v", err)
	}
	if len(features) != 3 {
		t.Errorf("len(features) = %d, want 3", len(features))
	}
	for _, f := range features {
		if f.DeviceID != d.ID {
			t.Errorf("feature %s belongs to %s", f.Key, f.DeviceID)
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	// Absent key returns the default
	got, err := repo.GetSetting(ctx, SectionCredentials, KeyEmail, "fallback")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if got != "fallback" {
		t.Errorf("GetSetting(absent) = %q, want fallback", got)
	}

	if err := repo.SetSetting(ctx, SectionCredentials, KeyEmail, "user@example.com"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	got, err = repo.GetSetting(ctx, SectionCredentials, KeyEmail, "")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if got != "user@example.com" {
		t.Errorf("GetSetting() = %q", got)
	}

	// Overwrite
	if err := repo.SetSetting(ctx, SectionCredentials, KeyEmail, "other@example.com"); err != nil {
		t.Fatalf("SetSetting() overwrite error = %v", err)
	}
	got, _ = repo.GetSetting(ctx, SectionCredentials, KeyEmail, "")
	if got != "other@example.com" {
		t.Errorf("GetSetting() after overwrite = %q", got)
	}

	// Delete, then the default applies again
	if err := repo.DeleteSetting(ctx, SectionCredentials, KeyEmail); err != nil {
		t.Fatalf("DeleteSetting() error = %v", err)
	}
	got, _ = repo.GetSetting(ctx, SectionCredentials, KeyEmail, "gone")
	if got != "gone" {
		t.Errorf("GetSetting() after delete = %q", got)
	}
}

func TestKeys(t *testing.T) {
	if got := DeviceKey("AC1"); got != "shark:AC1" {
		t.Errorf("DeviceKey() = %q", got)
	}
	if got := FeatureKey("AC1", FeatureStatus); got != "shark:AC1:status" {
		t.Errorf("FeatureKey() = %q", got)
	}
}
