package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence operations for devices and features.
// The engine talks to this interface; SQLiteRepository is the only
// implementation.
type Repository interface {
	CreateDevice(ctx context.Context, key, name string) (*Device, error)
	FindDeviceByKey(ctx context.Context, key string) (*Device, error)
	ListDevices(ctx context.Context) ([]Device, error)
	RenameDevice(ctx context.Context, id, name string) error

	CreateFeature(ctx context.Context, deviceID, key, name string) (*Feature, error)
	FindFeatureByKey(ctx context.Context, key string) (*Feature, error)
	ListFeaturesByDevice(ctx context.Context, deviceID string) ([]Feature, error)
	SetFeatureValue(ctx context.Context, id string, value float64) error
	SetFeatureDisplayText(ctx context.Context, id, text string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed registry repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateDevice inserts a new device entry and returns it with a generated
// handle.
func (r *SQLiteRepository) CreateDevice(ctx context.Context, key, name string) (*Device, error) {
	now := time.Now().UTC()
	d := &Device{
		ID:        uuid.NewString(),
		Key:       key,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const query = `INSERT INTO devices (id, key, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Key, d.Name, formatTime(d.CreatedAt), formatTime(d.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting device %s: %w", key, err)
	}
	return d, nil
}

// FindDeviceByKey returns the device with the given registry address, or
// ErrDeviceNotFound.
func (r *SQLiteRepository) FindDeviceByKey(ctx context.Context, key string) (*Device, error) {
	const query = `SELECT id, key, name, created_at, updated_at
		FROM devices WHERE key = ?`
	row := r.db.QueryRowContext(ctx, query, key)
	return scanDevice(row)
}

// ListDevices returns all registered devices ordered by name.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	const query = `SELECT id, key, name, created_at, updated_at
		FROM devices ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		var createdAt, updatedAt string
		if err := rows.Scan(&d.ID, &d.Key, &d.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		d.UpdatedAt = parseTime(updatedAt)
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// RenameDevice updates a device's display name. The cloud is authoritative
// for names; reconciliation calls this when the reported name changes.
func (r *SQLiteRepository) RenameDevice(ctx context.Context, id, name string) error {
	const query = `UPDATE devices SET name = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, name, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("renaming device %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// CreateFeature inserts a new feature entry under a device.
func (r *SQLiteRepository) CreateFeature(ctx context.Context, deviceID, key, name string) (*Feature, error) {
	now := time.Now().UTC()
	f := &Feature{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Key:       key,
		Name:      name,
		UpdatedAt: now,
	}

	const query = `INSERT INTO features (id, device_id, key, name, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.DeviceID, f.Key, f.Name, formatTime(f.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting feature %s: %w", key, err)
	}
	return f, nil
}

// FindFeatureByKey returns the feature with the given registry address, or
// ErrFeatureNotFound.
func (r *SQLiteRepository) FindFeatureByKey(ctx context.Context, key string) (*Feature, error) {
	const query = `SELECT id, device_id, key, name, value, display_text, updated_at
		FROM features WHERE key = ?`
	row := r.db.QueryRowContext(ctx, query, key)
	return scanFeature(row)
}

// ListFeaturesByDevice returns all features of one device ordered by name.
func (r *SQLiteRepository) ListFeaturesByDevice(ctx context.Context, deviceID string) ([]Feature, error) {
	const query = `SELECT id, device_id, key, name, value, display_text, updated_at
		FROM features WHERE device_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying features: %w", err)
	}
	defer rows.Close()

	var features []Feature
	for rows.Next() {
		f, err := scanFeatureRow(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feature rows: %w", err)
	}
	return features, nil
}

// SetFeatureValue writes a feature's numeric value.
func (r *SQLiteRepository) SetFeatureValue(ctx context.Context, id string, value float64) error {
	const query = `UPDATE features SET value = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, value, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("updating feature %s value: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrFeatureNotFound
	}
	return nil
}

// SetFeatureDisplayText writes a feature's display text, shown alongside
// the numeric value ("87%", "Unknown Error 42").
func (r *SQLiteRepository) SetFeatureDisplayText(ctx context.Context, id, text string) error {
	const query = `UPDATE features SET display_text = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, text, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("updating feature %s display text: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrFeatureNotFound
	}
	return nil
}

// scanDevice scans a single row into a Device (for QueryRow).
func scanDevice(row *sql.Row) (*Device, error) {
	var d Device
	var createdAt, updatedAt string

	err := row.Scan(&d.ID, &d.Key, &d.Name, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// scanFeature scans a single row into a Feature (for QueryRow).
func scanFeature(row *sql.Row) (*Feature, error) {
	var f Feature
	var value sql.NullFloat64
	var displayText sql.NullString
	var updatedAt string

	err := row.Scan(&f.ID, &f.DeviceID, &f.Key, &f.Name, &value, &displayText, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrFeatureNotFound
		}
		return nil, fmt.Errorf("scanning feature: %w", err)
	}
	if value.Valid {
		f.Value = &value.Float64
	}
	if displayText.Valid {
		f.DisplayText = displayText.String
	}
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}

// scanFeatureRow scans a feature from a Rows cursor.
func scanFeatureRow(rows *sql.Rows) (*Feature, error) {
	var f Feature
	var value sql.NullFloat64
	var displayText sql.NullString
	var updatedAt string

	err := rows.Scan(&f.ID, &f.DeviceID, &f.Key, &f.Name, &value, &displayText, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning feature row: %w", err)
	}
	if value.Valid {
		f.Value = &value.Float64
	}
	if displayText.Valid {
		f.DisplayText = displayText.String
	}
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}

// formatTime serializes a timestamp for storage.
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
