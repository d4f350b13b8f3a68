package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-shark/internal/ayla"
	"github.com/nerrad567/gray-logic-shark/internal/registry"
)

// Syncer reconciles the cloud's device list against the local registry and
// builds the engine's bindings. Reconciliation is idempotent: running it
// twice against an unchanged device list creates nothing on the second run.
type Syncer struct {
	repo registry.Repository
}

// NewSyncer creates a reconciler over the given registry.
func NewSyncer(repo registry.Repository) *Syncer {
	return &Syncer{repo: repo}
}

// Reconcile ensures a registry device and its three features exist for
// every cloud device, and returns the resulting bindings in cloud list
// order. Existing registry entries are matched by key; missing ones are
// created; a changed cloud name renames the local entry. Registry entries
// for devices the cloud no longer reports are left in place - removal from
// an account is rare and destructive cleanup is a human decision.
func (s *Syncer) Reconcile(ctx context.Context, devices []ayla.Device) ([]Binding, error) {
	bindings := make([]Binding, 0, len(devices))

	for _, dev := range devices {
		if dev.DSN == "" {
			continue
		}

		b, err := s.reconcileDevice(ctx, dev)
		if err != nil {
			return nil, fmt.Errorf("reconciling device %s: %w", dev.DSN, err)
		}
		bindings = append(bindings, b)
	}

	return bindings, nil
}

// reconcileDevice ensures one device and its features exist, returning the
// binding.
func (s *Syncer) reconcileDevice(ctx context.Context, dev ayla.Device) (Binding, error) {
	name := dev.ProductName
	if name == "" {
		name = dev.DSN
	}

	entry, err := s.repo.FindDeviceByKey(ctx, registry.DeviceKey(dev.DSN))
	switch {
	case errors.Is(err, registry.ErrDeviceNotFound):
		entry, err = s.repo.CreateDevice(ctx, registry.DeviceKey(dev.DSN), name)
		if err != nil {
			return Binding{}, err
		}
	case err != nil:
		return Binding{}, err
	case entry.Name != name:
		// The cloud is authoritative for names.
		if err := s.repo.RenameDevice(ctx, entry.ID, name); err != nil {
			return Binding{}, err
		}
		entry.Name = name
	}

	binding := Binding{
		DSN:      dev.DSN,
		Name:     name,
		DeviceID: entry.ID,
	}

	features := []struct {
		name string
		dest *string
	}{
		{registry.FeatureStatus, &binding.StatusFeatureID},
		{registry.FeaturePowerMode, &binding.PowerModeFeatureID},
		{registry.FeatureBattery, &binding.BatteryFeatureID},
	}
	for _, f := range features {
		id, err := s.ensureFeature(ctx, entry.ID, dev.DSN, f.name)
		if err != nil {
			return Binding{}, err
		}
		*f.dest = id
	}

	return binding, nil
}

// ensureFeature finds or creates one feature entry and returns its handle.
func (s *Syncer) ensureFeature(ctx context.Context, deviceID, dsn, name string) (string, error) {
	key := registry.FeatureKey(dsn, name)

	feature, err := s.repo.FindFeatureByKey(ctx, key)
	if errors.Is(err, registry.ErrFeatureNotFound) {
		feature, err = s.repo.CreateFeature(ctx, deviceID, key, name)
	}
	if err != nil {
		return "", err
	}
	return feature.ID, nil
}
