package model

import "time"

// Journey represents a row in the `journeys` table: the unit of
// cross-device identity linking.  A journey groups every device
// identifier a user has attached via a backup key and designates
// one of them as primary; all merged activity resolves to the
// primary.  The journey id equals the identity hash of the device
// that first created it.
//
// Fields:
//  ID                – journeys.id (hash of the founding device).
//  PrimaryDeviceID   – raw identifier all activity resolves to.
//  PrimaryDeviceHash – identity hash of the primary device.
//  DeviceIDs         – every raw identifier ever attached, primary included.
//  DeviceHashes      – identity hashes matching DeviceIDs.
//  LastKeyPreview    – non-secret prefix of the most recently issued key.
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last mutation.
type Journey struct {
	ID                string    // journeys.id
	PrimaryDeviceID   string    // journeys.primary_device_id
	PrimaryDeviceHash string    // journeys.primary_device_hash
	DeviceIDs         []string  // journeys.device_ids (JSON column)
	DeviceHashes      []string  // journeys.device_hashes (JSON column)
	LastKeyPreview    string    // journeys.last_key_preview
	CreatedAt         time.Time // journeys.created_at
	UpdatedAt         time.Time // journeys.updated_at
}

// HasDeviceHash reports whether the given identity hash is already a member
// of this journey's device set.
func (j *Journey) HasDeviceHash(hash string) bool {
	for _, h := range j.DeviceHashes {
		if h == hash {
			return true
		}
	}
	return false
}

// DeviceLink is a row in the `journey_devices` table: the primary lookup
// path from a device hash to the journey that owns it.  A device hash maps
// to at most one journey at a time.
//
// Fields:
//  DeviceHash – journey_devices.device_hash (primary key).
//  DeviceID   – raw device identifier behind the hash.
//  JourneyID  – journey this device belongs to.
//  CreatedAt  – when the link was created.
type DeviceLink struct {
	DeviceHash string    // journey_devices.device_hash
	DeviceID   string    // journey_devices.device_id
	JourneyID  string    // journey_devices.journey_id
	CreatedAt  time.Time // journey_devices.created_at
}

// IdentityKey models a row in the `identity_keys` table.  The plaintext
// backup key is never stored; only its salted hash, which doubles as the
// lookup key, plus a short preview for user-facing confirmation.  Keys do
// not expire and are not consumed on redemption; several devices may
// redeem the same key over time.
//
// Fields:
//  KeyHash   – identity_keys.key_hash (primary key, argon2id digest).
//  JourneyID – journey this key attaches devices to.
//  Preview   – non-secret prefix of the plaintext.
//  CreatedAt – issuance timestamp.
type IdentityKey struct {
	KeyHash   string    // identity_keys.key_hash
	JourneyID string    // identity_keys.journey_id
	Preview   string    // identity_keys.key_preview
	CreatedAt time.Time // identity_keys.created_at
}
