package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ventline/ventline-api/internal/model"
)

// JourneyRepo provides data access to the `journeys` and `journey_devices`
// tables.  All mutations of a journey/device-link pair run inside a
// transaction so that concurrent ensure/attach calls for the same device
// serialize on the link's primary key instead of racing.  Device sets are
// stored as JSON text columns and coerced to typed slices at this boundary;
// malformed or null columns decode to empty slices rather than leaking
// driver values upward.
type JourneyRepo struct {
	DB *sql.DB
}

// NewJourneyRepo returns a JourneyRepo bound to the provided database.
func NewJourneyRepo(db *sql.DB) *JourneyRepo { return &JourneyRepo{DB: db} }

// GetLink fetches the device link for an identity hash.  Returns
// ErrNotFound when the device is not part of any journey.
func (r *JourneyRepo) GetLink(ctx context.Context, deviceHash string) (model.DeviceLink, error) {
	var l model.DeviceLink
	err := r.DB.QueryRowContext(ctx,
		"SELECT device_hash, device_id, journey_id, created_at FROM journey_devices WHERE device_hash=? LIMIT 1",
		deviceHash).Scan(&l.DeviceHash, &l.DeviceID, &l.JourneyID, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeviceLink{}, ErrNotFound
	}
	return l, err
}

// GetJourney fetches a journey by id.  Returns ErrNotFound when no such
// journey exists.
func (r *JourneyRepo) GetJourney(ctx context.Context, id string) (model.Journey, error) {
	return scanJourney(r.DB.QueryRowContext(ctx,
		"SELECT id, primary_device_id, primary_device_hash, device_ids, device_hashes, last_key_preview, created_at, updated_at FROM journeys WHERE id=? LIMIT 1",
		id))
}

type rowScanner interface{ Scan(dest ...any) error }

func scanJourney(row rowScanner) (model.Journey, error) {
	var (
		j            model.Journey
		idsJSON      sql.NullString
		hashesJSON   sql.NullString
		lastPreview  sql.NullString
	)
	err := row.Scan(&j.ID, &j.PrimaryDeviceID, &j.PrimaryDeviceHash, &idsJSON, &hashesJSON, &lastPreview, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Journey{}, ErrNotFound
	}
	if err != nil {
		return model.Journey{}, err
	}
	j.DeviceIDs = decodeStringSet(idsJSON)
	j.DeviceHashes = decodeStringSet(hashesJSON)
	j.LastKeyPreview = lastPreview.String
	return j, nil
}

// decodeStringSet coerces a JSON text column into a string slice, defaulting
// to empty on null or malformed content.
func decodeStringSet(col sql.NullString) []string {
	if !col.Valid || col.String == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(col.String), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func encodeStringSet(set []string) string {
	b, err := json.Marshal(set)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// EnsureForDevice idempotently guarantees a singleton journey exists for the
// device and returns it.  The journey id equals the device's identity hash.
// Two concurrent calls for a never-before-seen device serialize on the
// journey_devices primary key: the loser of the insert race observes a
// duplicate-key error, re-reads, and converges on the winner's journey.
func (r *JourneyRepo) EnsureForDevice(ctx context.Context, deviceID, deviceHash string) (model.Journey, bool, error) {
	if link, err := r.GetLink(ctx, deviceHash); err == nil {
		j, jerr := r.GetJourney(ctx, link.JourneyID)
		return j, false, jerr
	} else if !errors.Is(err, ErrNotFound) {
		return model.Journey{}, false, err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Journey{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO journeys (id, primary_device_id, primary_device_hash, device_ids, device_hashes, last_key_preview, created_at, updated_at)
		 VALUES (?,?,?,?,?,'',?,?)`,
		deviceHash, deviceID, deviceHash,
		encodeStringSet([]string{deviceID}), encodeStringSet([]string{deviceHash}),
		now, now)
	if err != nil && !IsDuplicate(err) {
		return model.Journey{}, false, err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO journey_devices (device_hash, device_id, journey_id, created_at) VALUES (?,?,?,?)",
		deviceHash, deviceID, deviceHash, now)
	if err != nil {
		if IsDuplicate(err) {
			// Lost the race: another request created the link first.
			_ = tx.Rollback()
			link, lerr := r.GetLink(ctx, deviceHash)
			if lerr != nil {
				return model.Journey{}, false, lerr
			}
			j, jerr := r.GetJourney(ctx, link.JourneyID)
			return j, false, jerr
		}
		return model.Journey{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return model.Journey{}, false, err
	}
	j, err := r.GetJourney(ctx, deviceHash)
	return j, true, err
}

// AttachDevice links a device into a journey.  Attaching an already-linked
// member is a no-op reported via alreadyAttached.  A device currently linked
// to a different journey is re-pointed: its link row moves to the new
// journey and it is pruned from the old journey's device sets; the old
// journey is deleted when that leaves it empty.
func (r *JourneyRepo) AttachDevice(ctx context.Context, journeyID, deviceID, deviceHash string) (alreadyAttached bool, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	j, err := scanJourney(tx.QueryRowContext(ctx,
		"SELECT id, primary_device_id, primary_device_hash, device_ids, device_hashes, last_key_preview, created_at, updated_at FROM journeys WHERE id=? LIMIT 1 FOR UPDATE",
		journeyID))
	if err != nil {
		return false, err
	}
	if j.HasDeviceHash(deviceHash) {
		return true, tx.Commit()
	}

	now := time.Now().UTC()

	// Existing membership elsewhere: re-point the link and prune the old
	// journey.  No primary reassignment happens for the old journey here.
	var oldJourneyID string
	lookupErr := tx.QueryRowContext(ctx,
		"SELECT journey_id FROM journey_devices WHERE device_hash=? LIMIT 1 FOR UPDATE",
		deviceHash).Scan(&oldJourneyID)
	switch {
	case lookupErr == nil:
		if _, err = tx.ExecContext(ctx,
			"UPDATE journey_devices SET journey_id=?, created_at=? WHERE device_hash=?",
			journeyID, now, deviceHash); err != nil {
			return false, err
		}
		if err = r.pruneDeviceTx(ctx, tx, oldJourneyID, deviceHash, now); err != nil {
			return false, err
		}
	case errors.Is(lookupErr, sql.ErrNoRows):
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO journey_devices (device_hash, device_id, journey_id, created_at) VALUES (?,?,?,?)",
			deviceHash, deviceID, journeyID, now); err != nil {
			return false, err
		}
	default:
		return false, lookupErr
	}

	j.DeviceIDs = append(j.DeviceIDs, deviceID)
	j.DeviceHashes = append(j.DeviceHashes, deviceHash)
	if _, err = tx.ExecContext(ctx,
		"UPDATE journeys SET device_ids=?, device_hashes=?, updated_at=? WHERE id=?",
		encodeStringSet(j.DeviceIDs), encodeStringSet(j.DeviceHashes), now, journeyID); err != nil {
		return false, err
	}
	return false, tx.Commit()
}

// pruneDeviceTx removes a device hash from a journey's sets inside an open
// transaction, deleting the journey (and its keys) when it empties.
func (r *JourneyRepo) pruneDeviceTx(ctx context.Context, tx *sql.Tx, journeyID, deviceHash string, now time.Time) error {
	j, err := scanJourney(tx.QueryRowContext(ctx,
		"SELECT id, primary_device_id, primary_device_hash, device_ids, device_hashes, last_key_preview, created_at, updated_at FROM journeys WHERE id=? LIMIT 1 FOR UPDATE",
		journeyID))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(j.DeviceIDs))
	hashes := make([]string, 0, len(j.DeviceHashes))
	for i, h := range j.DeviceHashes {
		if h == deviceHash {
			continue
		}
		hashes = append(hashes, h)
		if i < len(j.DeviceIDs) {
			ids = append(ids, j.DeviceIDs[i])
		}
	}
	if len(hashes) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM identity_keys WHERE journey_id=?", journeyID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM journeys WHERE id=?", journeyID)
		return err
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE journeys SET device_ids=?, device_hashes=?, updated_at=? WHERE id=?",
		encodeStringSet(ids), encodeStringSet(hashes), now, journeyID)
	return err
}

// DetachDevice removes a device from its journey and deletes the link row.
// When the last device detaches, the journey and its backup keys are
// deleted; journeyDeleted reports that.  Detaching the primary of a
// still-populated journey promotes the first remaining device to primary so
// the journey stays resolvable.
func (r *JourneyRepo) DetachDevice(ctx context.Context, journeyID, deviceHash string) (journeyDeleted bool, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	j, err := scanJourney(tx.QueryRowContext(ctx,
		"SELECT id, primary_device_id, primary_device_hash, device_ids, device_hashes, last_key_preview, created_at, updated_at FROM journeys WHERE id=? LIMIT 1 FOR UPDATE",
		journeyID))
	if err != nil {
		return false, err
	}
	if _, err = tx.ExecContext(ctx,
		"DELETE FROM journey_devices WHERE device_hash=? AND journey_id=?",
		deviceHash, journeyID); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	ids := make([]string, 0, len(j.DeviceIDs))
	hashes := make([]string, 0, len(j.DeviceHashes))
	for i, h := range j.DeviceHashes {
		if h == deviceHash {
			continue
		}
		hashes = append(hashes, h)
		if i < len(j.DeviceIDs) {
			ids = append(ids, j.DeviceIDs[i])
		}
	}
	if len(hashes) == 0 {
		if _, err = tx.ExecContext(ctx, "DELETE FROM identity_keys WHERE journey_id=?", journeyID); err != nil {
			return false, err
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM journeys WHERE id=?", journeyID); err != nil {
			return false, err
		}
		return true, tx.Commit()
	}

	primaryID, primaryHash := j.PrimaryDeviceID, j.PrimaryDeviceHash
	if j.PrimaryDeviceHash == deviceHash {
		primaryHash = hashes[0]
		primaryID = ids[0]
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE journeys SET primary_device_id=?, primary_device_hash=?, device_ids=?, device_hashes=?, updated_at=? WHERE id=?",
		primaryID, primaryHash, encodeStringSet(ids), encodeStringSet(hashes), now, journeyID); err != nil {
		return false, err
	}
	return false, tx.Commit()
}

// SetLastKeyPreview records the preview of the most recently issued backup
// key on the journey.
func (r *JourneyRepo) SetLastKeyPreview(ctx context.Context, journeyID, preview string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE journeys SET last_key_preview=?, updated_at=? WHERE id=?",
		preview, time.Now().UTC(), journeyID)
	return err
}
