package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ventline/ventline-api/internal/model"
)

// StatsRepo provides access to the `device_stats` table: per-identity
// activity counters keyed by identity hash.  Rows created before the
// hashing scheme are keyed by raw identifier in the device_id column, so
// reads fall back to that column when the hash lookup misses.
type StatsRepo struct{ DB *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{DB: db} }

const statsColumns = "device_hash, device_id, messages_sent, replies_given, replies_received, karma, created_at, last_active_at, last_replies_seen_at"

func scanStats(row rowScanner) (model.DeviceStats, error) {
	var (
		s        model.DeviceStats
		deviceID sql.NullString
	)
	err := row.Scan(&s.DeviceHash, &deviceID, &s.MessagesSent, &s.RepliesGiven, &s.RepliesReceived, &s.Karma, &s.CreatedAt, &s.LastActiveAt, &s.LastRepliesSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeviceStats{}, ErrNotFound
	}
	s.DeviceID = deviceID.String
	return s, err
}

// Get fetches the stats row for an identity hash.
func (r *StatsRepo) Get(ctx context.Context, deviceHash string) (model.DeviceStats, error) {
	return scanStats(r.DB.QueryRowContext(ctx,
		"SELECT "+statsColumns+" FROM device_stats WHERE device_hash=? LIMIT 1", deviceHash))
}

// GetWithLegacyFallback fetches stats by identity hash, then by raw legacy
// identifier when the hash row does not exist.
func (r *StatsRepo) GetWithLegacyFallback(ctx context.Context, deviceHash, rawDeviceID string) (model.DeviceStats, error) {
	s, err := r.Get(ctx, deviceHash)
	if !errors.Is(err, ErrNotFound) {
		return s, err
	}
	return scanStats(r.DB.QueryRowContext(ctx,
		"SELECT "+statsColumns+" FROM device_stats WHERE device_id=? LIMIT 1", rawDeviceID))
}

// Upsert writes a full stats row, replacing counters and timestamps on
// conflict.  Used by the merge engine to persist folded totals.
func (r *StatsRepo) Upsert(ctx context.Context, s model.DeviceStats) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO device_stats (`+statsColumns+`) VALUES (?,?,?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   device_id=VALUES(device_id), messages_sent=VALUES(messages_sent),
		   replies_given=VALUES(replies_given), replies_received=VALUES(replies_received),
		   karma=VALUES(karma), created_at=VALUES(created_at),
		   last_active_at=VALUES(last_active_at), last_replies_seen_at=VALUES(last_replies_seen_at)`,
		s.DeviceHash, s.DeviceID, s.MessagesSent, s.RepliesGiven, s.RepliesReceived, s.Karma,
		s.CreatedAt, s.LastActiveAt, s.LastRepliesSeenAt)
	return err
}

// Touch bumps last_active_at for an identity, creating the row on first
// activity.  Counters are left alone.
func (r *StatsRepo) Touch(ctx context.Context, deviceHash string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO device_stats (device_hash, device_id, messages_sent, replies_given, replies_received, karma, created_at, last_active_at, last_replies_seen_at)
		 VALUES (?,'',0,0,0,0,?,?,?)
		 ON DUPLICATE KEY UPDATE last_active_at=VALUES(last_active_at)`,
		deviceHash, now, now, now)
	return err
}

// BumpMessageSent increments the messages_sent counter for an identity,
// creating the row when needed.
func (r *StatsRepo) BumpMessageSent(ctx context.Context, deviceHash string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO device_stats (device_hash, device_id, messages_sent, replies_given, replies_received, karma, created_at, last_active_at, last_replies_seen_at)
		 VALUES (?,'',1,0,0,0,?,?,?)
		 ON DUPLICATE KEY UPDATE messages_sent=messages_sent+1, last_active_at=VALUES(last_active_at)`,
		deviceHash, now, now, now)
	return err
}

// BumpReply credits a given reply to the responder and a received reply to
// the message owner.
func (r *StatsRepo) BumpReply(ctx context.Context, giverHash, receiverHash string, now time.Time) error {
	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO device_stats (device_hash, device_id, messages_sent, replies_given, replies_received, karma, created_at, last_active_at, last_replies_seen_at)
		 VALUES (?,'',0,1,0,1,?,?,?)
		 ON DUPLICATE KEY UPDATE replies_given=replies_given+1, karma=karma+1, last_active_at=VALUES(last_active_at)`,
		giverHash, now, now, now); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO device_stats (device_hash, device_id, messages_sent, replies_given, replies_received, karma, created_at, last_active_at, last_replies_seen_at)
		 VALUES (?,'',0,0,1,0,?,?,?)
		 ON DUPLICATE KEY UPDATE replies_received=replies_received+1`,
		receiverHash, now, now, now)
	return err
}

// MarkRepliesSeen records that the identity has read its reply threads.
func (r *StatsRepo) MarkRepliesSeen(ctx context.Context, deviceHash string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE device_stats SET last_replies_seen_at=? WHERE device_hash=?",
		now, deviceHash)
	return err
}

// Delete removes a stats row.  The merge engine calls this for the
// secondary identity after folding its counters into the primary so the
// secondary totals cannot resurrect on a later read.
func (r *StatsRepo) Delete(ctx context.Context, deviceHash string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM device_stats WHERE device_hash=?", deviceHash)
	return err
}
