package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ventline/ventline-api/internal/model"
)

// ContentRepo provides access to the `messages` and `responses` tables.
// Ownership columns come in two schemes: device_hash (current) and
// device_id (legacy raw identifier).  The re-pointing queries used by the
// merge engine expose both so callers can deduplicate records matched by
// either scheme.
type ContentRepo struct{ DB *sql.DB }

func NewContentRepo(db *sql.DB) *ContentRepo { return &ContentRepo{DB: db} }

// InsertMessage stores a new vent.
func (r *ContentRepo) InsertMessage(ctx context.Context, m model.Message) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO messages (id, device_hash, device_id, feeling, body, status, created_at) VALUES (?,?,?,?,?,?,?)",
		m.ID, m.DeviceHash, m.DeviceID, m.Feeling, m.Body, m.Status, m.CreatedAt)
	return err
}

// GetMessage fetches one message by id.
func (r *ContentRepo) GetMessage(ctx context.Context, id string) (model.Message, error) {
	var m model.Message
	var deviceID sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, device_hash, device_id, feeling, body, status, created_at FROM messages WHERE id=? LIMIT 1",
		id).Scan(&m.ID, &m.DeviceHash, &deviceID, &m.Feeling, &m.Body, &m.Status, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, ErrNotFound
	}
	m.DeviceID = deviceID.String
	return m, err
}

// ListApprovedMessages returns the most recent approved vents.
func (r *ContentRepo) ListApprovedMessages(ctx context.Context, limit int) ([]model.Message, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, device_hash, device_id, feeling, body, status, created_at FROM messages WHERE status=? ORDER BY created_at DESC LIMIT ?",
		model.MessageStatusApproved, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListMessagesByOwner returns every message owned by the identity, matched
// by hash or by legacy raw identifier.
func (r *ContentRepo) ListMessagesByOwner(ctx context.Context, deviceHash, rawDeviceID string) ([]model.Message, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, device_hash, device_id, feeling, body, status, created_at FROM messages WHERE device_hash=? OR (device_id<>'' AND device_id=?) ORDER BY created_at DESC",
		deviceHash, rawDeviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]model.Message, error) {
	var out []model.Message
	for rows.Next() {
		var m model.Message
		var deviceID sql.NullString
		if err := rows.Scan(&m.ID, &m.DeviceHash, &deviceID, &m.Feeling, &m.Body, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.DeviceID = deviceID.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountByOwner reports how many content records (messages plus responses)
// the identity owns under either ownership scheme.
func (r *ContentRepo) CountByOwner(ctx context.Context, deviceHash, rawDeviceID string) (int, error) {
	var messages, responses int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE device_hash=? OR (device_id<>'' AND device_id=?)",
		deviceHash, rawDeviceID).Scan(&messages)
	if err != nil {
		return 0, err
	}
	err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM responses WHERE device_hash=? OR (device_id<>'' AND device_id=?)",
		deviceHash, rawDeviceID).Scan(&responses)
	return messages + responses, err
}

// SetMessageStatus updates a message's moderation status.
func (r *ContentRepo) SetMessageStatus(ctx context.Context, id, status string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE messages SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertResponse stores a supportive reply.
func (r *ContentRepo) InsertResponse(ctx context.Context, resp model.Response) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO responses (id, message_id, device_hash, device_id, body, created_at) VALUES (?,?,?,?,?,?)",
		resp.ID, resp.MessageID, resp.DeviceHash, resp.DeviceID, resp.Body, resp.CreatedAt)
	return err
}

// ListResponses returns all responses to a message, oldest first.
func (r *ContentRepo) ListResponses(ctx context.Context, messageID string) ([]model.Response, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, message_id, device_hash, device_id, body, created_at FROM responses WHERE message_id=? ORDER BY created_at ASC",
		messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Response
	for rows.Next() {
		var resp model.Response
		var deviceID sql.NullString
		if err := rows.Scan(&resp.ID, &resp.MessageID, &resp.DeviceHash, &deviceID, &resp.Body, &resp.CreatedAt); err != nil {
			return nil, err
		}
		resp.DeviceID = deviceID.String
		out = append(out, resp)
	}
	return out, rows.Err()
}

// --- merge-engine re-pointing queries ---

// MessageIDsByOwnerHash lists ids of messages whose ownership hash matches.
func (r *ContentRepo) MessageIDsByOwnerHash(ctx context.Context, deviceHash string) ([]string, error) {
	return r.collectIDs(ctx, "SELECT id FROM messages WHERE device_hash=?", deviceHash)
}

// MessageIDsByLegacyID lists ids of messages still keyed by raw identifier.
func (r *ContentRepo) MessageIDsByLegacyID(ctx context.Context, rawDeviceID string) ([]string, error) {
	return r.collectIDs(ctx, "SELECT id FROM messages WHERE device_id=? AND device_id<>''", rawDeviceID)
}

// RepointMessage transfers one message to a new owner hash.  Re-pointing a
// record that already carries the target hash is a no-op, which keeps merge
// re-runs safe.
func (r *ContentRepo) RepointMessage(ctx context.Context, id, newOwnerHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE messages SET device_hash=? WHERE id=? AND device_hash<>?",
		newOwnerHash, id, newOwnerHash)
	return err
}

// ResponseIDsByOwnerHash lists ids of responses whose ownership hash matches.
func (r *ContentRepo) ResponseIDsByOwnerHash(ctx context.Context, deviceHash string) ([]string, error) {
	return r.collectIDs(ctx, "SELECT id FROM responses WHERE device_hash=?", deviceHash)
}

// ResponseIDsByLegacyID lists ids of responses still keyed by raw identifier.
func (r *ContentRepo) ResponseIDsByLegacyID(ctx context.Context, rawDeviceID string) ([]string, error) {
	return r.collectIDs(ctx, "SELECT id FROM responses WHERE device_id=? AND device_id<>''", rawDeviceID)
}

// RepointResponse transfers one response to a new owner hash.
func (r *ContentRepo) RepointResponse(ctx context.Context, id, newOwnerHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE responses SET device_hash=? WHERE id=? AND device_hash<>?",
		newOwnerHash, id, newOwnerHash)
	return err
}

func (r *ContentRepo) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
