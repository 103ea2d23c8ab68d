package model

import "time"

// DeviceStats is a row in the `device_stats` table: per-identity activity
// counters keyed by identity hash.  Legacy rows may still be keyed by the
// raw device identifier in the device_id column; reads consult both.
//
// Fields:
//  DeviceHash        – device_stats.device_hash (primary key).
//  DeviceID          – legacy raw identifier (may be empty on new rows).
//  MessagesSent      – vents posted by this identity.
//  RepliesGiven      – supportive responses written.
//  RepliesReceived   – responses received on own vents.
//  Karma             – support score accumulated from reactions.
//  CreatedAt         – first activity under this identity.
//  LastActiveAt      – most recent identified request.
//  LastRepliesSeenAt – when the reply inbox was last viewed.
type DeviceStats struct {
	DeviceHash        string    // device_stats.device_hash
	DeviceID          string    // device_stats.device_id (legacy)
	MessagesSent      int64     // device_stats.messages_sent
	RepliesGiven      int64     // device_stats.replies_given
	RepliesReceived   int64     // device_stats.replies_received
	Karma             int64     // device_stats.karma
	CreatedAt         time.Time // device_stats.created_at
	LastActiveAt      time.Time // device_stats.last_active_at
	LastRepliesSeenAt time.Time // device_stats.last_replies_seen_at
}
