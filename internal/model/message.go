package model

import "time"

// Message statuses as stored in messages.status.
const (
	MessageStatusPending  = "PENDING"
	MessageStatusApproved = "APPROVED"
	MessageStatusRejected = "REJECTED"
	MessageStatusRemoved  = "REMOVED"
)

// Message is a row in the `messages` table: a short anonymous vent
// describing the author's emotional state.  Ownership is keyed by the
// author's identity hash; rows written before the hashing scheme may carry
// only the raw identifier in device_id.
//
// Fields:
//  ID         – messages.id (uuid).
//  DeviceHash – identity hash of the author (current scheme).
//  DeviceID   – legacy raw identifier (empty on new rows).
//  Feeling    – one-word emotional state label chosen by the author.
//  Body       – the vent text.
//  Status     – moderation status (PENDING/APPROVED/REJECTED/REMOVED).
//  CreatedAt  – timestamp of creation.
type Message struct {
	ID         string    // messages.id
	DeviceHash string    // messages.device_hash
	DeviceID   string    // messages.device_id (legacy)
	Feeling    string    // messages.feeling
	Body       string    // messages.body
	Status     string    // messages.status
	CreatedAt  time.Time // messages.created_at
}

// Response is a row in the `responses` table: supportive text left on a
// message by another identity.
//
// Fields:
//  ID         – responses.id (uuid).
//  MessageID  – message being responded to.
//  DeviceHash – identity hash of the responder.
//  DeviceID   – legacy raw identifier (empty on new rows).
//  Body       – the supportive text.
//  CreatedAt  – timestamp of creation.
type Response struct {
	ID         string    // responses.id
	MessageID  string    // responses.message_id
	DeviceHash string    // responses.device_hash
	DeviceID   string    // responses.device_id (legacy)
	Body       string    // responses.body
	CreatedAt  time.Time // responses.created_at
}
