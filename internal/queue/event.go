// Package queue defines message payloads exchanged over the message broker.
package queue

// JourneyMergedEvent is published when a device attaches to an existing
// journey and its history is folded into the primary identity. Downstream
// consumers (analytics, anomaly detection) get enough context to act
// without querying the primary database.
type JourneyMergedEvent struct {
	JourneyID          string `json:"journey_id"`
	PrimaryDeviceHash  string `json:"primary_device_hash"`
	AttachedDeviceHash string `json:"attached_device_hash"`
	ContentUpdated     int    `json:"content_updated"`
	StatsMerged        bool   `json:"stats_merged"`
	MergeComplete      bool   `json:"merge_complete"`
	MergedAt           string `json:"merged_at"`
}

// MessageCreatedEvent is published when a new support message is accepted.
// The body is intentionally omitted; consumers that need it query by id.
type MessageCreatedEvent struct {
	MessageID  string `json:"message_id"`
	DeviceHash string `json:"device_hash"`
	Feeling    string `json:"feeling"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}
