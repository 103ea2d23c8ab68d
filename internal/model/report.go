package model

import "time"

// Report target types.
const (
	ReportTargetMessage  = "MESSAGE"
	ReportTargetResponse = "RESPONSE"
)

// Report is a row in the `reports` table: an abuse report filed against a
// message or response.  The reporter is recorded by identity hash only.
//
// Fields:
//  ID           – reports.id (uuid).
//  TargetType   – MESSAGE or RESPONSE.
//  TargetID     – id of the reported record.
//  Reason       – free-text reason supplied by the reporter.
//  ReporterHash – identity hash of the reporting device.
//  Resolved     – whether an operator has handled the report.
//  CreatedAt    – timestamp of creation.
type Report struct {
	ID           string    // reports.id
	TargetType   string    // reports.target_type
	TargetID     string    // reports.target_id
	Reason       string    // reports.reason
	ReporterHash string    // reports.reporter_hash
	Resolved     bool      // reports.resolved
	CreatedAt    time.Time // reports.created_at
}
