package models

import "time"

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusAccepted SubmissionStatus = "accepted"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Submission is a proof of completion posted against a task.
type Submission struct {
	ID            string
	TaskID        string
	SubmitterID   string
	SubmitterName string
	ImageRef      string
	Note          *string
	Status        SubmissionStatus
	SubmittedAt   time.Time
	ReviewedAt    *time.Time
}

// SettlementTarget is the locked view of a submission and its task read at
// the start of a settlement.
type SettlementTarget struct {
	SubmissionID     string
	SubmissionStatus SubmissionStatus
	SubmitterID      string
	TaskID           string
	TaskStatus       TaskStatus
	CreatorID        string
	BountyAmount     int64
}

// Settlement describes a committed bounty transfer.
type Settlement struct {
	SubmissionID     string
	TaskID           string
	CreatorID        string
	SubmitterID      string
	Bounty           int64
	BaseReward       int64
	CreatorBalance   int64
	SubmitterBalance int64
}

// Transferred is the total amount credited to the submitter.
func (s *Settlement) Transferred() int64 {
	return s.Bounty + s.BaseReward
}
