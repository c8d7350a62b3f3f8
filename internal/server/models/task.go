package models

import "time"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusActive, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// Task is a location-tagged job backed by a coin bounty.
type Task struct {
	ID                 string
	CreatorID          string
	CreatorName        string
	Title              string
	Description        string
	Label              string
	CompletionCriteria string
	BountyAmount       int64
	Latitude           float64
	Longitude          float64
	LocationName       *string
	Status             TaskStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TaskPatch enumerates the fields a creator may change on an active task.
// Nil fields are left untouched.
type TaskPatch struct {
	Title              *string
	Description        *string
	CompletionCriteria *string
	BountyAmount       *int64
	Label              *string
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.CompletionCriteria == nil &&
		p.BountyAmount == nil && p.Label == nil
}

// Apply copies the set fields of p onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.CompletionCriteria != nil {
		t.CompletionCriteria = *p.CompletionCriteria
	}
	if p.BountyAmount != nil {
		t.BountyAmount = *p.BountyAmount
	}
	if p.Label != nil {
		t.Label = *p.Label
	}
}

// BoundingBox is an inclusive latitude/longitude rectangle in degrees.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}
