package models

import "time"

// AvailabilityCandidate is a teacher free to cover a requested slot.
type AvailabilityCandidate struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// AvailabilityQuery asks who is free on Date during [PeriodStart, PeriodEnd).
// Both bounds are canonical "H:MM AM|PM" times.
type AvailabilityQuery struct {
	Date             time.Time
	PeriodStart      string
	PeriodEnd        string
	ExcludeTeacherID string
	Term             Term
}
