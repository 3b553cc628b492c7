package model

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

func ParseStatus(raw string) (BookingStatus, error) {
	s := BookingStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Occupies reports whether a booking in this status holds its slot.
func (s BookingStatus) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

type OfferingType string

const (
	OfferingService  OfferingType = "service"
	OfferingProperty OfferingType = "property"
)

// Booking is the rich, customer-facing record. OccupancyID links it to the
// slot occupancy row; it is empty only when that row has gone missing.
type Booking struct {
	ID            string        `json:"id"`
	OccupancyID   string        `json:"occupancy_id,omitempty"`
	Date          string        `json:"date"`
	AnchoredAt    time.Time     `json:"anchored_at"`
	TimeSlot      string        `json:"time_slot"`
	Status        BookingStatus `json:"status"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	OfferingType  OfferingType  `json:"offering_type"`
	OfferingName  string        `json:"offering_name,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Occupancy marks one (date, time slot) as taken while its status occupies.
type Occupancy struct {
	ID        string        `json:"id"`
	Date      string        `json:"date"`
	TimeSlot  string        `json:"time_slot"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

type BookingFilter struct {
	Date   string
	Status BookingStatus
	Limit  int
}

// StatusMismatch is a booking whose occupancy row disagrees with it.
type StatusMismatch struct {
	BookingID       string
	OccupancyID     string
	BookingStatus   BookingStatus
	OccupancyStatus BookingStatus
}
