package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateBooking = "booking"

	TypeBookingCreated       = "booking.created.v1"
	TypeBookingStatusChanged = "booking.status_changed.v1"
	TypeBookingDeleted       = "booking.deleted.v1"
)

// BookingPayload is the JSON body shared by every booking event.
type BookingPayload struct {
	BookingID      string              `json:"booking_id"`
	Date           string              `json:"date"`
	TimeSlot       string              `json:"time_slot"`
	Status         model.BookingStatus `json:"status"`
	PreviousStatus model.BookingStatus `json:"previous_status,omitempty"`
	CustomerEmail  string              `json:"customer_email"`
	OfferingType   model.OfferingType  `json:"offering_type"`
	OfferingName   string              `json:"offering_name,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b model.Booking, previous model.BookingStatus, at time.Time) (Event, error) {
	payload, err := json.Marshal(BookingPayload{
		BookingID:      b.ID,
		Date:           b.Date,
		TimeSlot:       b.TimeSlot,
		Status:         b.Status,
		PreviousStatus: previous,
		CustomerEmail:  b.CustomerEmail,
		OfferingType:   b.OfferingType,
		OfferingName:   b.OfferingName,
		OccurredAt:     at.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateBooking,
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
