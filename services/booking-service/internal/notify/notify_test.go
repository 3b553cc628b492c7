package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

type fakeSender struct {
	err   error
	delay time.Duration
	sent  []*gomail.Message
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.sent = append(f.sent, m...)
	return f.err
}

func booking() model.Booking {
	return model.Booking{
		ID:            "b-1",
		Date:          "2025-06-02",
		TimeSlot:      "09:00",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		OfferingType:  model.OfferingService,
		OfferingName:  "Haircut",
	}
}

func TestBookingConfirmedSendsMessage(t *testing.T) {
	fake := &fakeSender{}
	n := &SMTPNotifier{from: "desk@example.com", timeout: time.Second, dialer: fake}

	require.NoError(t, n.BookingConfirmed(context.Background(), booking()))
	require.Len(t, fake.sent, 1)

	msg := fake.sent[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Booking confirmed for 2025-06-02 at 09:00"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Haircut")
}

func TestBookingConfirmedPropagatesFailure(t *testing.T) {
	fake := &fakeSender{err: errors.New("connection refused")}
	n := &SMTPNotifier{from: "desk@example.com", timeout: time.Second, dialer: fake}

	err := n.BookingConfirmed(context.Background(), booking())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBookingConfirmedTimesOut(t *testing.T) {
	fake := &fakeSender{delay: 200 * time.Millisecond}
	n := &SMTPNotifier{from: "desk@example.com", timeout: 10 * time.Millisecond, dialer: fake}

	err := n.BookingConfirmed(context.Background(), booking())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBookingConfirmedRequiresEmail(t *testing.T) {
	n := &SMTPNotifier{from: "desk@example.com", timeout: time.Second, dialer: &fakeSender{}}
	b := booking()
	b.CustomerEmail = ""
	assert.Error(t, n.BookingConfirmed(context.Background(), b))
}

func TestNewSMTPNotifierRequiresHost(t *testing.T) {
	_, err := NewSMTPNotifier(SMTPConfig{})
	assert.Error(t, err)

	n, err := NewSMTPNotifier(SMTPConfig{Host: "localhost"})
	require.NoError(t, err)
	assert.Equal(t, "no-reply@slotledger.local", n.from)
}
