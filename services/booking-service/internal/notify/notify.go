package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

// Notifier sends the confirmation for a committed booking. A failure never
// undoes the booking.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b model.Booking) error
}

// Noop drops every notification; it is used when SMTP is not configured.
type Noop struct{}

func (Noop) BookingConfirmed(context.Context, model.Booking) error { return nil }

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier sends plain-text confirmation emails through gomail.
type SMTPNotifier struct {
	from    string
	timeout time.Duration
	dialer  sender
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 25
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = "no-reply@slotledger.local"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPNotifier{
		from:    from,
		timeout: timeout,
		dialer:  gomail.NewDialer(host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

func (n *SMTPNotifier) BookingConfirmed(ctx context.Context, b model.Booking) error {
	if strings.TrimSpace(b.CustomerEmail) == "" {
		return errors.New("booking has no customer email")
	}
	msg := confirmationMessage(n.from, b)

	done := make(chan error, 1)
	go func() {
		done <- n.dialer.DialAndSend(msg)
	}()

	wait := n.timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send confirmation to %s: %w", b.CustomerEmail, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

func confirmationMessage(from string, b model.Booking) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", b.CustomerEmail)
	msg.SetHeader("Subject", "Booking confirmed for "+b.Date+" at "+b.TimeSlot)
	msg.SetBody("text/plain", confirmationBody(b))
	return msg
}

func confirmationBody(b model.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\n", b.CustomerName)
	what := string(b.OfferingType)
	if b.OfferingName != "" {
		what = b.OfferingName
	}
	fmt.Fprintf(&sb, "Your %s booking is confirmed.\n\n", what)
	fmt.Fprintf(&sb, "Date: %s\nTime: %s\nReference: %s\n", b.Date, b.TimeSlot, b.ID)
	if b.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", b.Notes)
	}
	return sb.String()
}
