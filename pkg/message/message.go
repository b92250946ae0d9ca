package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyDelivered    = errors.New("message already delivered")
	ErrDeliveredBeforeSent = errors.New("delivery time precedes send time")
	ErrEmptyID             = errors.New("message ID is empty")
)

// Message is a unit of communication between a sender and a recipient.
//
// Values are treated as immutable; Delivered returns a stamped copy instead of
// mutating the receiver.
type Message struct {
	ID          string
	Content     string
	Sender      string
	Recipient   string
	SentAt      time.Time
	DeliveredAt *time.Time
}

// New creates a message with a fresh ID, sent now.
func New(content, sender, recipient string) Message {
	return Message{
		ID:        uuid.New().String(),
		Content:   content,
		Sender:    sender,
		Recipient: recipient,
		SentAt:    time.Now(),
	}
}

// IsDelivered reports whether the message carries a delivery timestamp.
func (m Message) IsDelivered() bool {
	return m.DeliveredAt != nil
}

// Delivered returns a copy of m stamped as delivered at the given time.
func (m Message) Delivered(at time.Time) (Message, error) {
	if m.DeliveredAt != nil {
		return m, ErrAlreadyDelivered
	}
	if at.Before(m.SentAt) {
		return m, fmt.Errorf("%w: sent %s, delivered %s", ErrDeliveredBeforeSent,
			m.SentAt.Format(time.RFC3339Nano), at.Format(time.RFC3339Nano))
	}
	m.DeliveredAt = &at
	return m, nil
}

// Validate checks the fields required for persistence.
func (m Message) Validate() error {
	if m.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// record is the persisted JSON layout.
type record struct {
	ID                 string   `json:"id"`
	Content            string   `json:"content"`
	Sender             string   `json:"sender"`
	Recipient          string   `json:"recipient"`
	TimestampSent      float64  `json:"timestamp_sent"`
	TimestampDelivered *float64 `json:"timestamp_delivered"`
}

// MarshalJSON encodes timestamps as fractional seconds since the epoch.
func (m Message) MarshalJSON() ([]byte, error) {
	r := record{
		ID:            m.ID,
		Content:       m.Content,
		Sender:        m.Sender,
		Recipient:     m.Recipient,
		TimestampSent: ToEpochSeconds(m.SentAt),
	}
	if m.DeliveredAt != nil {
		ts := ToEpochSeconds(*m.DeliveredAt)
		r.TimestampDelivered = &ts
	}
	return json.Marshal(r)
}

// UnmarshalJSON decodes the layout written by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*m = Message{
		ID:        r.ID,
		Content:   r.Content,
		Sender:    r.Sender,
		Recipient: r.Recipient,
		SentAt:    FromEpochSeconds(r.TimestampSent),
	}
	if r.TimestampDelivered != nil {
		at := FromEpochSeconds(*r.TimestampDelivered)
		m.DeliveredAt = &at
	}
	return nil
}

// ToEpochSeconds converts t to fractional seconds since the Unix epoch.
func ToEpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpochSeconds is the inverse of ToEpochSeconds, at microsecond precision.
func FromEpochSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond))
}
