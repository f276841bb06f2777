package model

import (
	"strconv"
	"time"
)

type Status string

const (
	StatusPaymentPending Status = "payment_pending"
	StatusPaymentSuccess Status = "payment_success"
	StatusPaymentFailed  Status = "payment_failed"
	StatusCancelled      Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPaymentPending: {StatusPaymentSuccess, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:  {StatusPaymentPending},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPaymentPending, StatusPaymentSuccess, StatusPaymentFailed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusPaymentSuccess || s == StatusCancelled
}

// CanTransitionTo reports whether next may follow s. Staying put is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type Schedule struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	Address         string `json:"address"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

type BirthTime struct {
	Hours   int    `json:"hours"`
	Minutes int    `json:"minutes"`
	Period  string `json:"period"`
}

type BirthDetails struct {
	Date  string    `json:"date"`
	Time  BirthTime `json:"time"`
	Place string    `json:"place"`
}

type PaymentDetails struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Signature string `json:"signature,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Provider  string `json:"provider,omitempty"`
}

type BookingRecord struct {
	Token        string          `json:"token"`
	BookingID    string          `json:"bookingId"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	PaidAt       *time.Time      `json:"paidAt,omitempty"`
	Contact      Contact         `json:"contact"`
	Service      string          `json:"service"`
	ServiceLabel string          `json:"serviceLabel"`
	Schedule     Schedule        `json:"schedule"`
	BirthDetails *BirthDetails   `json:"birthDetails,omitempty"`
	Amount       int64           `json:"amount"`
	Payment      *PaymentDetails `json:"payment,omitempty"`
	FailureCount int             `json:"failureCount,omitempty"`
}

// NewRecord is what a caller supplies to create a booking. Token, status and timestamps are assigned by the store.
type NewRecord struct {
	Contact      Contact
	Service      string
	ServiceLabel string
	Schedule     Schedule
	BirthDetails *BirthDetails
	Amount       int64
}

// BookingIDFor derives the human-facing booking id from the creation instant.
func BookingIDFor(createdAt time.Time) string {
	return "BK" + strconv.FormatInt(createdAt.UnixMilli(), 10)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status       *Status
	PaidAt       *time.Time
	Payment      *PaymentDetails
	Contact      *Contact
	Schedule     *Schedule
	BirthDetails *BirthDetails
	FailureCount *int
}

// Apply shallow-merges p into rec and returns the result. rec itself is not modified.
func (p Patch) Apply(rec BookingRecord) BookingRecord {
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.PaidAt != nil {
		t := *p.PaidAt
		rec.PaidAt = &t
	}
	if p.Payment != nil {
		pd := *p.Payment
		rec.Payment = &pd
	}
	if p.Contact != nil {
		rec.Contact = *p.Contact
	}
	if p.Schedule != nil {
		rec.Schedule = *p.Schedule
	}
	if p.BirthDetails != nil {
		bd := *p.BirthDetails
		rec.BirthDetails = &bd
	}
	if p.FailureCount != nil {
		rec.FailureCount = *p.FailureCount
	}
	return rec
}

func StatusPtr(s Status) *Status { return &s }

// Summary is the flattened view handed to notification channels.
type Summary struct {
	Token        string `json:"token"`
	BookingID    string `json:"bookingId"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	ServiceLabel string `json:"serviceLabel"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Address      string `json:"address"`
	Amount       int64  `json:"amount"`
	PaymentID    string `json:"paymentId"`
}

func (r BookingRecord) Summary() Summary {
	s := Summary{
		Token:        r.Token,
		BookingID:    r.BookingID,
		Name:         r.Contact.Name,
		Phone:        r.Contact.Phone,
		Email:        r.Contact.Email,
		ServiceLabel: r.ServiceLabel,
		Date:         r.Schedule.Date,
		Time:         r.Schedule.Time,
		Address:      r.Schedule.Address,
		Amount:       r.Amount,
	}
	if r.Payment != nil {
		s.PaymentID = r.Payment.PaymentID
	}
	return s
}
