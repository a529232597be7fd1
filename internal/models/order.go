package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Order statuses used by the checkout and admin flows.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is a placed checkout. Totals are never persisted; reports compute them on read.
type Order struct {
	BaseModel
	Name        string          `json:"name"`
	PhoneNumber string          `json:"phoneNumber"`
	Address     string          `json:"address"`
	Pincode     string          `json:"pincode"`
	Amount      Amount          `json:"amount"`
	PaymentID   string          `json:"paymentId"`
	Email       string          `gorm:"index" json:"email"`
	UserID      string          `gorm:"column:user_id;index" json:"userid"`
	Products    json.RawMessage `gorm:"type:jsonb" json:"products"`
	Status      string          `gorm:"default:pending" json:"status"`
	Date        *time.Time      `gorm:"index" json:"date"`
}

// Amount is the order amount exactly as the client sent it. Checkout clients
// send both JSON numbers and numeric strings, so the raw text is kept.
type Amount string

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// MarshalJSON renders numeric amounts as numbers and anything else as a string.
func (a Amount) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(a))
	if _, err := strconv.ParseFloat(s, 64); err == nil && json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	return json.Marshal(string(a))
}

// Int returns the leading integer of the amount. Surrounding whitespace is
// ignored and parsing stops at the first non-digit, so "12.50" yields 12.
// ok is false when no digits lead the value.
func (a Amount) Int() (value int64, ok bool) {
	s := strings.TrimSpace(string(a))
	negative := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		n = -n
	}
	return n, true
}
