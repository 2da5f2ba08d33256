package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 form used for Transaction.Date (UTC, milliseconds).
const DateLayout = "2006-01-02T15:04:05.000Z"

const maxTitleLength = 200

type (
	// ID identifies a transaction. Locally it is a millisecond timestamp;
	// remote endpoints may hand back their own numbering, possibly as strings.
	ID int64

	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}

	Transaction struct {
		ID       ID        `json:"id"`
		Title    string    `json:"title"`
		Amount   float64   `json:"amount"`
		Date     string    `json:"date"`
		Receipt  *string   `json:"receipt"`
		IsSynced bool      `json:"isSynced,omitempty"`
		Location *Location `json:"location,omitempty"`
	}

	// Draft carries the user-supplied part of a new transaction.
	Draft struct {
		Title    string
		Amount   float64
		Receipt  string
		Location *Location
	}
)

var (
	ErrInvalidID      = errors.New("invalid id")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyTitle     = errors.New("empty title")
	ErrTitleTooLong   = errors.New("title too long (max 200 characters)")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidLatLong = errors.New("invalid location")
)

// ParseID parses a decimal transaction id.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(v), nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UnmarshalJSON accepts both 123 and "123".
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseID(s)
		if err != nil {
			return err
		}
		*id = v
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, string(b))
	}
	*id = ID(v)
	return nil
}

func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return ErrInvalidLatLong
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidLatLong
	}
	return nil
}

func validateAmount(a float64) error {
	if math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateTitle(t string) error {
	if len(strings.TrimSpace(t)) == 0 {
		return ErrEmptyTitle
	}
	if len(t) > maxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func (d Draft) Validate() error {
	if err := validateTitle(d.Title); err != nil {
		return err
	}
	if err := validateAmount(d.Amount); err != nil {
		return err
	}
	if d.Location != nil {
		if err := d.Location.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a complete record. A zero ID is allowed; the store assigns one.
func (t Transaction) Validate() error {
	if t.ID < 0 {
		return ErrInvalidID
	}
	if err := validateTitle(t.Title); err != nil {
		return err
	}
	if err := validateAmount(t.Amount); err != nil {
		return err
	}
	if t.Date != "" {
		if _, err := time.Parse(time.RFC3339, t.Date); err != nil {
			return ErrInvalidDate
		}
	}
	if t.Location != nil {
		if err := t.Location.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// HasReceipt reports whether a photo is attached.
func (t Transaction) HasReceipt() bool {
	return t.Receipt != nil && *t.Receipt != ""
}

// Time parses Date. The zero time is returned for malformed values.
func (t Transaction) Time() time.Time {
	ts, err := time.Parse(time.RFC3339, t.Date)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// FormatDate renders a timestamp the way Transaction.Date stores it.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// NewTransaction builds a record from a draft, stamping id and creation date.
func NewTransaction(d Draft, id ID, at time.Time) (Transaction, error) {
	d.Title = strings.TrimSpace(d.Title)
	if err := d.Validate(); err != nil {
		return Transaction{}, err
	}
	tx := Transaction{
		ID:     id,
		Title:  d.Title,
		Amount: d.Amount,
		Date:   FormatDate(at),
	}
	if r := strings.TrimSpace(d.Receipt); r != "" {
		tx.Receipt = &r
	}
	if d.Location != nil {
		loc := *d.Location
		tx.Location = &loc
	}
	return tx, nil
}
