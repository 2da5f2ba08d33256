package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"moneytrack/internal/core"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

var errBadRequest = errors.New("bad request")

// transactionRequest is the POST body. Amount may be a JSON number or a
// numeric string such as "12,50".
type transactionRequest struct {
	Title    string          `json:"title"`
	Amount   json.RawMessage `json:"amount"`
	Receipt  *string         `json:"receipt"`
	Location *core.Location  `json:"location"`
}

// parsePagination reads page and limit, defaulting to 1 and 20.
func parsePagination(q url.Values) (page, limit int, err error) {
	page, err = intParam(q, "page", defaultPage)
	if err != nil {
		return 0, 0, err
	}
	limit, err = intParam(q, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit > maxLimit {
		return 0, 0, fmt.Errorf("%w: limit must be at most %d", errBadRequest, maxLimit)
	}
	return page, limit, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}

// decodeDraft parses a transactionRequest body into a draft. Only syntax is
// checked here; the store validates the values.
func decodeDraft(w http.ResponseWriter, r *http.Request) (core.Draft, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	var req transactionRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.Draft{}, fmt.Errorf("%w: body larger than %d bytes", errBadRequest, tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return core.Draft{}, fmt.Errorf("%w: empty body", errBadRequest)
		}
		return core.Draft{}, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}

	d := core.Draft{
		Title:    sanitizeInput(req.Title),
		Location: req.Location,
	}
	if req.Receipt != nil {
		d.Receipt = strings.TrimSpace(*req.Receipt)
	}
	if len(req.Amount) > 0 && string(req.Amount) != "null" {
		amount, err := parseAmountField(req.Amount)
		if err != nil {
			return core.Draft{}, err
		}
		d.Amount = amount
	}
	return d, nil
}

func parseAmountField(raw json.RawMessage) (float64, error) {
	text := string(raw)
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, core.ErrInvalidAmount
		}
	}
	return core.ParseAmount(text)
}

// sanitizeInput drops control characters and surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
}

var validationErrors = []error{
	core.ErrInvalidAmount, core.ErrEmptyTitle, core.ErrTitleTooLong,
	core.ErrInvalidDate, core.ErrInvalidLatLong, core.ErrInvalidID,
}

// validationCause returns the validation error wrapped in err, or nil.
func validationCause(err error) error {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}
