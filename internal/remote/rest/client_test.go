package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"moneytrack/internal/core"
	"moneytrack/internal/remote"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/money/", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "ftp://example.com"}); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}
	c, err := New(Options{})
	if err != nil {
		t.Fatalf("default url: %v", err)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("expected default base url, got %s", c.BaseURL())
	}
}

func TestListSendsPagination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/money" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"7","title":"Food","amount":10,"date":"2024-01-01T00:00:00.000Z","receipt":null}]`)
	})

	got, err := c.List(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != 7 || got[0].Title != "Food" || got[0].HasReceipt() {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestListPastEndIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `"Not found"`, http.StatusNotFound)
	})
	got, err := c.List(context.Background(), 9, 10)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty page, got %v (err=%v)", got, err)
	}
}

func TestListServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	if _, err := c.List(context.Background(), 1, 10); !errors.Is(err, remote.ErrUnexpectedCode) {
		t.Fatalf("expected ErrUnexpectedCode, got %v", err)
	}
}

func TestCreateReturnsServerCopy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var in core.Transaction
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode body: %v", err)
		}
		in.Title = strings.ToUpper(in.Title)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(in)
	})

	tx := core.Transaction{ID: 100, Title: "gas", Amount: 20, Date: "2024-01-01T00:00:00.000Z"}
	got, err := c.Create(context.Background(), tx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.ID != 100 || got.Title != "GAS" || !got.IsSynced {
		t.Fatalf("expected synced server copy, got %+v", got)
	}
}

func TestCreateKeepsLocalIDWhenServerOmitsIt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"title":"x","amount":1}`)
	})
	got, err := c.Create(context.Background(), core.Transaction{ID: 5, Title: "x", Amount: 1})
	if err != nil || got.ID != 5 {
		t.Fatalf("expected local id preserved, got %+v (err=%v)", got, err)
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"ok", http.StatusOK, nil},
		{"missing", http.StatusNotFound, remote.ErrNotFound},
		{"server error", http.StatusBadGateway, remote.ErrUnexpectedCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete || r.URL.Path != "/money/42" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
			})
			err := c.Delete(context.Background(), 42)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Create(context.Background(), core.Transaction{ID: 1, Title: "x", Amount: 1}); err == nil {
		t.Fatalf("expected network error")
	}
}
