package lrclib

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(Config{BaseURL: server.URL})
	c.backoff = time.Millisecond
	return c
}

func TestClient_Get(t *testing.T) {
	tests := []struct {
		name       string
		sig        Signature
		statusCode int
		response   string
		wantQuery  map[string]string
		wantErr    error
		wantSynced string
	}{
		{
			name:       "found",
			sig:        Signature{Track: "Yesterday", Artist: "The Beatles", Album: "Help!", Duration: 125500 * time.Millisecond},
			statusCode: http.StatusOK,
			response:   `{"id":42,"trackName":"Yesterday","artistName":"The Beatles","duration":125,"syncedLyrics":"[00:01.00]Yesterday"}`,
			wantQuery: map[string]string{
				"track_name":  "Yesterday",
				"artist_name": "The Beatles",
				"album_name":  "Help!",
				"duration":    "125",
			},
			wantSynced: "[00:01.00]Yesterday",
		},
		{
			name:       "optional fields omitted",
			sig:        Signature{Track: "Song", Artist: "Band"},
			statusCode: http.StatusOK,
			response:   `{"id":1,"plainLyrics":"words"}`,
			wantQuery: map[string]string{
				"track_name":  "Song",
				"artist_name": "Band",
				"album_name":  "",
				"duration":    "",
			},
		},
		{
			name:       "not found",
			sig:        Signature{Track: "Missing", Artist: "Nobody"},
			statusCode: http.StatusNotFound,
			response:   `{"code":404,"name":"TrackNotFound","message":"Failed to find specified track"}`,
			wantErr:    ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/get" {
					t.Errorf("path = %s, want /api/get", r.URL.Path)
				}
				if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
					t.Errorf("User-Agent = %q", ua)
				}
				for k, v := range tt.wantQuery {
					if got := r.URL.Query().Get(k); got != v {
						t.Errorf("query %s = %q, want %q", k, got, v)
					}
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.response))
			})

			rec, err := c.Get(context.Background(), tt.sig)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if rec.SyncedLyrics != tt.wantSynced {
				t.Errorf("SyncedLyrics = %q, want %q", rec.SyncedLyrics, tt.wantSynced)
			}
			if rec.HasSynced() != (tt.wantSynced != "") {
				t.Errorf("HasSynced() = %v", rec.HasSynced())
			}
		})
	}
}

func TestClient_GetRequiresTrack(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := c.Get(context.Background(), Signature{Artist: "x"}); err == nil {
		t.Error("expected error for empty track")
	}
}

func TestClient_GetByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get/1234" {
			t.Errorf("path = %s, want /api/get/1234", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":1234,"syncedLyrics":"[00:02.00]hi"}`))
	})

	rec, err := c.GetByID(context.Background(), 1234)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.ID != 1234 || rec.SyncedLyrics != "[00:02.00]hi" {
		t.Errorf("record = %+v", rec)
	}
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "yesterday beatles" {
			t.Errorf("q = %q", q)
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"trackName":"Yesterday","artistName":"The Beatles","syncedLyrics":"[00:01.00]a"},
			{"id":2,"trackName":"Yesterday (Live)","artistName":"The Beatles","plainLyrics":"a"}
		]`))
	})

	records, err := c.Search(context.Background(), Query{Q: "yesterday beatles"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if !records[0].HasSynced() || records[1].HasSynced() {
		t.Errorf("HasSynced mismatch: %+v", records)
	}
}

func TestClient_SearchRequiresQuery(t *testing.T) {
	c := NewClient(Config{})
	if _, err := c.Search(context.Background(), Query{Artist: "x"}); err == nil {
		t.Error("expected error without query or track")
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"syncedLyrics":"[00:01.00]ok"}`))
	})

	rec, err := c.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.ID != 7 {
		t.Errorf("ID = %d, want 7", rec.ID)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"name":"ValidationError","message":"bad input"}`))
	})

	_, err := c.GetByID(context.Background(), 1)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Temporary() {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !strings.Contains(apiErr.Error(), "bad input") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.GetByID(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestError_Temporary(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tt := range tests {
		e := &Error{StatusCode: tt.code}
		if got := e.Temporary(); got != tt.want {
			t.Errorf("Error{%d}.Temporary() = %v, want %v", tt.code, got, tt.want)
		}
	}
}
