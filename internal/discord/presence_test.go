package discord

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/lyricsync/internal/daemon"
	"github.com/jfmyers9/lyricsync/internal/player"
	"github.com/jfmyers9/lyricsync/internal/session"
)

type fakeRPC struct {
	activities []Activity
	closed     bool
	failNext   error
}

func (f *fakeRPC) SetActivity(a Activity) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeRPC) Close() error {
	f.closed = true
	return nil
}

// newTestPresence returns a presence with a controllable clock and no
// artwork lookups.
func newTestPresence() (*Presence, *fakeRPC, *time.Time) {
	fake := &fakeRPC{}
	now := time.Unix(1_700_000_000, 0)
	p := &Presence{
		appID:  "test",
		logger: zerolog.Nop(),
		connect: func(string) (rpcClient, error) {
			return fake, nil
		},
		now:         func() time.Time { return now },
		minInterval: 4 * time.Second,
	}
	return p, fake, &now
}

func playingView(title, line string) daemon.View {
	return daemon.View{
		Track: session.Track{
			Title: title, Artist: "Artist", Album: "Album",
			DurationMs: 180000,
		},
		State:      session.StateReady,
		PlayState:  player.StatePlaying,
		Line:       line,
		PositionMs: 30000,
	}
}

func TestDedup_SkipsDuplicateUpdates(t *testing.T) {
	p, fake, _ := newTestPresence()
	v := playingView("Song", "hello")

	p.handleView(context.Background(), v)
	p.handleView(context.Background(), v)
	p.handleView(context.Background(), v)

	if len(fake.activities) != 1 {
		t.Fatalf("expected 1 SetActivity call, got %d", len(fake.activities))
	}
}

func TestDedup_SendsOnTrackChange(t *testing.T) {
	p, fake, _ := newTestPresence()

	p.handleView(context.Background(), playingView("Song A", "a"))
	p.handleView(context.Background(), playingView("Song B", "b"))

	if len(fake.activities) != 2 {
		t.Fatalf("expected 2 SetActivity calls, got %d", len(fake.activities))
	}
	if got := fake.activities[1].State; got != "Song B by Artist" {
		t.Errorf("second activity state = %q, want %q", got, "Song B by Artist")
	}
}

func TestLineChangesAreRateLimited(t *testing.T) {
	p, fake, now := newTestPresence()

	p.handleView(context.Background(), playingView("Song", "one"))
	*now = now.Add(time.Second)
	p.handleView(context.Background(), playingView("Song", "two"))

	if len(fake.activities) != 1 {
		t.Fatalf("expected rate limited update, got %d calls", len(fake.activities))
	}
	if p.pending == nil || p.pending.Line != "two" {
		t.Fatalf("expected pending line %q, got %+v", "two", p.pending)
	}

	*now = now.Add(4 * time.Second)
	p.handleView(context.Background(), *p.pending)

	if len(fake.activities) != 2 {
		t.Fatalf("expected pending update to be sent, got %d calls", len(fake.activities))
	}
	if got := fake.activities[1].Details; got != "two" {
		t.Errorf("details = %q, want %q", got, "two")
	}
	if p.pending != nil {
		t.Error("expected pending to be cleared")
	}
}

func TestClearsOnPause(t *testing.T) {
	p, fake, _ := newTestPresence()

	p.handleView(context.Background(), playingView("Song", "line"))
	paused := playingView("Song", "line")
	paused.PlayState = player.StatePaused
	p.handleView(context.Background(), paused)

	if len(fake.activities) != 2 {
		t.Fatalf("expected 2 SetActivity calls, got %d", len(fake.activities))
	}
	if fake.activities[1] != (Activity{}) {
		t.Errorf("clear activity should be empty, got %+v", fake.activities[1])
	}
}

func TestNoClearWhenAlreadyStopped(t *testing.T) {
	p, fake, _ := newTestPresence()

	p.handleView(context.Background(), daemon.View{})
	p.handleView(context.Background(), daemon.View{PlayState: player.StatePaused})

	if len(fake.activities) != 0 {
		t.Fatalf("expected 0 SetActivity calls, got %d", len(fake.activities))
	}
}

func TestReconnectsAfterError(t *testing.T) {
	connectCount := 0
	fake := &fakeRPC{}
	p, _, _ := newTestPresence()
	p.connect = func(string) (rpcClient, error) {
		connectCount++
		fake = &fakeRPC{}
		return fake, nil
	}

	v := playingView("Song", "line")
	p.handleView(context.Background(), v)
	if connectCount != 1 {
		t.Fatalf("expected 1 connect, got %d", connectCount)
	}

	fake.failNext = errors.New("broken pipe")
	p.last = shown{}
	p.handleView(context.Background(), v)

	p.handleView(context.Background(), v)
	if connectCount != 2 {
		t.Fatalf("expected 2 connects after error, got %d", connectCount)
	}
}

func TestConnectFailureRetriesLater(t *testing.T) {
	p, fake, _ := newTestPresence()
	fail := true
	p.connect = func(string) (rpcClient, error) {
		if fail {
			return nil, errors.New("no socket")
		}
		return fake, nil
	}

	v := playingView("Song", "line")
	p.handleView(context.Background(), v)
	if len(fake.activities) != 0 {
		t.Fatal("expected no activity while Discord is unavailable")
	}

	fail = false
	p.handleView(context.Background(), v)
	if len(fake.activities) != 1 {
		t.Fatalf("expected activity after reconnect, got %d", len(fake.activities))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	p, fake, _ := newTestPresence()
	p.client = fake

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan daemon.Event, 1)
	done := make(chan struct{})

	go func() {
		p.Run(ctx, events)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancel")
	}

	if !fake.closed {
		t.Error("expected client to be closed on context cancel")
	}
}

func TestRunAppliesEvents(t *testing.T) {
	p, fake, _ := newTestPresence()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan daemon.Event, 2)
	events <- daemon.Event{Kind: daemon.EventResults, View: playingView("Ignored", "x")}
	events <- daemon.Event{Kind: daemon.EventLine, View: playingView("Song", "first")}
	close(events)

	p.Run(ctx, events)

	if len(fake.activities) != 1 || fake.activities[0].Details != "first" {
		t.Errorf("activities = %+v", fake.activities)
	}
	if !fake.closed {
		t.Error("expected client to be closed when events end")
	}
}

func TestActivityFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encodeArtwork(w, "https://example.com/art/100x100bb.jpg")
	}))
	defer srv.Close()

	p, fake, now := newTestPresence()
	p.artwork = newArtworkLookup()
	p.artwork.endpoint = srv.URL

	v := playingView("Bohemian Rhapsody", "Is this the real life?")
	v.Track.Artist = "Queen"
	v.Track.Album = "A Night at the Opera"
	p.handleView(context.Background(), v)

	if len(fake.activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(fake.activities))
	}
	a := fake.activities[0]
	if a.Type != 2 {
		t.Errorf("type = %d, want 2 (Listening)", a.Type)
	}
	if a.Details != "Is this the real life?" {
		t.Errorf("details = %q", a.Details)
	}
	if a.State != "Bohemian Rhapsody by Queen" {
		t.Errorf("state = %q", a.State)
	}
	if a.Assets == nil || a.Assets.LargeText != "A Night at the Opera" {
		t.Fatalf("assets = %+v", a.Assets)
	}
	if a.Assets.LargeImage != "https://example.com/art/600x600bb.jpg" {
		t.Errorf("large_image = %q, want artwork URL", a.Assets.LargeImage)
	}
	if a.Timestamps == nil || a.Timestamps.Start == nil || a.Timestamps.End == nil {
		t.Fatal("expected timestamps with start and end")
	}
	wantStart := now.Add(-30 * time.Second).UnixMilli()
	if *a.Timestamps.Start != wantStart {
		t.Errorf("start = %d, want %d", *a.Timestamps.Start, wantStart)
	}
	if *a.Timestamps.End-*a.Timestamps.Start != 180000 {
		t.Errorf("end - start = %d, want 180000", *a.Timestamps.End-*a.Timestamps.Start)
	}
}

func TestActivity_PlaceholderBeforeFirstLine(t *testing.T) {
	p, fake, _ := newTestPresence()
	p.handleView(context.Background(), playingView("Song", ""))

	if len(fake.activities) != 1 || fake.activities[0].Details != "♪" {
		t.Errorf("activities = %+v", fake.activities)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("あ", 130)
	got := truncate(long, 128)
	if n := len([]rune(got)); n != 128 {
		t.Errorf("truncated to %d runes, want 128", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
	if got := truncate("short", 128); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
}
