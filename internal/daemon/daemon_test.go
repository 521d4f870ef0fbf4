package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/lyricsync/internal/clock"
	"github.com/jfmyers9/lyricsync/internal/lyrics"
	"github.com/jfmyers9/lyricsync/internal/player"
	"github.com/jfmyers9/lyricsync/internal/session"
	"github.com/rs/zerolog"
)

const testLRC = `[00:00.00]one
[00:10.00]two
[00:20.00]three
`

type fakeConnector struct {
	mu   sync.Mutex
	snap player.Snapshot
	err  error
}

func (f *fakeConnector) Name() string { return "fake" }

func (f *fakeConnector) GetState(ctx context.Context) (player.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

func (f *fakeConnector) set(snap player.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
}

type controllingConnector struct {
	fakeConnector
	toggles int
}

func (c *controllingConnector) PlayPause(ctx context.Context) error { c.toggles++; return nil }
func (c *controllingConnector) Next(ctx context.Context) error      { return nil }
func (c *controllingConnector) Previous(ctx context.Context) error  { return nil }

type fakeSource struct {
	content string
}

func (f *fakeSource) Fetch(ctx context.Context, q lyrics.Query) (string, error) {
	if f.content == "" {
		return "", lyrics.ErrNotFound
	}
	return f.content, nil
}

func (f *fakeSource) Search(ctx context.Context, query string) ([]lyrics.Result, error) {
	return []lyrics.Result{{Source: "fake", ID: "fake:1", Title: query}}, nil
}

func (f *fakeSource) Download(ctx context.Context, id string) (string, error) {
	return f.content, nil
}

func newTestDaemon(t *testing.T, conn player.Connector, content string) *Daemon {
	t.Helper()
	sess := session.New(session.Config{
		Source: &fakeSource{content: content},
		Logger: zerolog.Nop(),
	})
	d, err := New(Config{
		MetadataInterval: 10 * time.Millisecond,
		PositionInterval: 5 * time.Millisecond,
		StateFile:        filepath.Join(t.TempDir(), "state.json"),
	}, conn, sess, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return d
}

func playing(title string, pos time.Duration, hasPos bool) player.Snapshot {
	return player.Snapshot{
		State:       player.StatePlaying,
		Track:       player.Track{Title: title, Artist: "Artist", Duration: 3 * time.Minute},
		Position:    pos,
		HasPosition: hasPos,
	}
}

// nextCompletion waits for the session's background load
func nextCompletion(t *testing.T, d *Daemon) session.Completion {
	t.Helper()
	select {
	case c := <-d.session.Completions():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return session.Completion{}
	}
}

func TestHandleSnapshot_ExactPositionLoadsAndLocates(t *testing.T) {
	d := newTestDaemon(t, &fakeConnector{}, testLRC)
	events, unsubscribe := d.Subscribe()
	defer unsubscribe()

	d.handleSnapshot(SnapshotUpdate{Snapshot: playing("Song", 12*time.Second, true)})

	if got := d.session.State(); got != session.StateLoading {
		t.Fatalf("session state = %v, want loading", got)
	}
	if got := d.clock.Tier(); got != clock.TierExact {
		t.Errorf("tier = %v, want exact", got)
	}

	d.handleCompletion(nextCompletion(t, d))

	if got := d.session.State(); got != session.StateReady {
		t.Fatalf("session state = %v, want ready", got)
	}
	if got := d.session.Index(); got != 1 {
		t.Errorf("index = %d, want 1", got)
	}

	var kinds []EventKind
	for len(events) > 0 {
		ev := <-events
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventLyrics {
			if ev.Line != "two" || ev.Next != "three" {
				t.Errorf("lyrics event line/next = %q/%q, want two/three", ev.Line, ev.Next)
			}
			if len(ev.Lines) != 3 {
				t.Errorf("lyrics event has %d lines, want 3", len(ev.Lines))
			}
		}
	}
	want := []EventKind{EventTrack, EventLine, EventLyrics}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}

	np, err := ReadState(d.config.StateFile)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if np.Title != "Song" || np.Lyrics != "ready" || np.Line != "two" {
		t.Errorf("state file = %+v", np)
	}
}

func TestHandleSnapshot_StoppedHaltsClockKeepsTrack(t *testing.T) {
	d := newTestDaemon(t, &fakeConnector{}, testLRC)

	d.handleSnapshot(SnapshotUpdate{Snapshot: playing("Song", 5*time.Second, true)})
	d.handleCompletion(nextCompletion(t, d))

	d.handleSnapshot(SnapshotUpdate{Snapshot: player.Snapshot{State: player.StateStopped}})

	if got := d.clock.Tier(); got != clock.TierNone {
		t.Errorf("tier = %v, want none", got)
	}
	if _, ok := d.clock.Position(); ok {
		t.Error("expected no position after stop")
	}
	if got := d.session.Key().Title; got != "Song" {
		t.Errorf("key title = %q, want Song", got)
	}

	// Same track resuming does not reload
	d.handleSnapshot(SnapshotUpdate{Snapshot: playing("Song", 6*time.Second, true)})
	if got := d.session.State(); got != session.StateReady {
		t.Errorf("session state = %v, want ready", got)
	}
	if got := d.clock.Tier(); got != clock.TierExact {
		t.Errorf("tier = %v, want exact", got)
	}
}

func TestHandleSnapshot_ErrorTreatedAsStopped(t *testing.T) {
	d := newTestDaemon(t, &fakeConnector{}, testLRC)

	d.handleSnapshot(SnapshotUpdate{Snapshot: playing("Song", time.Second, true)})
	d.handleSnapshot(SnapshotUpdate{
		Snapshot: player.Snapshot{State: player.StateError},
		Err:      errors.New("bus gone"),
	})

	if got := d.clock.Tier(); got != clock.TierNone {
		t.Errorf("tier = %v, want none", got)
	}
	if got := d.playState; got != player.StateError {
		t.Errorf("play state = %v, want error", got)
	}
}

func TestHandleSnapshot_EstimatedClock(t *testing.T) {
	d := newTestDaemon(t, &fakeConnector{}, "")

	d.handleSnapshot(SnapshotUpdate{Snapshot: playing("Song", 0, false)})
	if got := d.clock.Tier(); got != clock.TierEstimated {
		t.Fatalf("tier = %v, want estimated", got)
	}
	if !d.clock.Playing() {
		t.Error("expected estimated clock to be running")
	}

	// A window source that loses its title reports paused without a track
	d.handleSnapshot(SnapshotUpdate{Snapshot: player.Snapshot{State: player.StatePaused}})
	if d.clock.Playing() {
		t.Error("expected estimated clock to freeze on pause")
	}
	if got := d.session.Key().Title; got != "Song" {
		t.Errorf("key title = %q, want Song", got)
	}

	d.handleCompletion(nextCompletion(t, d))
	if got := d.session.State(); got != session.StateNoLyricsFound {
		t.Errorf("session state = %v, want no_lyrics", got)
	}
}

func TestHandleSnapshot_StaleCompletionDropped(t *testing.T) {
	d := newTestDaemon(t, &fakeConnector{}, testLRC)

	d.handleSnapshot(SnapshotUpdate{Snapshot: playing("First", time.Second, true)})
	first := nextCompletion(t, d)

	d.handleSnapshot(SnapshotUpdate{Snapshot: playing("Second", time.Second, true)})
	second := nextCompletion(t, d)

	d.handleCompletion(first)
	if got := d.session.State(); got != session.StateLoading {
		t.Fatalf("stale completion changed state to %v", got)
	}

	d.handleCompletion(second)
	if got := d.session.State(); got != session.StateReady {
		t.Errorf("session state = %v, want ready", got)
	}
}

func TestRunContext_EndToEnd(t *testing.T) {
	conn := &fakeConnector{}
	conn.set(playing("Song", 12*time.Second, true))
	d := newTestDaemon(t, conn, testLRC)

	events, unsubscribe := d.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.RunContext(ctx) }()

	deadline := time.After(2 * time.Second)
	for loaded := false; !loaded; {
		select {
		case ev := <-events:
			loaded = ev.Kind == EventLyrics && ev.State == session.StateReady
		case <-deadline:
			t.Fatal("timed out waiting for lyrics")
		}
	}

	if err := d.AdjustSync(ctx, -500); err != nil {
		t.Fatalf("AdjustSync: %v", err)
	}
	v, err := d.View(ctx)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.OffsetMs != -500 {
		t.Errorf("offset = %d, want -500", v.OffsetMs)
	}
	if v.Track.Title != "Song" || v.PlayState != player.StatePlaying {
		t.Errorf("view = %+v", v)
	}

	if err := d.Search(ctx, "song"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	deadline = time.After(2 * time.Second)
	for found := false; !found; {
		select {
		case ev := <-events:
			found = ev.Kind == EventResults && len(ev.Results) == 1
		case <-deadline:
			t.Fatal("timed out waiting for search results")
		}
	}

	if err := d.ProvideLyrics(ctx, "[00:00.00]manual\n"); err != nil {
		t.Fatalf("ProvideLyrics: %v", err)
	}
	v, err = d.View(ctx)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.State != session.StateManualOverride || v.Line != "manual" {
		t.Errorf("after manual lyrics, state=%v line=%q", v.State, v.Line)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("RunContext returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}

	if _, err := d.View(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("View after stop = %v, want ErrNotRunning", err)
	}
	if err := d.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestAdjustSync_WithoutLyricsIgnored(t *testing.T) {
	d := newTestDaemon(t, &fakeConnector{}, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.RunContext(ctx) }()

	if err := d.AdjustSync(ctx, 200); err != nil {
		t.Fatalf("AdjustSync: %v", err)
	}
	v, err := d.View(ctx)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.OffsetMs != 0 {
		t.Errorf("offset = %d, want 0", v.OffsetMs)
	}
}

func TestController(t *testing.T) {
	d := newTestDaemon(t, &fakeConnector{}, "")
	if _, err := d.Controller(); !errors.Is(err, ErrNoController) {
		t.Errorf("Controller err = %v, want ErrNoController", err)
	}

	cc := &controllingConnector{}
	d = newTestDaemon(t, cc, "")
	c, err := d.Controller()
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}
	if err := c.PlayPause(context.Background()); err != nil {
		t.Fatalf("PlayPause: %v", err)
	}
	if cc.toggles != 1 {
		t.Errorf("toggles = %d, want 1", cc.toggles)
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	d := newTestDaemon(t, &fakeConnector{}, "")
	events, unsubscribe := d.Subscribe()
	unsubscribe()
	unsubscribe()

	if _, ok := <-events; ok {
		t.Error("expected closed channel after unsubscribe")
	}

	// Publishing with no subscribers must not block
	d.publish(EventPlayback, false)
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventTrack, "track"},
		{EventLyrics, "lyrics"},
		{EventLine, "line"},
		{EventOffset, "offset"},
		{EventResults, "results"},
		{EventPlayback, "playback"},
		{EventKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("EventKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestGenerateServiceDefinitions(t *testing.T) {
	cfg := ServiceConfig{
		Label:            ServiceLabel,
		BinaryPath:       "/usr/local/bin/lyricsync",
		LogPath:          "/tmp/logs",
		WorkingDirectory: "/tmp",
	}

	plist, err := GeneratePlist(cfg)
	if err != nil {
		t.Fatalf("GeneratePlist: %v", err)
	}
	for _, want := range []string{"<string>com.lyricsync.daemon</string>", "<string>/usr/local/bin/lyricsync</string>", "/tmp/logs/lyricsync.err"} {
		if !strings.Contains(plist, want) {
			t.Errorf("plist missing %q", want)
		}
	}

	unit, err := GenerateSystemdUnit(cfg)
	if err != nil {
		t.Fatalf("GenerateSystemdUnit: %v", err)
	}
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/lyricsync daemon --log-file /tmp/logs/lyricsync.log") {
		t.Errorf("unit missing ExecStart line:\n%s", unit)
	}
}
