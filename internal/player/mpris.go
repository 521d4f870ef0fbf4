package player

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
)

// MPRIS reads any MPRIS-compatible player over the D-Bus session bus
type MPRIS struct {
	bus     *dbus.Conn
	service string // Fixed service name, or empty to discover
}

// NewMPRIS connects to the session bus. An empty service picks the first
// player found on each poll, preferring Spotify.
func NewMPRIS(service string) (*MPRIS, error) {
	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	if service != "" && !strings.HasPrefix(service, mprisPrefix) {
		service = mprisPrefix + service
	}
	return &MPRIS{bus: bus, service: service}, nil
}

// Close releases the bus connection
func (m *MPRIS) Close() error {
	return m.bus.Close()
}

// Name implements Connector
func (m *MPRIS) Name() string {
	return "mpris"
}

// Players lists the MPRIS services on the bus
func (m *MPRIS) Players(ctx context.Context) ([]string, error) {
	var names []string
	if err := m.bus.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list dbus names: %w", err)
	}
	return filterPlayers(names), nil
}

// filterPlayers keeps MPRIS names, Spotify first, then alphabetical
func filterPlayers(names []string) []string {
	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	sort.SliceStable(players, func(i, j int) bool {
		si := strings.Contains(strings.ToLower(players[i]), "spotify")
		sj := strings.Contains(strings.ToLower(players[j]), "spotify")
		if si != sj {
			return si
		}
		return players[i] < players[j]
	})
	return players
}

func (m *MPRIS) target(ctx context.Context) (string, error) {
	if m.service != "" {
		return m.service, nil
	}
	players, err := m.Players(ctx)
	if err != nil {
		return "", err
	}
	if len(players) == 0 {
		return "", nil
	}
	return players[0], nil
}

// GetState implements Connector
func (m *MPRIS) GetState(ctx context.Context) (Snapshot, error) {
	service, err := m.target(ctx)
	if err != nil {
		return Snapshot{State: StateError}, err
	}
	if service == "" {
		return Snapshot{State: StateStopped}, nil
	}

	obj := m.bus.Object(service, mprisPath)

	status, err := obj.GetProperty(mprisPlayerIface + ".PlaybackStatus")
	if err != nil {
		if serviceGone(err) {
			return Snapshot{State: StateStopped}, nil
		}
		return Snapshot{State: StateError}, fmt.Errorf("failed to get playback status: %w", err)
	}
	metadata, err := obj.GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return Snapshot{State: StateError}, fmt.Errorf("failed to get metadata property: %w", err)
	}

	// Some players do not implement Position
	var position interface{}
	if pos, err := obj.GetProperty(mprisPlayerIface + ".Position"); err == nil {
		position = pos.Value()
	}

	meta, _ := metadata.Value().(map[string]dbus.Variant)
	statusStr, _ := status.Value().(string)
	return snapshotFromMPRIS(statusStr, meta, position), nil
}

// snapshotFromMPRIS builds a Snapshot from raw MPRIS properties
func snapshotFromMPRIS(status string, metadata map[string]dbus.Variant, position interface{}) Snapshot {
	var state PlayState
	switch status {
	case "Playing":
		state = StatePlaying
	case "Paused":
		state = StatePaused
	default:
		return Snapshot{State: StateStopped}
	}

	track := Track{
		Title:    metadataString(metadata, "xesam:title"),
		Artist:   metadataArtist(metadata, "xesam:artist"),
		Album:    metadataString(metadata, "xesam:album"),
		Duration: microseconds(metadataValue(metadata, "mpris:length")),
	}
	if track.Title == "" {
		return Snapshot{State: StateStopped}
	}

	snap := Snapshot{State: state, Track: track}
	if position != nil {
		snap.Position = microseconds(position)
		snap.HasPosition = true
	}
	return snap
}

func metadataValue(metadata map[string]dbus.Variant, key string) interface{} {
	if metadata == nil {
		return nil
	}
	v, ok := metadata[key]
	if !ok {
		return nil
	}
	return v.Value()
}

func metadataString(metadata map[string]dbus.Variant, key string) string {
	s, _ := metadataValue(metadata, key).(string)
	return strings.TrimSpace(s)
}

func metadataArtist(metadata map[string]dbus.Variant, key string) string {
	switch v := metadataValue(metadata, key).(type) {
	case []string:
		return strings.Join(v, ", ")
	case string:
		return v
	default:
		return ""
	}
}

// microseconds converts an MPRIS time value, clamping negatives to zero
func microseconds(v interface{}) time.Duration {
	var us int64
	switch n := v.(type) {
	case int64:
		us = n
	case uint64:
		us = int64(n)
	case int32:
		us = int64(n)
	case uint32:
		us = int64(n)
	case float64:
		us = int64(n)
	}
	if us < 0 {
		return 0
	}
	return time.Duration(us) * time.Microsecond
}

// serviceGone reports whether err means the player has left the bus
func serviceGone(err error) bool {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name == "org.freedesktop.DBus.Error.ServiceUnknown" ||
			dbusErr.Name == "org.freedesktop.DBus.Error.NameHasNoOwner"
	}
	return false
}

func (m *MPRIS) call(ctx context.Context, method string) error {
	service, err := m.target(ctx)
	if err != nil {
		return err
	}
	if service == "" {
		return fmt.Errorf("no mpris player found")
	}
	if err := m.bus.Object(service, mprisPath).CallWithContext(ctx, mprisPlayerIface+"."+method, 0).Err; err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	return nil
}

// PlayPause toggles playback
func (m *MPRIS) PlayPause(ctx context.Context) error {
	return m.call(ctx, "PlayPause")
}

// Next skips to the next track
func (m *MPRIS) Next(ctx context.Context) error {
	return m.call(ctx, "Next")
}

// Previous goes back to the previous track
func (m *MPRIS) Previous(ctx context.Context) error {
	return m.call(ctx, "Previous")
}
