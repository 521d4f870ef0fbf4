package discord

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Discord IPC opcodes.
const (
	opHandshake = 0
	opFrame     = 1
	opClose     = 2
)

// maxFrame bounds the payload size accepted from the socket
const maxFrame = 1 << 20

// Activity is the Rich Presence payload.
type Activity struct {
	Type       int         `json:"type,omitempty"`
	Name       string      `json:"name,omitempty"`
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Instance   bool        `json:"instance"`
}

type Timestamps struct {
	Start *int64 `json:"start,omitempty"`
	End   *int64 `json:"end,omitempty"`
}

type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// ipcClient speaks the Discord local RPC protocol over a socket
type ipcClient struct {
	conn io.ReadWriteCloser
	pid  int
}

func ipcConnect(appID string) (*ipcClient, error) {
	conn, err := dialSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to dial discord socket: %w", err)
	}
	c := newIPCClient(conn)
	if err := c.handshake(appID); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func newIPCClient(conn io.ReadWriteCloser) *ipcClient {
	return &ipcClient{conn: conn, pid: os.Getpid()}
}

func (c *ipcClient) handshake(appID string) error {
	payload, err := json.Marshal(map[string]any{
		"v":         1,
		"client_id": appID,
	})
	if err != nil {
		return err
	}
	if err := c.writeFrame(opHandshake, payload); err != nil {
		return fmt.Errorf("failed to write handshake: %w", err)
	}

	op, data, err := c.readFrame()
	if err != nil {
		return fmt.Errorf("failed to read handshake: %w", err)
	}
	if op == opClose {
		return fmt.Errorf("discord rejected handshake: %s", data)
	}
	return nil
}

// socketDirs lists where Discord places its IPC sockets, including the
// sandboxed flatpak and snap locations.
func socketDirs() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if d := os.Getenv(env); d != "" {
			dirs = append(dirs, d)
			if env == "XDG_RUNTIME_DIR" {
				dirs = append(dirs,
					filepath.Join(d, "app", "com.discordapp.Discord"),
					filepath.Join(d, "snap.discord"),
				)
			}
		}
	}
	return append(dirs, os.TempDir(), "/tmp")
}

func dialSocket() (net.Conn, error) {
	lastErr := errors.New("no socket directories")
	for _, dir := range socketDirs() {
		for i := 0; i <= 9; i++ {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			conn, err := net.DialTimeout("unix", path, 2*time.Second)
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
	}
	return nil, fmt.Errorf("no discord socket found: %w", lastErr)
}

func (c *ipcClient) SetActivity(a Activity) error {
	args := map[string]any{"pid": c.pid}
	// A nil activity clears the presence
	if a != (Activity{}) {
		args["activity"] = a
	}

	payload, err := json.Marshal(map[string]any{
		"cmd":   "SET_ACTIVITY",
		"args":  args,
		"nonce": nonce(),
	})
	if err != nil {
		return err
	}
	if err := c.writeFrame(opFrame, payload); err != nil {
		return err
	}

	op, data, err := c.readFrame()
	if err != nil {
		return err
	}
	if op == opClose {
		return fmt.Errorf("discord closed the connection: %s", data)
	}

	var resp struct {
		Evt  string `json:"evt"`
		Data struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Evt == "ERROR" {
		return fmt.Errorf("discord error %d: %s", resp.Data.Code, resp.Data.Message)
	}
	return nil
}

func (c *ipcClient) Close() error {
	_ = c.writeFrame(opClose, []byte("{}"))
	return c.conn.Close()
}

// writeFrame sends a Discord IPC frame: [opcode LE u32][length LE u32][payload].
func (c *ipcClient) writeFrame(opcode uint32, payload []byte) error {
	frame := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], opcode)
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[8:], payload)
	_, err := c.conn.Write(frame)
	return err
}

// readFrame reads one frame, sized by its header.
func (c *ipcClient) readFrame() (uint32, []byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return 0, nil, err
	}
	opcode := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > maxFrame {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return 0, nil, err
	}
	return opcode, payload, nil
}

func nonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
