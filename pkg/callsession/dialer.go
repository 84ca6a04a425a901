package callsession

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultConversationURL is the provider's conversation websocket endpoint.
const DefaultConversationURL = "wss://api.elevenlabs.io"

// WebsocketDialer opens live conversations over the provider's websocket
// transport.
type WebsocketDialer struct {
	BaseURL string
	Dialer  *websocket.Dialer
}

// NewWebsocketDialer creates a dialer against the given base URL (ws:// or
// wss://); empty means the provider default.
func NewWebsocketDialer(baseURL string) *WebsocketDialer {
	if baseURL == "" {
		baseURL = DefaultConversationURL
	}
	return &WebsocketDialer{
		BaseURL: baseURL,
		Dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

// Dial opens a conversation for the given agent. The returned conversation
// starts in the connecting state and becomes connected once the provider
// sends its first event.
func (d *WebsocketDialer) Dial(ctx context.Context, agentID string, opts DialOptions) (Conversation, error) {
	endpoint := fmt.Sprintf("%s/v1/convai/conversation?agent_id=%s", d.BaseURL, url.QueryEscape(agentID))

	conn, _, err := d.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial conversation endpoint: %w", err)
	}

	c := &wsConversation{
		conn:   conn,
		status: ConnectionConnecting,
	}
	go c.readLoop()

	logger.Base().Info("opened live conversation",
		zap.String("agent_id", agentID),
		zap.String("input_device", opts.InputDeviceID),
		zap.String("output_device", opts.OutputDeviceID))
	return c, nil
}

// wsConversation is a live conversation over a websocket. Mute is a local
// send-side gate; it never touches the connection.
type wsConversation struct {
	conn *websocket.Conn

	// writeMutex serializes data writes to the connection; gorilla/websocket
	// supports only one concurrent writer, and audio sends race the read
	// loop's pong replies without it.
	writeMutex sync.Mutex

	mutex  sync.Mutex
	status ConnectionState
	muted  bool
	closed bool
}

type conversationEvent struct {
	Type string `json:"type"`
}

// readLoop consumes provider events until the connection closes. The first
// event marks the conversation connected; any read failure marks it
// disconnected.
func (c *wsConversation) readLoop() {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.mutex.Lock()
			c.status = ConnectionDisconnected
			c.mutex.Unlock()
			return
		}

		var event conversationEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}

		c.mutex.Lock()
		if c.status == ConnectionConnecting {
			c.status = ConnectionConnected
		}
		c.mutex.Unlock()

		if event.Type == "ping" {
			c.writeJSON(map[string]string{"type": "pong"})
		}
	}
}

// SendAudio forwards a captured audio chunk. Muted chunks are dropped on the
// send side so muting does not disturb the connection.
func (c *wsConversation) SendAudio(chunk []byte) error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return fmt.Errorf("conversation closed")
	}
	if c.muted {
		c.mutex.Unlock()
		return nil
	}
	c.mutex.Unlock()

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

func (c *wsConversation) writeJSON(v interface{}) {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.mutex.Unlock()

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		logger.Base().Debug("failed to write conversation message", zap.Error(err))
	}
}

// Status returns the connection state.
func (c *wsConversation) Status() ConnectionState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.status
}

// SetMuted toggles the send-side mute gate.
func (c *wsConversation) SetMuted(muted bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.muted = muted
}

// Muted reports the mute state.
func (c *wsConversation) Muted() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.muted
}

// Close tears the conversation down. Safe to call more than once.
func (c *wsConversation) Close() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil
	}
	c.closed = true
	c.status = ConnectionDisconnected
	c.mutex.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}
