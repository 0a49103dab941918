package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"termwatch/internal/logging"
	"termwatch/internal/terminal"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout     = 10 * time.Second
	wsHandshakeTimeout = 15 * time.Second
)

// Dialer abstracts websocket dialing so tests can substitute a fake.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Client dials the gateway for one terminal and pumps inbound frames into
// the owner's handlers. It holds no connection state between Connect calls;
// the supervisor owns the retry policy.
type Client struct {
	endpoint    Endpoint
	identity    terminal.Identity
	credentials terminal.Credentials
	dialer      Dialer
	logger      *logging.Logger
}

func NewClient(endpoint Endpoint, identity terminal.Identity, credentials terminal.Credentials, logger *logging.Logger) *Client {
	return &Client{
		endpoint:    endpoint,
		identity:    identity,
		credentials: credentials,
		dialer:      websocket.DefaultDialer,
		logger:      logger,
	}
}

// SetDialer overrides the websocket dialer. Test use.
func (client *Client) SetDialer(dialer Dialer) {
	if client == nil || dialer == nil {
		return
	}
	client.dialer = dialer
}

// MaskedURL is the loggable form of this client's connection target.
func (client *Client) MaskedURL() string {
	return client.endpoint.MaskedURL(client.identity)
}

// Connect establishes the event stream and blocks until it drops or ctx is
// cancelled. OnConnect fires after a successful handshake; OnDisconnect fires
// exactly once on every exit path after that point. The socket is always
// closed before Connect returns.
//
// The return value is nil when the remote closed the stream normally,
// ctx.Err() on cancellation, and the transport error otherwise.
func (client *Client) Connect(ctx context.Context, handlers Handlers) error {
	connectURL, err := client.endpoint.ConnectURL(client.identity, client.credentials)
	if err != nil {
		return err
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, wsHandshakeTimeout)
	defer cancelDial()
	conn, response, err := client.dialer.DialContext(dialCtx, connectURL, nil)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	writeMu := &sync.Mutex{}
	conn.SetPingHandler(func(appData string) error {
		client.logKeepAlive("ping received")
		writeMu.Lock()
		defer writeMu.Unlock()
		deadline := time.Now().Add(wsWriteTimeout)
		return conn.WriteControl(websocket.PongMessage, []byte(appData), deadline)
	})
	conn.SetPongHandler(func(string) error {
		client.logKeepAlive("pong received")
		return nil
	})

	if handlers.OnConnect != nil {
		handlers.OnConnect()
	}
	defer func() {
		if handlers.OnDisconnect != nil {
			handlers.OnDisconnect()
		}
	}()

	readDone := make(chan error, 1)
	go func() {
		readDone <- client.readLoop(conn, handlers)
	}()

	select {
	case <-ctx.Done():
		// Closing the socket unblocks the read loop; drain it so no
		// goroutine outlives the call.
		conn.Close()
		<-readDone
		return ctx.Err()
	case err := <-readDone:
		return err
	}
}

func (client *Client) readLoop(conn *websocket.Conn, handlers Handlers) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		name, payload := decodeFrame(data)
		handlers.dispatch(name, payload)
	}
}

func (client *Client) logKeepAlive(message string) {
	if client.logger == nil {
		return
	}
	client.logger.Debug(message, nil)
}
