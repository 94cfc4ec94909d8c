package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	streamTradeUpdates  = "trade_updates"
	streamAuthorization = "authorization"
	streamListening     = "listening"
)

// Trade update events of interest.
const (
	TradeEventFill     = "fill"
	TradeEventCanceled = "canceled"
	TradeEventExpired  = "expired"
	TradeEventRejected = "rejected"
)

// TradeUpdate is one event of the trade_updates stream.
type TradeUpdate struct {
	Event     string           `json:"event"`
	Price     *decimal.Decimal `json:"price"`
	Qty       *decimal.Decimal `json:"qty"`
	Timestamp *time.Time       `json:"timestamp"`
	Order     Order            `json:"order"`
}

type streamMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type authData struct {
	Status string `json:"status"`
	Action string `json:"action"`
}

// StreamClient listens to order lifecycle events for one account.
type StreamClient struct {
	creds  Credentials
	dialer websocket.Dialer
}

func NewStreamClient(creds Credentials) *StreamClient {
	if creds.StreamURL == "" {
		creds.StreamURL = GetConfig().StreamURL
	}
	return &StreamClient{
		creds: creds,
		dialer: websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
			Proxy:            http.ProxyFromEnvironment,
		},
	}
}

// Run authenticates, subscribes to trade updates and calls handle for each
// event until ctx is done or the connection drops. Handler errors are logged
// and do not stop the stream.
func (s *StreamClient) Run(ctx context.Context, handle func(context.Context, TradeUpdate) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := s.dialer.DialContext(ctx, s.creds.StreamURL, nil)
	if err != nil {
		return unavailable("stream dial", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if err := s.authenticate(conn); err != nil {
		return err
	}

	listen := map[string]interface{}{
		"action": "listen",
		"data":   map[string][]string{"streams": {streamTradeUpdates}},
	}
	if err := conn.WriteJSON(listen); err != nil {
		return fmt.Errorf("stream listen: %w", err)
	}

	logger.WithField("component", "alpaca_stream").Info("listening to trade updates")

	for {
		msg, err := readMessage(conn)
		if errors.Is(err, errBadFrame) {
			logger.WithError(err).Warn("skipping frame")
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return unavailable("stream read", err)
		}

		switch msg.Stream {
		case streamTradeUpdates:
			var update TradeUpdate
			if err := json.Unmarshal(msg.Data, &update); err != nil {
				logger.WithError(err).Warn("stream: bad trade update payload")
				continue
			}
			if err := handle(ctx, update); err != nil {
				logger.WithFields(map[string]interface{}{
					"component": "alpaca_stream",
					"event":     update.Event,
					"order_id":  update.Order.ID,
				}).WithError(err).Error("trade update handler failed")
			}
		case streamListening:
			logger.WithField("component", "alpaca_stream").Debug("subscription confirmed")
		}
	}
}

func (s *StreamClient) authenticate(conn *websocket.Conn) error {
	auth := map[string]string{
		"action": "auth",
		"key":    s.creds.KeyID,
		"secret": s.creds.Secret,
	}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("stream auth: %w", err)
	}

	msg, err := readMessage(conn)
	if err != nil {
		return unavailable("stream auth", err)
	}
	if msg.Stream != streamAuthorization {
		return fmt.Errorf("stream auth: unexpected stream %q", msg.Stream)
	}

	var data authData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return fmt.Errorf("stream auth: %w", err)
	}
	if data.Status != "authorized" {
		return errors.New("stream auth: not authorized")
	}
	return nil
}

var errBadFrame = errors.New("stream: undecodable frame")

// readMessage reads one frame and decodes its stream envelope. A frame that
// is not an envelope yields errBadFrame and leaves the connection usable.
func readMessage(conn *websocket.Conn) (*streamMessage, error) {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadFrame, err)
	}
	return &msg, nil
}
