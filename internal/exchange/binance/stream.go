package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/northbeck/papertrade/internal/core"
)

const (
	wsBaseURL = "wss://stream.binance.com:9443"

	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 20 * time.Second
)

// Stream delivers live ticker updates over the Binance miniTicker
// websocket. It is an optional fast path for the live loop; polling
// through GetTicker remains the fallback.
type Stream struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	tickers chan core.Ticker
	errs    chan error
	done    chan struct{}
	once    sync.Once
}

// NewStream creates a combined miniTicker stream for the given symbols.
func NewStream(symbols []string, logger *zap.Logger) *Stream {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@miniTicker")
	}
	url := fmt.Sprintf("%s/stream?streams=%s", wsBaseURL, strings.Join(streams, "/"))
	return newStream(url, logger)
}

// NewStreamWithURL creates a stream against a custom endpoint (for testing)
func NewStreamWithURL(url string, logger *zap.Logger) *Stream {
	return newStream(url, logger)
}

func newStream(url string, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		url:     url,
		logger:  logger,
		tickers: make(chan core.Ticker, 256),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Connect dials the stream and starts the read and ping pumps.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return core.WrapError(core.ErrMarketData, fmt.Errorf("dialing stream: %w", err))
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("ticker stream connected", zap.String("url", s.url))

	go s.readPump(ctx)
	go s.pingPump(ctx)
	return nil
}

// Tickers returns the channel of parsed ticker events. The channel is
// closed when the stream ends.
func (s *Stream) Tickers() <-chan core.Ticker {
	return s.tickers
}

// Err reports the first stream failure, if any.
func (s *Stream) Err() <-chan error {
	return s.errs
}

// Close stops the pumps and closes the connection.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
	return nil
}

func (s *Stream) readPump(ctx context.Context) {
	defer close(s.tickers)
	defer s.conn.Close()

	s.conn.SetReadLimit(1 << 20)
	s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
			_, message, err := s.conn.ReadMessage()
			if err != nil {
				select {
				case s.errs <- err:
				default:
				}
				return
			}
			s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

			ticker, ok := parseMiniTicker(message)
			if !ok {
				continue
			}
			select {
			case s.tickers <- ticker:
			default:
				// Consumer is lagging; the next event supersedes this one
			}
		}
	}
}

func (s *Stream) pingPump(ctx context.Context) {
	t := time.NewTicker(wsPingInterval)
	defer t.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()

			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func parseMiniTicker(raw []byte) (core.Ticker, bool) {
	var event miniTickerEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return core.Ticker{}, false
	}

	data := event.Data
	if data.Symbol == "" {
		// Single-stream payloads arrive without the combined envelope
		if err := json.Unmarshal(raw, &data); err != nil || data.Symbol == "" {
			return core.Ticker{}, false
		}
	}

	last, _ := strconv.ParseFloat(data.Close, 64)
	high, _ := strconv.ParseFloat(data.High, 64)
	low, _ := strconv.ParseFloat(data.Low, 64)
	volume, _ := strconv.ParseFloat(data.Volume, 64)

	return core.Ticker{
		Symbol: data.Symbol,
		Last:   last,
		High:   high,
		Low:    low,
		Volume: volume,
		Time:   time.UnixMilli(data.EventTime),
	}, true
}

// Binance websocket payload types
type miniTickerEvent struct {
	Stream string         `json:"stream"`
	Data   miniTickerData `json:"data"`
}

type miniTickerData struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
}
