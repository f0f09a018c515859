package adapters

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"trade-gateway/src/logger"
	"trade-gateway/src/managers"
	"trade-gateway/src/models"

	"github.com/nats-io/nats.go"
)

// -----------------------------------------------------------------------------

// NatsFeed is a market-data adapter consuming tick messages from NATS
// subjects and folding them into the snapshot table.
type NatsFeed struct {
	name     string
	url      string
	subjects []string

	mu   sync.Mutex
	conn *nats.Conn
	subs []*nats.Subscription

	marketdata *managers.MarketDataManager
	logger     *logger.Logger
}

// -----------------------------------------------------------------------------

// NewNatsFeed creates the adapter; Connect establishes the stream.
func NewNatsFeed(cfg models.MFeedConfig, marketdata *managers.MarketDataManager, log *logger.Logger) *NatsFeed {
	name := cfg.Name
	if name == "" {
		name = "nats"
	}
	return &NatsFeed{
		name:       name,
		url:        cfg.NatsURL,
		subjects:   cfg.Subjects,
		marketdata: marketdata,
		logger:     log,
	}
}

// -----------------------------------------------------------------------------

// Connect dials the server and subscribes every configured subject.
func (f *NatsFeed) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	conn, err := nats.Connect(f.url,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			f.logger.Warning("%s : disconnected: %v", f.name, err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			f.logger.Info("%s : reconnected", f.name)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", f.url, err)
	}
	f.conn = conn

	f.subs = f.subs[:0]
	for _, subject := range f.subjects {
		sub, err := conn.Subscribe(subject, f.onMessage)
		if err != nil {
			conn.Close()
			f.conn = nil
			return fmt.Errorf("failed to subscribe %s: %w", subject, err)
		}
		f.subs = append(f.subs, sub)
	}

	f.logger.Info("%s : connected to %s (%d subjects)", f.name, f.url, len(f.subjects))
	return nil
}

// -----------------------------------------------------------------------------

func (f *NatsFeed) onMessage(msg *nats.Msg) {
	var tick models.MTick
	if err := json.Unmarshal(msg.Data, &tick); err != nil {
		f.logger.Warning("%s : bad tick on %s: %v", f.name, msg.Subject, err)
		return
	}
	if tick.Tm == 0 {
		tick.Tm = time.Now().Unix()
	}
	f.marketdata.OnTick(&tick)
}

// -----------------------------------------------------------------------------

func (f *NatsFeed) GetName() string {
	return f.name
}

func (f *NatsFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn != nil && f.conn.IsConnected()
}

// Reconnect drops the connection and dials again.
func (f *NatsFeed) Reconnect() {
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.mu.Unlock()
	if err := f.Connect(); err != nil {
		f.logger.Error("%s : reconnect failed: %v", f.name, err)
	}
}

// Disconnect closes the stream.
func (f *NatsFeed) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}
