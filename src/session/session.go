package session

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/models"
)

// -----------------------------------------------------------------------------

// Deps bundles the process-wide collaborators a session talks to. They are
// injected capability objects, never ambient globals, so the session engine
// tests against mocks.
type Deps struct {
	Securities interfaces.ISecurityMaster
	Accounts   interfaces.IAccountManager
	MarketData interfaces.IMarketDataManager
	Positions  interfaces.IPositionManager
	Exchange   interfaces.IExchangeConnectivity
	Algos      interfaces.IAlgoManager
	OrderBook  interfaces.IGlobalOrderBook
	Tokens     *TokenRegistry
	Server     interfaces.IServerControl

	AlgoRoot  string // strategy source files
	StoreRoot string // pnl history logs

	StartTime int64

	// Exit terminates the process at the end of an admin shutdown.
	// Defaults to os.Exit; tests replace it.
	Exit func(code int)

	// Sleep paces the shutdown countdown. Defaults to time.Sleep.
	Sleep func(d time.Duration)
}

func (d *Deps) exit(code int) {
	if d.Exit != nil {
		d.Exit(code)
		return
	}
	os.Exit(code)
}

func (d *Deps) sleep(dur time.Duration) {
	if d.Sleep != nil {
		d.Sleep(dur)
		return
	}
	time.Sleep(dur)
}

// -----------------------------------------------------------------------------

// subEntry is one market-data subscription: the session-local last-seen
// snapshot plus its refcount.
type subEntry struct {
	last models.MMarketData
	refs int
}

type pnlPair struct {
	realized   float64
	unrealized float64
}

// Session is the per-connection state machine. Every field below the strand
// is touched only from strand callbacks; the closed flag is the one value
// readable from any goroutine.
type Session struct {
	transport interfaces.ITransport
	deps      *Deps
	logger    *logger.Logger

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	user       *models.MUser
	subs       map[int64]*subEntry
	singlePnls map[models.AcctSec]pnlPair
	pnls       map[int64]pnlPair
	ecs        map[string]bool // exchange connectivity last-seen
	mds        map[string]bool // market-data adapter last-seen
	testTokens map[string]struct{}
	subPnl     bool
	publishing bool
}

// -----------------------------------------------------------------------------

// NewSession binds a session to its transport and starts the strand.
func NewSession(transport interfaces.ITransport, deps *Deps, log *logger.Logger) *Session {
	s := &Session{
		transport:  transport,
		deps:       deps,
		logger:     log,
		tasks:      make(chan func(), 1024),
		done:       make(chan struct{}),
		subs:       make(map[int64]*subEntry),
		singlePnls: make(map[models.AcctSec]pnlPair),
		pnls:       make(map[int64]pnlPair),
		ecs:        make(map[string]bool),
		mds:        make(map[string]bool),
		testTokens: make(map[string]struct{}),
	}
	go s.run()
	return s
}

// run is the strand: callbacks execute one at a time, and the 1 Hz timer
// shares the same serialization.
func (s *Session) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case fn := <-s.tasks:
			fn()
		case <-ticker.C:
			if s.publishing && !s.closed.Load() {
				s.publishTick()
			}
		case <-s.done:
			s.logger.Debug("%s: session destructed", s.transport.RemoteAddress())
			return
		}
	}
}

// post schedules fn on the strand. Blocks the caller when the mailbox is
// full, which back-pressures the transport reader.
func (s *Session) post(fn func()) {
	if s.closed.Load() {
		return
	}
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------

// Close flips the closed flag. In-flight callbacks run to completion and
// become no-ops on their next emission check.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

// Drain blocks until every task queued before the call has run. Stateless
// transports use it to bound a request's reply window.
func (s *Session) Drain() {
	done := make(chan struct{})
	s.post(func() { close(done) })
	select {
	case <-done:
	case <-s.done:
	}
}

// Closed reports whether the session is torn down. Safe from any goroutine.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// User returns the authenticated user, or nil. Strand-only.
func (s *Session) User() *models.MUser {
	return s.user
}

// -----------------------------------------------------------------------------

// send emits one raw text frame unless the session is closed.
func (s *Session) send(text string) {
	if s.closed.Load() {
		return
	}
	s.transport.Send(text)
}

// sendJSON marshals the elements as one array frame and emits it.
func (s *Session) sendJSON(elems ...interface{}) {
	data, err := json.Marshal(elems)
	if err != nil {
		s.logger.Error("%s: failed to encode frame: %v", s.transport.RemoteAddress(), err)
		return
	}
	s.send(string(data))
}
