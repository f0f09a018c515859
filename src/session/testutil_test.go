package session

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/models"
)

// -----------------------------------------------------------------------------
// Transport fake
// -----------------------------------------------------------------------------

type fakeTransport struct {
	mu        sync.Mutex
	frames    []string
	stateless bool
}

func (t *fakeTransport) Send(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, text)
}

func (t *fakeTransport) Stateless() bool       { return t.stateless }
func (t *fakeTransport) RemoteAddress() string { return "test:1" }
func (t *fakeTransport) Close()                {}

func (t *fakeTransport) Frames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.frames))
	copy(out, t.frames)
	return out
}

func (t *fakeTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = nil
}

// decodeFrame parses one emitted frame back into its array form.
func decodeFrame(t *testing.T, raw string) []interface{} {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out []interface{}
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("bad frame %q: %v", raw, err)
	}
	return out
}

// -----------------------------------------------------------------------------
// Manager fakes
// -----------------------------------------------------------------------------

type fakeSecurityMaster struct {
	secs map[int64]*models.MSecurity
}

func (m *fakeSecurityMaster) Get(id int64) *models.MSecurity { return m.secs[id] }

func (m *fakeSecurityMaster) Securities() []*models.MSecurity {
	ids := []int64{42, 43, 44}
	var out []*models.MSecurity
	for _, id := range ids {
		if sec, ok := m.secs[id]; ok {
			out = append(out, sec)
		}
	}
	return out
}

func (m *fakeSecurityMaster) CheckSum() string { return "cs-1" }

// -----------------------------------------------------------------------------

type fakeAccounts struct {
	users   map[string]*models.MUser
	subByID map[int64]*models.MSubAccount
	brokers []*models.MBrokerAccount
}

func (m *fakeAccounts) GetUser(name string) *models.MUser { return m.users[name] }

func (m *fakeAccounts) GetSubAccount(id int64) *models.MSubAccount { return m.subByID[id] }

func (m *fakeAccounts) GetSubAccountByName(name string) *models.MSubAccount {
	for _, acc := range m.subByID {
		if acc.Name == name {
			return acc
		}
	}
	return nil
}

func (m *fakeAccounts) Users() []*models.MUser {
	names := []string{"alice", "bob"}
	var out []*models.MUser
	for _, name := range names {
		if u, ok := m.users[name]; ok {
			out = append(out, u)
		}
	}
	return out
}

func (m *fakeAccounts) BrokerAccounts() []*models.MBrokerAccount { return m.brokers }

func (m *fakeAccounts) GetBroker(acc *models.MSubAccount, sec *models.MSecurity) *models.MBrokerAccount {
	if len(m.brokers) == 0 {
		return nil
	}
	return m.brokers[0]
}

// -----------------------------------------------------------------------------

type fakeAdapter struct {
	name       string
	connected  bool
	reconnects int
}

func (a *fakeAdapter) GetName() string { return a.name }
func (a *fakeAdapter) Connected() bool { return a.connected }
func (a *fakeAdapter) Reconnect()      { a.reconnects++ }

// -----------------------------------------------------------------------------

type fakeMarketData struct {
	mu        sync.Mutex
	snapshots map[int64]models.MMarketData
	adapters  []interfaces.IAdapter
}

func (m *fakeMarketData) GetSnapshot(id int64) models.MMarketData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots[id]
}

func (m *fakeMarketData) SetSnapshot(id int64, md models.MMarketData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[id] = md
}

func (m *fakeMarketData) Adapters() []interfaces.IAdapter { return m.adapters }

func (m *fakeMarketData) GetAdapter(name string) interfaces.IAdapter {
	for _, a := range m.adapters {
		if a.GetName() == name {
			return a
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

type fakePositions struct {
	mu        sync.Mutex
	positions map[models.AcctSec]models.MPosition
	pnls      map[int64]models.MPnl
	bods      map[models.AcctSec]models.MBodPosition
}

func (m *fakePositions) SubPositions() map[models.AcctSec]models.MPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[models.AcctSec]models.MPosition, len(m.positions))
	for k, v := range m.positions {
		out[k] = v
	}
	return out
}

func (m *fakePositions) Pnls() map[int64]models.MPnl {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]models.MPnl, len(m.pnls))
	for k, v := range m.pnls {
		out[k] = v
	}
	return out
}

func (m *fakePositions) Bods() map[models.AcctSec]models.MBodPosition { return m.bods }

func (m *fakePositions) Get(acc *models.MSubAccount, sec *models.MSecurity) models.MPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[models.AcctSec{Acct: acc.ID, Sec: sec.ID}]
}

func (m *fakePositions) GetBroker(acc *models.MBrokerAccount, sec *models.MSecurity) models.MPosition {
	return models.MPosition{}
}

func (m *fakePositions) Session() string { return "2026-08-06" }

func (m *fakePositions) SetPosition(acct, sec int64, pos models.MPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[models.AcctSec{Acct: acct, Sec: sec}] = pos
}

func (m *fakePositions) SetPnl(acct int64, pnl models.MPnl) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pnls[acct] = pnl
}

// -----------------------------------------------------------------------------

type fakeExchange struct {
	mu        sync.Mutex
	placed    []*models.MOrder
	cancelled []*models.MOrder
	adapters  []interfaces.IAdapter
}

func (m *fakeExchange) Place(ord *models.MOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, ord)
	return nil
}

func (m *fakeExchange) Cancel(ord *models.MOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, ord)
	return nil
}

func (m *fakeExchange) Adapters() []interfaces.IAdapter { return m.adapters }

func (m *fakeExchange) GetAdapter(name string) interfaces.IAdapter {
	for _, a := range m.adapters {
		if a.GetName() == name {
			return a
		}
	}
	return nil
}

func (m *fakeExchange) Placed() []*models.MOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.MOrder(nil), m.placed...)
}

// -----------------------------------------------------------------------------

type fakeAlgoDef struct {
	name   string
	params []models.MParamDef
}

func (d *fakeAlgoDef) Name() string                  { return d.name }
func (d *fakeAlgoDef) ParamDefs() []models.MParamDef { return d.params }

type fakeAlgoInstance struct {
	id    int64
	token string
	name  string
	user  *models.MUser
}

func (a *fakeAlgoInstance) ID() int64           { return a.id }
func (a *fakeAlgoInstance) Token() string       { return a.token }
func (a *fakeAlgoInstance) Name() string        { return a.name }
func (a *fakeAlgoInstance) User() *models.MUser { return a.user }

type spawnCall struct {
	params models.MParamMap
	name   string
	raw    string
	token  string
}

type fakeAlgos struct {
	mu      sync.Mutex
	defs    []interfaces.IAlgoDef
	live    map[string]*fakeAlgoInstance
	known   map[string]bool
	spawns  []spawnCall
	stopped []string
	records []interfaces.MAlgoRow
}

func (m *fakeAlgos) Spawn(params models.MParamMap, name string, user *models.MUser, raw string, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known[name] {
		return false
	}
	m.spawns = append(m.spawns, spawnCall{params: params, name: name, raw: raw, token: token})
	return true
}

func (m *fakeAlgos) GetByToken(token string) interfaces.IAlgoInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.live[token]; ok {
		return inst
	}
	return nil
}

func (m *fakeAlgos) StopToken(token string) { m.stopped = append(m.stopped, token) }
func (m *fakeAlgos) StopID(id int64)        {}

func (m *fakeAlgos) ModifyToken(token string, params models.MParamMap) {}
func (m *fakeAlgos) ModifyID(id int64, params models.MParamMap)        {}
func (m *fakeAlgos) StopAll()                                          {}

func (m *fakeAlgos) AlgoDefs() []interfaces.IAlgoDef { return m.defs }

func (m *fakeAlgos) LoadStore(seq int64, sink interfaces.IAlgoSink) {
	for _, row := range m.records {
		if row.Seq > seq {
			sink.SendAlgoRecord(row.Seq, row.ID, row.Tm, row.Token, row.Name, row.Status, row.Body, true)
		}
	}
}

// -----------------------------------------------------------------------------

type fakeOrderBook struct {
	mu        sync.Mutex
	orders    map[int64]*models.MOrder
	replayed  []*models.MConfirmation
	cancelAll int
}

func (m *fakeOrderBook) Get(id int64) *models.MOrder { return m.orders[id] }

func (m *fakeOrderBook) LoadStore(seq int64, sink interfaces.IConfirmationSink) {
	for _, cm := range m.replayed {
		if cm.Seq > seq {
			sink.SendConfirmation(cm, true)
		}
	}
}

func (m *fakeOrderBook) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelAll++
}

// -----------------------------------------------------------------------------
// Environment
// -----------------------------------------------------------------------------

type testEnv struct {
	transport  *fakeTransport
	session    *Session
	securities *fakeSecurityMaster
	accounts   *fakeAccounts
	marketdata *fakeMarketData
	positions  *fakePositions
	exchange   *fakeExchange
	algos      *fakeAlgos
	book       *fakeOrderBook
	deps       *Deps

	alice *models.MUser
	bob   *models.MUser
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	main := &models.MSubAccount{ID: 7, Name: "main"}
	acct8 := &models.MSubAccount{ID: 8, Name: "acct8"}
	alice := &models.MUser{
		ID: 1, Name: "alice", Password: Sha1Hex("secret"),
		SubAccounts: map[int64]*models.MSubAccount{7: main},
	}
	bob := &models.MUser{
		ID: 2, Name: "bob", Password: Sha1Hex("admin"), Admin: true,
		SubAccounts: map[int64]*models.MSubAccount{7: main, 8: acct8},
	}

	env := &testEnv{
		transport: &fakeTransport{},
		securities: &fakeSecurityMaster{secs: map[int64]*models.MSecurity{
			42: {ID: 42, Symbol: "AAPL", Exchange: "NASDAQ", Type: "STK", LotSize: 100, Multiplier: 1, ClosePrice: 101, Currency: "USD"},
			43: {ID: 43, Symbol: "MSFT", Exchange: "NASDAQ", Type: "STK", LotSize: 100, Multiplier: 1, ClosePrice: 280.5, Currency: "USD"},
			44: {ID: 44, Symbol: "IBM", Exchange: "NYSE", Type: "STK", LotSize: 100, Multiplier: 1, ClosePrice: 135.2, Currency: "USD"},
		}},
		accounts: &fakeAccounts{
			users:   map[string]*models.MUser{"alice": alice, "bob": bob},
			subByID: map[int64]*models.MSubAccount{7: main, 8: acct8},
			brokers: []*models.MBrokerAccount{{ID: 1, Name: "prime-nasdaq"}},
		},
		marketdata: &fakeMarketData{snapshots: make(map[int64]models.MMarketData)},
		positions: &fakePositions{
			positions: make(map[models.AcctSec]models.MPosition),
			pnls:      make(map[int64]models.MPnl),
			bods:      make(map[models.AcctSec]models.MBodPosition),
		},
		exchange: &fakeExchange{},
		algos:    &fakeAlgos{live: make(map[string]*fakeAlgoInstance), known: map[string]bool{"TWAP": true, "POV": true}},
		book:     &fakeOrderBook{orders: make(map[int64]*models.MOrder)},
		alice:    alice,
		bob:      bob,
	}

	env.deps = &Deps{
		Securities: env.securities,
		Accounts:   env.accounts,
		MarketData: env.marketdata,
		Positions:  env.positions,
		Exchange:   env.exchange,
		Algos:      env.algos,
		OrderBook:  env.book,
		Tokens:     NewTokenRegistry(),
		AlgoRoot:   t.TempDir(),
		StoreRoot:  t.TempDir(),
		StartTime:  time.Now().Unix(),
		Sleep:      func(time.Duration) {},
		Exit:       func(int) {},
	}
	env.session = NewSession(env.transport, env.deps, logger.NewLogger("ERROR", "test"))
	t.Cleanup(env.session.Close)
	return env
}

// dispatch runs one frame on the strand and waits for it to finish.
func (e *testEnv) dispatch(msg string) {
	e.session.OnMessageAsync(msg, "")
	e.session.Drain()
}

// dispatchToken runs one frame with an accompanying session token.
func (e *testEnv) dispatchToken(msg, token string) {
	e.session.OnMessageAsync(msg, token)
	e.session.Drain()
}

// login authenticates the session as the given user over the stateful path.
// The timer-driven publisher is disarmed so tests drive publishes manually.
func (e *testEnv) login(t *testing.T, name, password string) {
	t.Helper()
	e.dispatch(`["login","` + name + `","` + password + `"]`)
	if e.session.User() == nil {
		t.Fatalf("login as %s failed: %v", name, e.transport.Frames())
	}
	e.session.post(func() { e.session.publishing = false })
	e.session.Drain()
	e.transport.Reset()
}

// publish runs one publisher pass on the strand.
func (e *testEnv) publish() {
	e.session.post(func() { e.session.publishTick() })
	e.session.Drain()
}
