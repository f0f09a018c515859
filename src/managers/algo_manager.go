package managers

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/models"
)

// -----------------------------------------------------------------------------

// AlgoDef is one registered strategy definition.
type AlgoDef struct {
	AlgoName string
	Params   []models.MParamDef
}

func (d *AlgoDef) Name() string                  { return d.AlgoName }
func (d *AlgoDef) ParamDefs() []models.MParamDef { return d.Params }

// -----------------------------------------------------------------------------

// algoInstance is one live strategy.
type algoInstance struct {
	id    int64
	token string
	name  string
	user  *models.MUser
	test  bool
}

func (a *algoInstance) ID() int64           { return a.id }
func (a *algoInstance) Token() string       { return a.token }
func (a *algoInstance) Name() string        { return a.name }
func (a *algoInstance) User() *models.MUser { return a.user }

// -----------------------------------------------------------------------------

// AlgoManager owns strategy definitions and live instances, persists status
// records and pushes updates to the owning sessions.
type AlgoManager struct {
	mu      sync.RWMutex
	defs    map[string]*AlgoDef
	byToken map[string]*algoInstance
	byID    map[int64]*algoInstance

	nextID atomic.Int64
	seq    atomic.Int64
	store  interfaces.IStore

	listenerMu sync.RWMutex
	listeners  map[interfaces.ISessionEvents]struct{}

	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAlgoManager(store interfaces.IStore, log *logger.Logger) (*AlgoManager, error) {
	m := &AlgoManager{
		defs:      make(map[string]*AlgoDef),
		byToken:   make(map[string]*algoInstance),
		byID:      make(map[int64]*algoInstance),
		store:     store,
		listeners: make(map[interfaces.ISessionEvents]struct{}),
		logger:    log,
	}
	if store != nil {
		_, algoSeq, err := store.MaxSeqs()
		if err != nil {
			return nil, err
		}
		m.seq.Store(algoSeq)
	}
	return m, nil
}

// -----------------------------------------------------------------------------

// RegisterDef adds a strategy definition.
func (m *AlgoManager) RegisterDef(def *AlgoDef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.AlgoName] = def
}

func (m *AlgoManager) AlgoDefs() []interfaces.IAlgoDef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]interfaces.IAlgoDef, 0, len(m.defs))
	for _, def := range m.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// -----------------------------------------------------------------------------

func (m *AlgoManager) AttachListener(l interfaces.ISessionEvents) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listeners[l] = struct{}{}
}

func (m *AlgoManager) DetachListener(l interfaces.ISessionEvents) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	delete(m.listeners, l)
}

// -----------------------------------------------------------------------------

// Spawn starts an instance; false means the strategy name is unknown. A nil
// params map marks a test run, whose output frames route only to the session
// owning the token.
func (m *AlgoManager) Spawn(params models.MParamMap, name string, user *models.MUser,
	rawParams string, token string) bool {
	m.mu.Lock()
	if _, ok := m.defs[name]; !ok {
		m.mu.Unlock()
		return false
	}
	inst := &algoInstance{
		id:    m.nextID.Add(1),
		token: token,
		name:  name,
		user:  user,
		test:  params == nil,
	}
	if token != "" {
		m.byToken[token] = inst
	}
	m.byID[inst.id] = inst
	m.mu.Unlock()

	m.publish(inst, "started", rawParams)
	if inst.test {
		m.broadcastTest(token, "test run of "+name+" started", false)
	}
	return true
}

// -----------------------------------------------------------------------------

func (m *AlgoManager) GetByToken(token string) interfaces.IAlgoInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if inst, ok := m.byToken[token]; ok {
		return inst
	}
	return nil
}

// -----------------------------------------------------------------------------

func (m *AlgoManager) StopToken(token string) {
	m.mu.Lock()
	inst := m.byToken[token]
	if inst != nil {
		delete(m.byToken, token)
		delete(m.byID, inst.id)
	}
	m.mu.Unlock()
	m.stopInstance(inst)
}

func (m *AlgoManager) StopID(id int64) {
	m.mu.Lock()
	inst := m.byID[id]
	if inst != nil {
		delete(m.byID, id)
		if inst.token != "" {
			delete(m.byToken, inst.token)
		}
	}
	m.mu.Unlock()
	m.stopInstance(inst)
}

// StopAll halts every live instance; used by the shutdown path.
func (m *AlgoManager) StopAll() {
	m.mu.Lock()
	instances := make([]*algoInstance, 0, len(m.byID))
	for _, inst := range m.byID {
		instances = append(instances, inst)
	}
	m.byID = make(map[int64]*algoInstance)
	m.byToken = make(map[string]*algoInstance)
	m.mu.Unlock()
	for _, inst := range instances {
		m.stopInstance(inst)
	}
}

func (m *AlgoManager) stopInstance(inst *algoInstance) {
	if inst == nil {
		return
	}
	m.publish(inst, "stopped", "")
	if inst.test {
		m.broadcastTest(inst.token, "test run of "+inst.name+" stopped", true)
	}
}

// -----------------------------------------------------------------------------

func (m *AlgoManager) ModifyToken(token string, params models.MParamMap) {
	m.mu.RLock()
	inst := m.byToken[token]
	m.mu.RUnlock()
	if inst != nil {
		m.publish(inst, "modified", "")
	}
}

func (m *AlgoManager) ModifyID(id int64, params models.MParamMap) {
	m.mu.RLock()
	inst := m.byID[id]
	m.mu.RUnlock()
	if inst != nil {
		m.publish(inst, "modified", "")
	}
}

// -----------------------------------------------------------------------------

// publish persists one status record and pushes it to the owner's sessions.
func (m *AlgoManager) publish(inst *algoInstance, status, body string) {
	seq := m.seq.Add(1)
	if m.store != nil {
		row := &interfaces.MAlgoRow{
			Seq:    seq,
			ID:     inst.id,
			Tm:     time.Now().Unix(),
			Token:  inst.token,
			Name:   inst.name,
			Status: status,
			Body:   body,
		}
		if err := m.store.SaveAlgoRecord(row); err != nil {
			m.logger.Error("failed to persist algo record %d: %v", seq, err)
		}
	}
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	for l := range m.listeners {
		l.OnAlgoUpdate(inst, status, body, seq)
	}
}

func (m *AlgoManager) broadcastTest(token, msg string, stopped bool) {
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	for l := range m.listeners {
		l.SendTestMsg(token, msg, stopped)
	}
}

// -----------------------------------------------------------------------------

// LoadStore replays persisted algo records with seq greater than the cursor.
func (m *AlgoManager) LoadStore(seq int64, sink interfaces.IAlgoSink) {
	if m.store == nil {
		return
	}
	err := m.store.ReplayAlgoRecords(seq, func(row *interfaces.MAlgoRow) {
		sink.SendAlgoRecord(row.Seq, row.ID, row.Tm, row.Token, row.Name, row.Status, row.Body, true)
	})
	if err != nil {
		m.logger.Error("algo replay from %d failed: %v", seq, err)
	}
}
