package managers

import (
	"sync"
	"time"

	"trade-gateway/src/logger"
	"trade-gateway/src/models"
	"trade-gateway/src/storage"
)

// -----------------------------------------------------------------------------

// PositionManager tracks live positions, per-account PnL totals and the
// beginning-of-day snapshots. Sessions read copies; fills arrive from
// exchange connectivity.
type PositionManager struct {
	mu        sync.RWMutex
	positions map[models.AcctSec]models.MPosition
	pnls      map[int64]models.MPnl
	bods      map[models.AcctSec]models.MBodPosition

	session   string
	storeRoot string
	logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPositionManager(storeRoot string, log *logger.Logger) *PositionManager {
	return &PositionManager{
		positions: make(map[models.AcctSec]models.MPosition),
		pnls:      make(map[int64]models.MPnl),
		bods:      make(map[models.AcctSec]models.MBodPosition),
		session:   time.Now().Format("2006-01-02"),
		storeRoot: storeRoot,
		logger:    log,
	}
}

// -----------------------------------------------------------------------------

func (m *PositionManager) Session() string {
	return m.session
}

func (m *PositionManager) SubPositions() map[models.AcctSec]models.MPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.AcctSec]models.MPosition, len(m.positions))
	for k, v := range m.positions {
		out[k] = v
	}
	return out
}

func (m *PositionManager) Pnls() map[int64]models.MPnl {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]models.MPnl, len(m.pnls))
	for k, v := range m.pnls {
		out[k] = v
	}
	return out
}

func (m *PositionManager) Bods() map[models.AcctSec]models.MBodPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.AcctSec]models.MBodPosition, len(m.bods))
	for k, v := range m.bods {
		out[k] = v
	}
	return out
}

func (m *PositionManager) Get(acc *models.MSubAccount, sec *models.MSecurity) models.MPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[models.AcctSec{Acct: acc.ID, Sec: sec.ID}]
}

// GetBroker returns the broker-account view. Broker-level books collapse
// onto the sub-account book here; the split only matters once multiple
// sub-accounts share one broker route.
func (m *PositionManager) GetBroker(acc *models.MBrokerAccount, sec *models.MSecurity) models.MPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[models.AcctSec{Acct: acc.ID, Sec: sec.ID}]
}

// -----------------------------------------------------------------------------

// SetBod seeds a beginning-of-day snapshot and the opening position.
func (m *PositionManager) SetBod(acct, sec int64, bod models.MBodPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bods[models.AcctSec{Acct: acct, Sec: sec}] = bod
	pos := m.positions[models.AcctSec{Acct: acct, Sec: sec}]
	pos.Qty = bod.Qty
	pos.AvgPx = bod.AvgPx
	pos.RealizedPnl = bod.RealizedPnl
	pos.BrokerAccountID = bod.BrokerAccountID
	pos.Tm = bod.Tm
	m.positions[models.AcctSec{Acct: acct, Sec: sec}] = pos
}

// -----------------------------------------------------------------------------

// ApplyFill folds one execution into the (account, security) book and the
// account totals, and appends the account's PnL history line.
func (m *PositionManager) ApplyFill(acct, sec int64, side models.OrderSide, qty, px float64, brokerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.AcctSec{Acct: acct, Sec: sec}
	pos := m.positions[key]
	signed := qty
	if side != models.SideBuy {
		signed = -qty
	}
	if side == models.SideBuy {
		pos.TotalBoughtQty += qty
	} else {
		pos.TotalSoldQty += qty
	}

	if pos.Qty != 0 && (pos.Qty > 0) != (signed > 0) {
		// closing against the average entry realizes pnl
		closed := qty
		if closed > absFloat(pos.Qty) {
			closed = absFloat(pos.Qty)
		}
		direction := 1.0
		if pos.Qty < 0 {
			direction = -1
		}
		pos.RealizedPnl += (px - pos.AvgPx) * closed * direction
	}

	newQty := pos.Qty + signed
	if newQty != 0 && (pos.Qty >= 0) == (signed >= 0) {
		pos.AvgPx = (pos.AvgPx*absFloat(pos.Qty) + px*qty) / absFloat(newQty)
	} else if newQty != 0 && absFloat(signed) > absFloat(pos.Qty) {
		pos.AvgPx = px
	}
	pos.Qty = newQty
	pos.BrokerAccountID = brokerID
	pos.Tm = time.Now().Unix()
	m.positions[key] = pos

	m.recomputeAccountLocked(acct)
}

// MarkToMarket refreshes unrealized PnL for every position of the security.
func (m *PositionManager) MarkToMarket(sec int64, price, multiplier float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	accts := make(map[int64]struct{})
	for key, pos := range m.positions {
		if key.Sec != sec || pos.Qty == 0 {
			continue
		}
		pos.UnrealizedPnl = (price - pos.AvgPx) * pos.Qty * multiplier
		m.positions[key] = pos
		accts[key.Acct] = struct{}{}
	}
	for acct := range accts {
		m.recomputeAccountLocked(acct)
	}
}

func (m *PositionManager) recomputeAccountLocked(acct int64) {
	var pnl models.MPnl
	for key, pos := range m.positions {
		if key.Acct != acct {
			continue
		}
		pnl.Realized += pos.RealizedPnl
		pnl.Unrealized += pos.UnrealizedPnl
	}
	old := m.pnls[acct]
	if old == pnl {
		return
	}
	m.pnls[acct] = pnl
	if m.storeRoot == "" {
		return
	}
	rec := models.MPnlRecord{Tm: time.Now().Unix(), Realized: pnl.Realized, Unrealized: pnl.Unrealized}
	if err := storage.AppendPnlLog(m.storeRoot, acct, rec); err != nil {
		m.logger.Warning("failed to append pnl log for account %d: %v", acct, err)
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
