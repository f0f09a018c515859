package managers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/models"
)

// -----------------------------------------------------------------------------

// ExchangeConnectivityManager routes orders to exchange adapters and folds
// the confirmations they produce back into positions and the order book.
type ExchangeConnectivityManager struct {
	adapterMu sync.RWMutex
	adapters  map[string]interfaces.IExchangeAdapter

	book      *GlobalOrderBook
	positions *PositionManager
	accounts  interfaces.IAccountManager
	logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewExchangeConnectivityManager(book *GlobalOrderBook, positions *PositionManager,
	accounts interfaces.IAccountManager, log *logger.Logger) *ExchangeConnectivityManager {
	m := &ExchangeConnectivityManager{
		adapters:  make(map[string]interfaces.IExchangeAdapter),
		book:      book,
		positions: positions,
		accounts:  accounts,
		logger:    log,
	}
	book.BindCanceller(func(ord *models.MOrder) {
		if err := m.Cancel(ord); err != nil {
			log.Warning("force cancel of order %d failed: %v", ord.ID, err)
		}
	})
	return m
}

// -----------------------------------------------------------------------------

func (m *ExchangeConnectivityManager) RegisterAdapter(adapter interfaces.IExchangeAdapter) {
	m.adapterMu.Lock()
	defer m.adapterMu.Unlock()
	m.adapters[adapter.GetName()] = adapter
}

func (m *ExchangeConnectivityManager) Adapters() []interfaces.IAdapter {
	m.adapterMu.RLock()
	defer m.adapterMu.RUnlock()
	out := make([]interfaces.IAdapter, 0, len(m.adapters))
	for _, a := range m.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

func (m *ExchangeConnectivityManager) GetAdapter(name string) interfaces.IAdapter {
	m.adapterMu.RLock()
	defer m.adapterMu.RUnlock()
	if a, ok := m.adapters[name]; ok {
		return a
	}
	return nil
}

// route picks the adapter for a security: the exchange's own adapter when
// registered, otherwise the first one by name.
func (m *ExchangeConnectivityManager) route(sec *models.MSecurity) interfaces.IExchangeAdapter {
	m.adapterMu.RLock()
	defer m.adapterMu.RUnlock()
	if a, ok := m.adapters[sec.Exchange]; ok {
		return a
	}
	var names []string
	for name := range m.adapters {
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return m.adapters[names[0]]
}

// -----------------------------------------------------------------------------

// Place validates routing, registers the order, acknowledges it to the
// owning sessions and hands it to the adapter.
func (m *ExchangeConnectivityManager) Place(ord *models.MOrder) error {
	ord.BrokerAccount = m.accounts.GetBroker(ord.SubAccount, ord.Sec)
	if ord.BrokerAccount == nil {
		return fmt.Errorf("no broker route for account %s on %s", ord.SubAccount.Name, ord.Sec.Exchange)
	}
	ord.Tm = time.Now().Unix()
	m.book.Register(ord)

	m.HandleConfirmation(&models.MConfirmation{
		Order:           ord,
		TransactionTime: time.Now().UnixMicro(),
		ExecType:        models.ExecUnconfirmedNew,
	})

	adapter := m.route(ord.Sec)
	if adapter == nil || !adapter.Connected() {
		m.HandleConfirmation(&models.MConfirmation{
			Order:           ord,
			TransactionTime: time.Now().UnixMicro(),
			ExecType:        models.ExecRiskRejected,
			Text:            "no connectivity to exchange " + ord.Sec.Exchange,
		})
		return nil
	}
	return adapter.Place(ord)
}

// Cancel routes a cancel request for a live order.
func (m *ExchangeConnectivityManager) Cancel(ord *models.MOrder) error {
	adapter := m.route(ord.Sec)
	if adapter == nil {
		return fmt.Errorf("no adapter for exchange %s", ord.Sec.Exchange)
	}
	return adapter.Cancel(ord)
}

// -----------------------------------------------------------------------------

// HandleConfirmation is the single funnel adapters report through: fills
// update positions before the report fans out.
func (m *ExchangeConnectivityManager) HandleConfirmation(cm *models.MConfirmation) {
	switch cm.ExecType {
	case models.ExecFilled, models.ExecPartiallyFilled:
		if cm.TransType == models.TransNew {
			ord := cm.Order
			m.positions.ApplyFill(ord.SubAccount.ID, ord.Sec.ID, ord.Side,
				cm.LastShares, cm.LastPx, ord.BrokerAccount.ID)
			m.positions.MarkToMarket(ord.Sec.ID, cm.LastPx, ord.Sec.Multiplier)
		}
	}
	m.book.Publish(cm)
}
