package adapters

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trade-gateway/src/logger"
	"trade-gateway/src/models"
	"trade-gateway/src/utils"
)

// -----------------------------------------------------------------------------

// SimExchange is an exchange-connectivity adapter that acknowledges and
// fills orders locally. It exists so the full confirmation ladder flows in
// environments with no real exchange session, and doubles as the soak-test
// counterparty.
type SimExchange struct {
	name     string
	calendar *utils.TradingCalendar

	connected atomic.Bool
	execSeq   atomic.Int64

	// report funnels confirmations back into connectivity
	report func(cm *models.MConfirmation)

	mu   sync.Mutex
	live map[int64]*models.MOrder

	logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewSimExchange creates the adapter. mic selects the trading calendar used
// to gate fills to market hours.
func NewSimExchange(name, mic string, report func(cm *models.MConfirmation), log *logger.Logger) *SimExchange {
	s := &SimExchange{
		name:     name,
		calendar: utils.GetCalendar(mic),
		report:   report,
		live:     make(map[int64]*models.MOrder),
		logger:   log,
	}
	s.connected.Store(true)
	return s
}

// -----------------------------------------------------------------------------

func (s *SimExchange) GetName() string {
	return s.name
}

func (s *SimExchange) Connected() bool {
	return s.connected.Load()
}

func (s *SimExchange) Reconnect() {
	s.connected.Store(true)
	s.logger.Info("%s : reconnected", s.name)
}

// Disconnect drops the link; outstanding orders stay live until reconnect.
func (s *SimExchange) Disconnect() {
	s.connected.Store(false)
}

// -----------------------------------------------------------------------------

// Place acknowledges the order and, inside market hours, fills it at the
// limit (or stop) price.
func (s *SimExchange) Place(ord *models.MOrder) error {
	if !s.connected.Load() {
		return fmt.Errorf("%s: not connected", s.name)
	}

	s.emit(ord, models.ExecPendingNew, func(cm *models.MConfirmation) {})
	s.emit(ord, models.ExecNew, func(cm *models.MConfirmation) {
		cm.OrderID = fmt.Sprintf("%s-%d", s.name, ord.ID)
	})

	if !s.calendar.IsOpenOnMinute(time.Now()) {
		s.mu.Lock()
		s.live[ord.ID] = ord
		s.mu.Unlock()
		return nil
	}

	px := ord.Price
	if ord.Type == models.TypeMarket || ord.Type == models.TypeStop {
		px = ord.StopPrice
		if px <= 0 {
			px = ord.Price
		}
	}
	s.emit(ord, models.ExecFilled, func(cm *models.MConfirmation) {
		cm.LastShares = ord.Qty
		cm.LastPx = px
		cm.ExecID = fmt.Sprintf("E%d", s.execSeq.Add(1))
		cm.TransType = models.TransNew
	})
	return nil
}

// Cancel confirms the cancel for resting orders and rejects it otherwise.
func (s *SimExchange) Cancel(ord *models.MOrder) error {
	s.mu.Lock()
	_, resting := s.live[ord.ID]
	delete(s.live, ord.ID)
	s.mu.Unlock()

	if !resting {
		s.emit(ord, models.ExecCancelRejected, func(cm *models.MConfirmation) {
			cm.Text = "order not live"
		})
		return nil
	}
	s.emit(ord, models.ExecPendingCancel, func(cm *models.MConfirmation) {})
	s.emit(ord, models.ExecCanceled, func(cm *models.MConfirmation) {})
	return nil
}

// -----------------------------------------------------------------------------

func (s *SimExchange) emit(ord *models.MOrder, execType models.ExecType, fill func(cm *models.MConfirmation)) {
	cm := &models.MConfirmation{
		Order:           ord,
		TransactionTime: time.Now().UnixMicro(),
		ExecType:        execType,
	}
	fill(cm)
	s.report(cm)
}
