package managers

import (
	"sync"
	"sync/atomic"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/models"

	"github.com/bwmarrin/snowflake"
)

// -----------------------------------------------------------------------------

// GlobalOrderBook is the process-wide order table. It assigns order ids,
// sequences and persists every confirmation, and fans live reports out to
// the attached sessions.
type GlobalOrderBook struct {
	mu     sync.RWMutex
	orders map[int64]*models.MOrder
	open   map[int64]*models.MOrder // not yet terminal

	node  *snowflake.Node
	seq   atomic.Int64
	store interfaces.IStore

	listenerMu sync.RWMutex
	listeners  map[interfaces.ISessionEvents]struct{}

	canceller func(ord *models.MOrder) // bound to exchange connectivity after wiring
	logger    *logger.Logger

	securities interfaces.ISecurityMaster
	accounts   interfaces.IAccountManager
}

// -----------------------------------------------------------------------------

func NewGlobalOrderBook(store interfaces.IStore, securities interfaces.ISecurityMaster,
	accounts interfaces.IAccountManager, log *logger.Logger) (*GlobalOrderBook, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	b := &GlobalOrderBook{
		orders:     make(map[int64]*models.MOrder),
		open:       make(map[int64]*models.MOrder),
		node:       node,
		store:      store,
		listeners:  make(map[interfaces.ISessionEvents]struct{}),
		logger:     log,
		securities: securities,
		accounts:   accounts,
	}
	if store != nil {
		confirmationSeq, _, err := store.MaxSeqs()
		if err != nil {
			return nil, err
		}
		b.seq.Store(confirmationSeq)
	}
	return b, nil
}

// BindCanceller wires the cancel route in; the order book and exchange
// connectivity reference each other, so the hookup happens after both exist.
func (b *GlobalOrderBook) BindCanceller(fn func(ord *models.MOrder)) {
	b.canceller = fn
}

// -----------------------------------------------------------------------------

// Register assigns the order id and tracks the order as outstanding.
func (b *GlobalOrderBook) Register(ord *models.MOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ord.ID == 0 {
		ord.ID = b.node.Generate().Int64()
	}
	b.orders[ord.ID] = ord
	b.open[ord.ID] = ord
}

func (b *GlobalOrderBook) Get(id int64) *models.MOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.orders[id]
}

// -----------------------------------------------------------------------------

// AttachListener subscribes a session to live confirmations.
func (b *GlobalOrderBook) AttachListener(l interfaces.ISessionEvents) {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	b.listeners[l] = struct{}{}
}

func (b *GlobalOrderBook) DetachListener(l interfaces.ISessionEvents) {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	delete(b.listeners, l)
}

// -----------------------------------------------------------------------------

// Publish sequences, persists and fans out one confirmation.
func (b *GlobalOrderBook) Publish(cm *models.MConfirmation) {
	cm.Seq = b.seq.Add(1)

	switch cm.ExecType {
	case models.ExecCanceled, models.ExecFilled, models.ExecRejected, models.ExecRiskRejected:
		b.mu.Lock()
		delete(b.open, cm.Order.ID)
		b.mu.Unlock()
	}

	if b.store != nil {
		if err := b.store.SaveConfirmation(confirmationToRow(cm)); err != nil {
			b.logger.Error("failed to persist confirmation %d: %v", cm.Seq, err)
		}
	}

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	for l := range b.listeners {
		l.OnConfirmation(cm)
	}
}

// -----------------------------------------------------------------------------

// LoadStore replays persisted confirmations with seq greater than the cursor.
func (b *GlobalOrderBook) LoadStore(seq int64, sink interfaces.IConfirmationSink) {
	if b.store == nil {
		return
	}
	err := b.store.ReplayConfirmations(seq, func(row *interfaces.MConfirmationRow) {
		cm := b.rowToConfirmation(row)
		if cm == nil {
			return
		}
		sink.SendConfirmation(cm, true)
	})
	if err != nil {
		b.logger.Error("confirmation replay from %d failed: %v", seq, err)
	}
}

// -----------------------------------------------------------------------------

// CancelAll force-cancels every outstanding order.
func (b *GlobalOrderBook) CancelAll() {
	if b.canceller == nil {
		return
	}
	b.mu.RLock()
	outstanding := make([]*models.MOrder, 0, len(b.open))
	for _, ord := range b.open {
		outstanding = append(outstanding, ord)
	}
	b.mu.RUnlock()
	for _, ord := range outstanding {
		b.canceller(ord)
	}
}

// -----------------------------------------------------------------------------

func confirmationToRow(cm *models.MConfirmation) *interfaces.MConfirmationRow {
	ord := cm.Order
	row := &interfaces.MConfirmationRow{
		Seq:        cm.Seq,
		OrderID:    ord.ID,
		SecurityID: ord.Sec.ID,
		AlgoID:     ord.AlgoID,
		UserID:     ord.User.ID,
		AcctID:     ord.SubAccount.ID,
		Qty:        ord.Qty,
		Price:      ord.Price,
		StopPrice:  ord.StopPrice,
		Side:       int8(ord.Side),
		Type:       int8(ord.Type),
		Tif:        int8(ord.Tif),
		ExecType:   int8(cm.ExecType),
		TransType:  int8(cm.TransType),
		ExecID:     cm.ExecID,
		ExchOrdID:  cm.OrderID,
		LastShares: cm.LastShares,
		LastPx:     cm.LastPx,
		Tm:         cm.TransactionTime,
		Text:       cm.Text,
	}
	if ord.BrokerAccount != nil {
		row.BrokerID = ord.BrokerAccount.ID
	}
	return row
}

// rowToConfirmation rehydrates a persisted row; rows whose reference data no
// longer resolves are dropped from replay.
func (b *GlobalOrderBook) rowToConfirmation(row *interfaces.MConfirmationRow) *models.MConfirmation {
	sec := b.securities.Get(row.SecurityID)
	acct := b.accounts.GetSubAccount(row.AcctID)
	if sec == nil || acct == nil {
		return nil
	}
	var user *models.MUser
	for _, u := range b.accounts.Users() {
		if u.ID == row.UserID {
			user = u
			break
		}
	}
	if user == nil {
		return nil
	}
	ord := &models.MOrder{
		MContract: models.MContract{
			Sec:        sec,
			SubAccount: acct,
			Side:       models.OrderSide(row.Side),
			Type:       models.OrderType(row.Type),
			Tif:        models.TimeInForce(row.Tif),
			Qty:        row.Qty,
			Price:      row.Price,
			StopPrice:  row.StopPrice,
		},
		ID:     row.OrderID,
		User:   user,
		AlgoID: row.AlgoID,
	}
	if row.BrokerID != 0 {
		for _, ba := range b.accounts.BrokerAccounts() {
			if ba.ID == row.BrokerID {
				ord.BrokerAccount = ba
				break
			}
		}
	}
	return &models.MConfirmation{
		Order:           ord,
		TransactionTime: row.Tm,
		Seq:             row.Seq,
		ExecType:        models.ExecType(row.ExecType),
		ExecID:          row.ExecID,
		LastShares:      row.LastShares,
		LastPx:          row.LastPx,
		TransType:       models.ExecTransType(row.TransType),
		OrderID:         row.ExchOrdID,
		Text:            row.Text,
	}
}
