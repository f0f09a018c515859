package session

import (
	"time"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/models"
)

// -----------------------------------------------------------------------------
// Execution reports
// -----------------------------------------------------------------------------

// OnConfirmation is the entry point exchange connectivity calls from its own
// goroutine. The report is serialized onto the strand; delivery is silently
// dropped for closed sessions, anonymous sessions and accounts outside the
// user's sub-account set.
func (s *Session) OnConfirmation(cm *models.MConfirmation) {
	if s.closed.Load() {
		return
	}
	s.post(func() {
		if s.user == nil || !s.user.HasSubAccount(cm.Order.SubAccount.ID) {
			return
		}
		s.SendConfirmation(cm, false)
	})
}

// SendConfirmation encodes one execution report. offline selects the replay
// command casing ("Order" instead of "order"). Runs on the strand; the
// offline path is also the replay sink for the order book's LoadStore.
func (s *Session) SendConfirmation(cm *models.MConfirmation, offline bool) {
	if s.user == nil || !s.user.HasSubAccount(cm.Order.SubAccount.ID) {
		return
	}
	cmd := "order"
	if offline {
		cmd = "Order"
	}
	out := []interface{}{cmd, cm.Order.ID, float64(cm.TransactionTime) / 1e6, cm.Seq}

	switch cm.ExecType {
	case models.ExecUnconfirmedNew:
		out = append(out, "unconfirmed",
			cm.Order.Sec.ID, cm.Order.AlgoID, cm.Order.User.ID,
			cm.Order.SubAccount.ID, cm.Order.BrokerAccount.ID,
			cm.Order.Qty, cm.Order.Price,
			cm.Order.Side.String(), cm.Order.Type.String(), cm.Order.Tif.String())

	case models.ExecPendingNew, models.ExecPendingCancel, models.ExecNew, models.ExecCanceled:
		var status string
		switch cm.ExecType {
		case models.ExecPendingNew:
			status = "pending"
		case models.ExecPendingCancel:
			status = "pending_cancel"
		case models.ExecNew:
			status = "new"
		case models.ExecCanceled:
			status = "cancelled"
		}
		out = append(out, status)
		if cm.ExecType == models.ExecNew {
			out = append(out, cm.OrderID)
		}
		if cm.Text != "" {
			out = append(out, cm.Text)
		}

	case models.ExecFilled, models.ExecPartiallyFilled:
		status := "filled"
		if cm.ExecType == models.ExecPartiallyFilled {
			status = "partial"
		}
		out = append(out, status, cm.LastShares, cm.LastPx, cm.ExecID)
		switch cm.TransType {
		case models.TransNew:
			out = append(out, "new")
		case models.TransCancel:
			out = append(out, "cancel")
		default:
			// bust corrections and the like stay server-side
			return
		}

	case models.ExecRejected, models.ExecCancelRejected, models.ExecRiskRejected:
		var status string
		switch cm.ExecType {
		case models.ExecRejected:
			status = "new_rejected"
		case models.ExecCancelRejected:
			status = "cancel_rejected"
		case models.ExecRiskRejected:
			status = "risk_rejected"
		}
		out = append(out, status, cm.Text)
		if cm.ExecType == models.ExecRiskRejected {
			out = append(out,
				cm.Order.Sec.ID, cm.Order.AlgoID, cm.Order.User.ID,
				cm.Order.SubAccount.ID, cm.Order.Qty, cm.Order.Price,
				cm.Order.Side.String(), cm.Order.Type.String(), cm.Order.Tif.String())
			if cm.Order.OrigID != 0 {
				out = append(out, cm.Order.OrigID)
			}
		}

	default:
		return
	}
	s.sendJSON(out...)
}

// -----------------------------------------------------------------------------
// Algo status
// -----------------------------------------------------------------------------

// OnAlgoUpdate is the entry point the algo manager calls from its own
// goroutine; only the owning user's sessions see the update.
func (s *Session) OnAlgoUpdate(algo interfaces.IAlgoInstance, status, body string, seq int64) {
	if s.closed.Load() {
		return
	}
	id, tm := algo.ID(), time.Now().Unix()
	token, name, userID := algo.Token(), algo.Name(), algo.User().ID
	s.post(func() {
		if s.user == nil || s.user.ID != userID {
			return
		}
		s.SendAlgoRecord(seq, id, tm, token, name, status, body, false)
	})
}

// SendAlgoRecord encodes one algo status frame; offline selects the replay
// casing ("Algo"). Runs on the strand; doubles as the algo replay sink.
func (s *Session) SendAlgoRecord(seq int64, id int64, tm int64, token, name, status, body string, offline bool) {
	cmd := "algo"
	if offline {
		cmd = "Algo"
	}
	s.sendJSON(cmd, seq, id, tm, token, name, status, body)
}

// -----------------------------------------------------------------------------
// Test algo output
// -----------------------------------------------------------------------------

// SendTestMsg routes a test-run's output back to the session that spawned
// it; other sessions never registered the token and drop the call.
func (s *Session) SendTestMsg(token, msg string, stopped bool) {
	if s.closed.Load() {
		return
	}
	s.post(func() {
		if _, ok := s.testTokens[token]; !ok {
			return
		}
		s.sendJSON("test_msg", msg)
		if stopped {
			s.sendJSON("test_done", token)
		}
	})
}
