package session

import (
	"fmt"
	"sort"
	"time"

	"trade-gateway/src/models"
)

// -----------------------------------------------------------------------------

// publishTick runs once per second on the strand after the first stateful
// login: connectivity status first, then market-data diffs, then (once pnl
// streaming is on) both PnL diffs.
func (s *Session) publishTick() {
	s.publishMarketStatus()
	s.publishMarketData()
	if !s.subPnl {
		return
	}
	s.publishSinglePnls()
	s.publishAccountPnls()
}

// -----------------------------------------------------------------------------

// publishMarketStatus emits connectivity flips for exchange and data
// adapters since this session last looked.
func (s *Session) publishMarketStatus() {
	for _, adapter := range s.deps.Exchange.Adapters() {
		name := adapter.GetName()
		connected := adapter.Connected()
		if last, ok := s.ecs[name]; !ok || last != connected {
			s.ecs[name] = connected
			s.sendJSON("market", "exchange", name, connected)
		}
	}
	for _, adapter := range s.deps.MarketData.Adapters() {
		name := adapter.GetName()
		connected := adapter.Connected()
		if last, ok := s.mds[name]; !ok || last != connected {
			s.mds[name] = connected
			s.sendJSON("market", "data", name, connected)
		}
	}
}

// -----------------------------------------------------------------------------

// publishMarketData diffs every subscribed security against its last-seen
// snapshot; one frame carries all ids that moved, and a tick-less second
// emits nothing.
func (s *Session) publishMarketData() {
	ids := make([]int64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []interface{}{"md"}
	for _, id := range ids {
		entry := s.subs[id]
		md := s.deps.MarketData.GetSnapshot(id)
		if delta := diffMarketData(md, entry.last); delta != nil {
			out = append(out, []interface{}{id, delta})
		}
		entry.last = md
	}
	if len(out) > 1 {
		s.sendJSON(out...)
	}
}

// diffMarketData returns the abbreviated-key object of fields that changed
// between md0 and md, or nil when nothing moved. A snapshot whose timestamp
// equals the last-seen one is skipped outright.
func diffMarketData(md, md0 models.MMarketData) map[string]interface{} {
	if md.Tm == md0.Tm {
		return nil
	}
	delta := map[string]interface{}{"t": md.Tm}
	if md.Trade.Open != md0.Trade.Open {
		delta["o"] = md.Trade.Open
	}
	if md.Trade.High != md0.Trade.High {
		delta["h"] = md.Trade.High
	}
	if md.Trade.Low != md0.Trade.Low {
		delta["l"] = md.Trade.Low
	}
	if md.Trade.Close != md0.Trade.Close {
		delta["c"] = md.Trade.Close
	}
	if md.Trade.Qty != md0.Trade.Qty {
		delta["q"] = md.Trade.Qty
	}
	if md.Trade.Volume != md0.Trade.Volume {
		delta["v"] = md.Trade.Volume
	}
	if md.Trade.Vwap != md0.Trade.Vwap {
		delta["V"] = md.Trade.Vwap
	}
	for i := 0; i < models.DepthLevels; i++ {
		d := md.Depth[i]
		d0 := md0.Depth[i]
		if d.AskPrice != d0.AskPrice {
			delta[fmt.Sprintf("a%d", i)] = d.AskPrice
		}
		if d.AskSize != d0.AskSize {
			delta[fmt.Sprintf("A%d", i)] = d.AskSize
		}
		if d.BidPrice != d0.BidPrice {
			delta[fmt.Sprintf("b%d", i)] = d.BidPrice
		}
		if d.BidSize != d0.BidSize {
			delta[fmt.Sprintf("B%d", i)] = d.BidSize
		}
	}
	if len(delta) == 1 {
		// timestamp moved but no field did
		return nil
	}
	return delta
}

// -----------------------------------------------------------------------------

// publishSinglePnls streams per-(account, security) realized/unrealized
// changes for the user's own accounts.
func (s *Session) publishSinglePnls() {
	positions := s.deps.Positions.SubPositions()
	keys := make([]models.AcctSec, 0, len(positions))
	for key := range positions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Acct != keys[j].Acct {
			return keys[i].Acct < keys[j].Acct
		}
		return keys[i].Sec < keys[j].Sec
	})
	for _, key := range keys {
		if !s.user.HasSubAccount(key.Acct) {
			continue
		}
		pos := positions[key]
		last := s.singlePnls[key]
		realizedChanged := pos.RealizedPnl != last.realized
		if !realizedChanged && pos.UnrealizedPnl == last.unrealized {
			continue
		}
		last.realized = pos.RealizedPnl
		last.unrealized = pos.UnrealizedPnl
		s.singlePnls[key] = last
		out := []interface{}{"pnl", key.Acct, key.Sec, last.unrealized}
		if realizedChanged {
			out = append(out, last.realized)
		}
		s.sendJSON(out...)
	}
}

// publishAccountPnls streams per-account totals.
func (s *Session) publishAccountPnls() {
	pnls := s.deps.Positions.Pnls()
	ids := make([]int64, 0, len(pnls))
	for id := range pnls {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !s.user.HasSubAccount(id) {
			continue
		}
		pnl := pnls[id]
		last := s.pnls[id]
		if pnl.Realized == last.realized && pnl.Unrealized == last.unrealized {
			continue
		}
		s.pnls[id] = pnlPair{realized: pnl.Realized, unrealized: pnl.Unrealized}
		s.sendJSON("Pnl", id, time.Now().Unix(), pnl.Realized, pnl.Unrealized)
	}
}
