package session

import (
	"encoding/json"
	"testing"

	"trade-gateway/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// market data diffs
// -----------------------------------------------------------------------------

func snapshot(tm int64, close float64) models.MMarketData {
	md := models.MMarketData{Tm: tm}
	md.Trade = models.MTrade{Open: 100, High: 102, Low: 99, Close: close, Qty: 10, Volume: 1000, Vwap: 100.5}
	md.Depth[0] = models.MDepth{BidPrice: close - 0.05, BidSize: 300, AskPrice: close + 0.05, AskSize: 200}
	return md
}

// sub answers an immediate full diff against the zero baseline.
func TestSubInitialSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret")
	env.marketdata.SetSnapshot(42, snapshot(1000, 101.0))

	env.dispatch(`["sub",42]`)
	frames := env.transport.Frames()
	require.Len(t, frames, 1)
	frame := decodeFrame(t, frames[0])
	assert.Equal(t, "md", frame[0])
	entry := frame[1].([]interface{})
	assert.Equal(t, json.Number("42"), entry[0])
	delta := entry[1].(map[string]interface{})
	assert.Contains(t, delta, "t")
	assert.Contains(t, delta, "c")
	assert.Contains(t, delta, "b0")
	assert.Contains(t, delta, "A0")
}

// Only changed fields flow on subsequent publishes.
func TestPublishEmitsOnlyChangedFields(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret")
	env.marketdata.SetSnapshot(42, snapshot(1000, 101.0))
	env.dispatch(`["sub",42]`)
	env.transport.Reset()

	md := snapshot(1001, 101.5)
	md.Trade.Open = 100
	env.marketdata.SetSnapshot(42, md)
	env.publish()

	frames := env.transport.Frames()
	require.Len(t, frames, 1)
	frame := decodeFrame(t, frames[0])
	entry := frame[1].([]interface{})
	delta := entry[1].(map[string]interface{})
	assert.Len(t, delta, 4) // t, c and both touched book prices
	assert.Contains(t, delta, "t")
	assert.Contains(t, delta, "c")
	assert.Contains(t, delta, "b0")
	assert.Contains(t, delta, "a0")
	assert.NotContains(t, delta, "o")
	assert.NotContains(t, delta, "v")
}

// An unchanged snapshot (same timestamp) publishes nothing.
func TestPublishSkipsUnchangedSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret")
	env.marketdata.SetSnapshot(42, snapshot(1000, 101.0))
	env.dispatch(`["sub",42]`)
	env.transport.Reset()

	env.publish()
	env.publish()
	assert.Empty(t, env.transport.Frames())
}

func TestDiffMarketData(t *testing.T) {
	md0 := snapshot(1000, 101.0)

	assert.Nil(t, diffMarketData(md0, md0))

	// timestamp moved, no field did
	md := md0
	md.Tm = 1001
	assert.Nil(t, diffMarketData(md, md0))

	md.Trade.Vwap = 100.6
	delta := diffMarketData(md, md0)
	require.NotNil(t, delta)
	assert.Equal(t, map[string]interface{}{"t": int64(1001), "V": 100.6}, delta)
}

// Unknown security ids subscribe to nothing and never publish.
func TestSubUnknownId(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret")
	env.dispatch(`["sub",999]`)
	assert.Empty(t, env.transport.Frames())
	env.publish()
	assert.Empty(t, env.transport.Frames())
}

// -----------------------------------------------------------------------------
// sub / unsub refcounts
// -----------------------------------------------------------------------------

func TestSubUnsubRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret")
	env.marketdata.SetSnapshot(42, snapshot(1000, 101.0))

	env.dispatch(`["sub",42]`)
	env.dispatch(`["sub",42]`)
	env.session.Drain()

	env.dispatch(`["unsub",42]`)
	env.transport.Reset()
	// still one reference: a tick publishes
	env.marketdata.SetSnapshot(42, snapshot(1001, 101.5))
	env.publish()
	assert.NotEmpty(t, env.transport.Frames())

	env.dispatch(`["unsub",42]`)
	env.transport.Reset()
	env.marketdata.SetSnapshot(42, snapshot(1002, 102.0))
	env.publish()
	assert.Empty(t, env.transport.Frames())
}

// An unknown id aborts the remainder of the unsub frame.
func TestUnsubUnknownIdAbortsFrame(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret")
	env.marketdata.SetSnapshot(42, snapshot(1000, 101.0))
	env.dispatch(`["sub",42]`)
	env.transport.Reset()

	env.dispatch(`["unsub",999,42]`)
	// 42 keeps its subscription because the frame stopped at 999
	env.marketdata.SetSnapshot(42, snapshot(1001, 101.5))
	env.publish()
	assert.NotEmpty(t, env.transport.Frames())
}

// -----------------------------------------------------------------------------
// connectivity status
// -----------------------------------------------------------------------------

func TestMarketStatusFlips(t *testing.T) {
	env := newTestEnv(t)
	exch := &fakeAdapter{name: "NASDAQ", connected: true}
	feed := &fakeAdapter{name: "nats", connected: true}
	env.exchange.adapters = append(env.exchange.adapters, exch)
	env.marketdata.adapters = append(env.marketdata.adapters, feed)
	env.login(t, "alice", "secret")

	env.publish()
	frames := env.transport.Frames()
	assert.Contains(t, frames, `["market","exchange","NASDAQ",true]`)
	assert.Contains(t, frames, `["market","data","nats",true]`)

	// steady state stays silent
	env.transport.Reset()
	env.publish()
	assert.Empty(t, env.transport.Frames())

	// one flip, one frame
	exch.connected = false
	env.publish()
	assert.Equal(t, []string{`["market","exchange","NASDAQ",false]`}, env.transport.Frames())
}

// -----------------------------------------------------------------------------
// pnl diffs
// -----------------------------------------------------------------------------

func TestPnlStreamingGatedByFlag(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret")
	env.positions.SetPosition(7, 42, models.MPosition{RealizedPnl: 10, UnrealizedPnl: 5})
	env.positions.SetPnl(7, models.MPnl{Realized: 10, Unrealized: 5})

	env.publish()
	assert.Empty(t, env.transport.Frames())

	env.dispatch(`["pnl"]`)
	env.transport.Reset()
	env.publish()
	frames := env.transport.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, `["pnl",7,42,5,10]`, frames[0])
	frame := decodeFrame(t, frames[1])
	assert.Equal(t, "Pnl", frame[0])
}

// Realized is appended only when it changed.
func TestSinglePnlRealizedAppend(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret")
	env.dispatch(`["pnl"]`)
	env.positions.SetPosition(7, 42, models.MPosition{RealizedPnl: 10, UnrealizedPnl: 5})
	env.positions.SetPnl(7, models.MPnl{Realized: 10, Unrealized: 5})
	env.transport.Reset()
	env.publish()

	env.transport.Reset()
	env.positions.SetPosition(7, 42, models.MPosition{RealizedPnl: 10, UnrealizedPnl: 6})
	env.publish()
	frames := env.transport.Frames()
	require.NotEmpty(t, frames)
	assert.Equal(t, `["pnl",7,42,6]`, frames[0])

	// unchanged pnl stays silent
	env.transport.Reset()
	env.publish()
	for _, f := range env.transport.Frames() {
		frame := decodeFrame(t, f)
		assert.NotEqual(t, "pnl", frame[0])
	}
}

// Accounts outside the user's set never stream.
func TestPnlFiltersForeignAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret")
	env.dispatch(`["pnl"]`)
	env.transport.Reset()
	env.positions.SetPosition(8, 42, models.MPosition{RealizedPnl: 99, UnrealizedPnl: 99})
	env.positions.SetPnl(8, models.MPnl{Realized: 99, Unrealized: 99})

	env.publish()
	assert.Empty(t, env.transport.Frames())
}
