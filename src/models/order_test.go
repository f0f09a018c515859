package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrderSide(t *testing.T) {
	for in, want := range map[string]OrderSide{
		"buy": SideBuy, "BUY": SideBuy, "b": SideBuy,
		"sell": SideSell, "s": SideSell,
		"Short": SideShort,
	} {
		side, ok := ParseOrderSide(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, side, in)
	}
	_, ok := ParseOrderSide("hold")
	assert.False(t, ok)
	assert.Equal(t, "buy", SideBuy.String())
	assert.Equal(t, "", SideUnknown.String())
}

func TestParseOrderType(t *testing.T) {
	assert.Equal(t, TypeMarket, ParseOrderType("Market"))
	assert.Equal(t, TypeStop, ParseOrderType("stop"))
	assert.Equal(t, TypeStopLimit, ParseOrderType("Stop Limit"))
	assert.Equal(t, TypeOTC, ParseOrderType("OTC"))
	// anything unrecognized is a limit order
	assert.Equal(t, TypeLimit, ParseOrderType("limit"))
	assert.Equal(t, TypeLimit, ParseOrderType("iceberg"))
	assert.Equal(t, "stop_limit", TypeStopLimit.String())
}

func TestParseTimeInForce(t *testing.T) {
	assert.Equal(t, TifGTC, ParseTimeInForce("gtc"))
	assert.Equal(t, TifOPG, ParseTimeInForce("OPG"))
	assert.Equal(t, TifIOC, ParseTimeInForce("ioc"))
	assert.Equal(t, TifFOK, ParseTimeInForce("FOK"))
	assert.Equal(t, TifGTX, ParseTimeInForce("GTX"))
	assert.Equal(t, TifDay, ParseTimeInForce("Day"))
	assert.Equal(t, TifDay, ParseTimeInForce("whenever"))
	assert.Equal(t, "Day", TifDay.String())
}

func TestUserHasSubAccount(t *testing.T) {
	u := &MUser{SubAccounts: map[int64]*MSubAccount{7: {ID: 7, Name: "main"}}}
	assert.True(t, u.HasSubAccount(7))
	assert.False(t, u.HasSubAccount(8))
}
