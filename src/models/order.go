package models

import "strings"

// -----------------------------------------------------------------------------
// Order enumerations
// -----------------------------------------------------------------------------

type OrderSide int8

const (
	SideUnknown OrderSide = iota
	SideBuy
	SideSell
	SideShort
)

func (s OrderSide) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	case SideShort:
		return "short"
	}
	return ""
}

// ParseOrderSide resolves the canonical side strings.
func ParseOrderSide(str string) (OrderSide, bool) {
	switch strings.ToLower(str) {
	case "buy", "b":
		return SideBuy, true
	case "sell", "s":
		return SideSell, true
	case "short":
		return SideShort, true
	}
	return SideUnknown, false
}

// -----------------------------------------------------------------------------

type OrderType int8

const (
	TypeLimit OrderType = iota
	TypeMarket
	TypeStop
	TypeStopLimit
	TypeOTC
)

func (t OrderType) String() string {
	switch t {
	case TypeLimit:
		return "limit"
	case TypeMarket:
		return "market"
	case TypeStop:
		return "stop"
	case TypeStopLimit:
		return "stop_limit"
	case TypeOTC:
		return "otc"
	}
	return ""
}

// ParseOrderType matches case-insensitively; unrecognized strings fall back to limit.
func ParseOrderType(str string) OrderType {
	switch strings.ToLower(str) {
	case "market":
		return TypeMarket
	case "stop":
		return TypeStop
	case "stop limit":
		return TypeStopLimit
	case "otc":
		return TypeOTC
	}
	return TypeLimit
}

// -----------------------------------------------------------------------------

type TimeInForce int8

const (
	TifDay TimeInForce = iota
	TifIOC
	TifGTC
	TifOPG
	TifFOK
	TifGTX
)

func (t TimeInForce) String() string {
	switch t {
	case TifDay:
		return "Day"
	case TifIOC:
		return "IOC"
	case TifGTC:
		return "GTC"
	case TifOPG:
		return "OPG"
	case TifFOK:
		return "FOK"
	case TifGTX:
		return "GTX"
	}
	return ""
}

// ParseTimeInForce matches case-insensitively; unrecognized strings fall back to Day.
func ParseTimeInForce(str string) TimeInForce {
	switch strings.ToUpper(str) {
	case "GTC":
		return TifGTC
	case "OPG":
		return TifOPG
	case "IOC":
		return TifIOC
	case "FOK":
		return TifFOK
	case "GTX":
		return TifGTX
	}
	return TifDay
}

// -----------------------------------------------------------------------------
// Contract / Order
// -----------------------------------------------------------------------------

// MContract is the tradable part of an order.
type MContract struct {
	Sec        *MSecurity
	SubAccount *MSubAccount
	Side       OrderSide
	Type       OrderType
	Tif        TimeInForce
	Qty        float64
	Price      float64
	StopPrice  float64
}

// MOrder is a contract plus routing identity.
type MOrder struct {
	MContract
	ID            int64
	User          *MUser
	AlgoID        int64
	BrokerAccount *MBrokerAccount
	OrigID        int64 // order being cancel/replaced, 0 otherwise
	Tm            int64 // transaction time, epoch seconds
	Seq           int64
}

// -----------------------------------------------------------------------------
// Confirmation (execution report)
// -----------------------------------------------------------------------------

type ExecType int8

const (
	ExecUnconfirmedNew ExecType = iota
	ExecPendingNew
	ExecNew
	ExecPendingCancel
	ExecCanceled
	ExecFilled
	ExecPartiallyFilled
	ExecRejected
	ExecCancelRejected
	ExecRiskRejected
)

type ExecTransType int8

const (
	TransUnknown ExecTransType = iota
	TransNew
	TransCancel
)

// MConfirmation is one execution report for an order.
type MConfirmation struct {
	Order           *MOrder
	TransactionTime int64 // microseconds
	Seq             int64
	ExecType        ExecType
	ExecID          string
	LastShares      float64
	LastPx          float64
	TransType       ExecTransType
	OrderID         string // exchange-assigned id, set on ExecNew
	Text            string
}
