// Copyright (c) 2025 BVK Chaitanya

package internal

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type InfoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

type Leverage struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

type Position struct {
	Coin           string              `json:"coin"`
	Szi            decimal.Decimal     `json:"szi"`
	Leverage       Leverage            `json:"leverage"`
	EntryPx        decimal.NullDecimal `json:"entryPx"`
	PositionValue  decimal.Decimal     `json:"positionValue"`
	UnrealizedPnl  decimal.Decimal     `json:"unrealizedPnl"`
	ReturnOnEquity decimal.Decimal     `json:"returnOnEquity"`
	LiquidationPx  decimal.NullDecimal `json:"liquidationPx"`
	MarginUsed     decimal.Decimal     `json:"marginUsed"`
	MaxLeverage    int                 `json:"maxLeverage"`
}

type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

type MarginSummary struct {
	AccountValue    decimal.Decimal `json:"accountValue"`
	TotalNtlPos     decimal.Decimal `json:"totalNtlPos"`
	TotalRawUsd     decimal.Decimal `json:"totalRawUsd"`
	TotalMarginUsed decimal.Decimal `json:"totalMarginUsed"`
}

type ClearinghouseState struct {
	AssetPositions     []*AssetPosition `json:"assetPositions"`
	MarginSummary      MarginSummary    `json:"marginSummary"`
	CrossMarginSummary MarginSummary    `json:"crossMarginSummary"`
	Withdrawable       decimal.Decimal  `json:"withdrawable"`
	Time               int64            `json:"time"`
}

type AssetMeta struct {
	Name         string `json:"name"`
	SzDecimals   int    `json:"szDecimals"`
	MaxLeverage  int    `json:"maxLeverage"`
	OnlyIsolated bool   `json:"onlyIsolated,omitempty"`
	IsDelisted   bool   `json:"isDelisted,omitempty"`
}

type Meta struct {
	Universe []*AssetMeta `json:"universe"`
}

// Exchange actions. Field order of the action types is significant because
// the msgpack encoding of the action is signed.

type LimitOrderType struct {
	Tif string `json:"tif" msgpack:"tif"`
}

type OrderType struct {
	Limit *LimitOrderType `json:"limit,omitempty" msgpack:"limit,omitempty"`
}

type OrderWire struct {
	Asset      int       `json:"a" msgpack:"a"`
	IsBuy      bool      `json:"b" msgpack:"b"`
	LimitPx    string    `json:"p" msgpack:"p"`
	Size       string    `json:"s" msgpack:"s"`
	ReduceOnly bool      `json:"r" msgpack:"r"`
	OrderType  OrderType `json:"t" msgpack:"t"`
	Cloid      string    `json:"c,omitempty" msgpack:"c,omitempty"`
}

type OrderAction struct {
	Type     string       `json:"type" msgpack:"type"`
	Orders   []*OrderWire `json:"orders" msgpack:"orders"`
	Grouping string       `json:"grouping" msgpack:"grouping"`
}

type UpdateLeverageAction struct {
	Type     string `json:"type" msgpack:"type"`
	Asset    int    `json:"asset" msgpack:"asset"`
	IsCross  bool   `json:"isCross" msgpack:"isCross"`
	Leverage int    `json:"leverage" msgpack:"leverage"`
}

type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

type ExchangeRequest struct {
	Action       any        `json:"action"`
	Nonce        uint64     `json:"nonce"`
	Signature    *Signature `json:"signature"`
	VaultAddress *string    `json:"vaultAddress"`
}

// ExchangeResponse holds an object for "ok" status and an error message
// string for "err" status.
type ExchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type FilledStatus struct {
	TotalSz decimal.Decimal `json:"totalSz"`
	AvgPx   decimal.Decimal `json:"avgPx"`
	Oid     int64           `json:"oid"`
	Cloid   string          `json:"cloid,omitempty"`
}

type RestingStatus struct {
	Oid   int64  `json:"oid"`
	Cloid string `json:"cloid,omitempty"`
}

type OrderStatus struct {
	Filled  *FilledStatus  `json:"filled,omitempty"`
	Resting *RestingStatus `json:"resting,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type OrderResponse struct {
	Type string `json:"type"`
	Data struct {
		Statuses []*OrderStatus `json:"statuses"`
	} `json:"data"`
}
