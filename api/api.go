// Copyright (c) 2023 BVK Chaitanya

// Package api defines the JSON request and response types of the unitbot
// daemon. All requests are POST requests to the paths defined here.
package api

import (
	"time"

	"github.com/bvk/unitbot/gobs"
	"github.com/shopspring/decimal"
)

const (
	StatusPath = "/status"

	// EventsPath is a websocket endpoint that streams the notifications and
	// snapshots of the batches. Optional "batch" query parameter selects a
	// single batch.
	EventsPath = "/events"
)

type StatusRequest struct {
}

type StatusResponse struct {
	Version string
	Uptime  time.Duration

	Batches []*BatchStatus
}

type BatchStatus struct {
	Batch *BatchInfo

	Snapshot *Snapshot
}

type ProxyInfo struct {
	ID       string
	Name     string
	Host     string
	Port     int
	Username string

	// Account holds the name of the account using the proxy, if any.
	Account string `json:",omitempty"`
}

type AccountInfo struct {
	ID      string
	Name    string
	Address string

	Proxy string `json:",omitempty"`
	Batch string `json:",omitempty"`

	CreateTime time.Time
}

type BatchInfo struct {
	ID   string
	Name string

	Accounts []string

	DefaultRecreateTiming time.Duration

	SmartBalanceUsage bool

	// State is the state of the batch's reconciliation loop.
	State string

	CreateTime time.Time
}

type LegInfo struct {
	Account string

	Size decimal.Decimal

	LiquidationPrice decimal.NullDecimal
}

type UnitInfo struct {
	Asset    string
	Size     decimal.Decimal
	Leverage int

	Status string

	OpenedTime     time.Time     `json:",omitempty"`
	RecreateTiming time.Duration `json:",omitempty"`

	Legs []*LegInfo
}

type Snapshot struct {
	BatchID   string
	BatchName string

	Time time.Time

	Units []*UnitInfo

	// Statuses holds the status of the assets with an action in flight that
	// are not in Units.
	Statuses map[string]string `json:",omitempty"`

	// Balances holds the account value per account name.
	Balances map[string]decimal.Decimal
}

// StreamMessage is a single message on the events websocket.
type StreamMessage struct {
	Event *gobs.Event `json:",omitempty"`

	Snapshot *Snapshot `json:",omitempty"`
}
