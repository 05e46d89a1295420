// Copyright (c) 2025 BVK Chaitanya

package api

import (
	"github.com/bvk/unitbot/gobs"
	"github.com/shopspring/decimal"
)

const (
	BatchCreatePath    = "/batch/create"
	BatchListPath      = "/batch/list"
	BatchGetPath       = "/batch/get"
	BatchClosePath     = "/batch/close"
	BatchPausePath     = "/batch/pause"
	BatchResumePath    = "/batch/resume"
	BatchEventsPath    = "/batch/events"
	BatchSetTimingPath = "/batch/set-timing"
)

type BatchCreateRequest struct {
	Name string

	// Accounts holds account names or ids.
	Accounts []string

	// RecreateMinutes is the default unit lifetime.
	RecreateMinutes decimal.Decimal

	SmartBalanceUsage bool
}

type BatchCreateResponse struct {
	Batch *BatchInfo
}

type BatchListRequest struct {
}

type BatchListResponse struct {
	Batches []*BatchInfo
}

type BatchGetRequest struct {
	Batch string
}

type BatchGetResponse struct {
	Batch *BatchInfo

	Snapshot *Snapshot
}

type BatchCloseRequest struct {
	Batch string
}

type BatchCloseResponse struct {
}

type BatchPauseRequest struct {
	Batch string
}

type BatchPauseResponse struct {
	FinalState string
}

type BatchResumeRequest struct {
	Batch string
}

type BatchResumeResponse struct {
	FinalState string
}

type BatchEventsRequest struct {
	Batch string

	// Range is a time range as accepted by timerange.Parse.
	Range string
}

type BatchEventsResponse struct {
	Events []*gobs.Event
}

type BatchSetTimingRequest struct {
	Batch string
	Asset string

	Minutes decimal.Decimal
}

type BatchSetTimingResponse struct {
}
