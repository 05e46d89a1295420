// Copyright (c) 2025 BVK Chaitanya

package api

import "github.com/shopspring/decimal"

const (
	UnitListPath   = "/unit/list"
	UnitCreatePath = "/unit/create"
	UnitClosePath  = "/unit/close"
	UnitImportPath = "/unit/import"
)

type UnitListRequest struct {
	Batch string
}

type UnitListResponse struct {
	Units []*UnitInfo
}

type UnitCreateRequest struct {
	Batch string

	Asset    string
	Size     decimal.Decimal
	Leverage int

	// Minutes is the recreate timing. Batch default is used when zero.
	Minutes decimal.Decimal
}

type UnitCreateResponse struct {
}

type UnitCloseRequest struct {
	Batch string
	Asset string
}

type UnitCloseResponse struct {
}

// UnitImportRequest holds newline separated asset:size:leverage:minutes
// lines.
type UnitImportRequest struct {
	Batch string
	Text  string
}

type UnitImportResponse struct {
	// Assets holds the assets that are being created in the background.
	Assets []string
}
