// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/job"
	"github.com/bvk/unitbot/namer"
	"github.com/bvk/unitbot/store"
	"github.com/bvk/unitbot/telegram"
)

// keyspaceTypes maps the database keyspaces to the gob type names of their
// values.
var keyspaceTypes = []struct{ prefix, typename string }{
	{store.ProxiesKeyspace, "Proxy"},
	{store.AccountsKeyspace, "Account"},
	{store.BatchesKeyspace, "Batch"},
	{store.TimingsKeyspace, "UnitTimings"},
	{store.EventsKeyspace, "Event"},
	{store.KeyringKey, "KeyringData"},
	{job.Keyspace, "JobData"},
	{namer.Keyspace, "NameData"},
	{telegram.Keyspace, "TelegramState"},
}

// keyTypeName returns the gob type name of the values stored at the key or an
// empty string for unknown keys.
func keyTypeName(key string) string {
	for _, ks := range keyspaceTypes {
		if key == ks.prefix || (strings.HasSuffix(ks.prefix, "/") && strings.HasPrefix(key, ks.prefix)) {
			return ks.typename
		}
	}
	return ""
}

// TypeNameValue returns a new object for the gob type name used by the
// database values.
func TypeNameValue(typename string) (any, error) {
	var v any
	switch typename {
	case "Proxy":
		v = new(gobs.Proxy)
	case "Account":
		v = new(gobs.Account)
	case "KeyringData":
		v = new(gobs.KeyringData)
	case "Batch":
		v = new(gobs.Batch)
	case "UnitTimings":
		v = new(gobs.UnitTimings)
	case "Event":
		v = new(gobs.Event)
	case "JobData":
		v = new(gobs.JobData)
	case "KeyValue":
		v = new(gobs.KeyValue)
	case "NameData":
		v = new(gobs.NameData)
	case "TelegramState":
		v = new(gobs.TelegramState)
	default:
		return nil, fmt.Errorf("unsupported type name %q: %w", typename, os.ErrInvalid)
	}
	return v, nil
}

func decodeValue(typename string, r io.Reader) (any, error) {
	value, err := TypeNameValue(typename)
	if err != nil {
		return nil, err
	}
	if err := gob.NewDecoder(r).Decode(value); err != nil {
		return nil, fmt.Errorf("could not gob-decode value as %s: %w", typename, err)
	}
	return value, nil
}
