// Copyright (c) 2025 BVK Chaitanya

package db

import (
	"context"
	"testing"
)

func TestKeyTypeName(t *testing.T) {
	testCases := map[string]string{
		"/batches/4f7c":       "Batch",
		"/timings/4f7c":       "UnitTimings",
		"/events/4f7c/000001": "Event",
		"/keyring":            "KeyringData",
		"/keyrings":           "",
		"/unknown/key":        "",
	}
	for key, want := range testCases {
		if got := keyTypeName(key); got != want {
			t.Fatalf("%s: wanted %q, got %q", key, want, got)
		}
		if len(want) != 0 {
			if _, err := TypeNameValue(want); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestEditJSONUnchanged(t *testing.T) {
	c := &Edit{editor: "true"}
	data := []byte(`{"Name": "alpha"}`)
	got, err := c.editJSON(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Fatalf("wanted unchanged content, got %q", got)
	}
}
