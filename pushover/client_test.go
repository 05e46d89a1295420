// Copyright (c) 2023 BVK Chaitanya

package pushover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"
)

var testingKeys *Keys

func checkKeys() bool {
	if testingKeys != nil {
		return true
	}
	data, err := os.ReadFile("pushover-keys.json")
	if err != nil {
		return false
	}
	s := new(Keys)
	if err := json.Unmarshal(data, s); err != nil {
		return false
	}
	testingKeys = s
	return true
}

func TestSendMessage(t *testing.T) {
	if !checkKeys() {
		t.Skip("no keys")
		return
	}

	c, err := New(testingKeys)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SendMessage(context.Background(), time.Now(), t.Name()); err != nil {
		t.Fatal(err)
	}
}

func TestSendMessageFake(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("could not decode message: %v", err)
		}
		if got["token"] == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":0,"errors":["application token is invalid"]}`))
			return
		}
		w.Write([]byte(`{"status":1,"request":"1"}`))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	c, err := New(&Keys{ApplicationKey: "app", UserKey: "user"})
	if err != nil {
		t.Fatal(err)
	}
	c.messages = u

	if err := c.SendMessage(context.Background(), time.Now(), "hello"); err != nil {
		t.Fatal(err)
	}
	if got["message"] != "hello" || got["user"] != "user" {
		t.Fatalf("wanted hello message for user, got %v", got)
	}

	c.token = "bad"
	if err := c.SendMessage(context.Background(), time.Now(), "hello"); err == nil {
		t.Fatalf("wanted an error for bad token")
	}

	if _, err := New(&Keys{}); err == nil {
		t.Fatalf("wanted an error for empty keys")
	}
}
