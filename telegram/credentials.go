// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// Secrets holds the bot token and the telegram user names that receive batch
// alerts and may run bot commands.
type Secrets struct {
	BotToken string `json:"token"`

	OwnerID string `json:"owner"`

	AdminID string `json:"admin"`

	OtherIDs []string `json:"others"`
}

func (v *Secrets) Check() error {
	if len(v.BotToken) == 0 {
		return fmt.Errorf("bot token cannot be empty: %w", os.ErrInvalid)
	}
	if id, secret, ok := strings.Cut(v.BotToken, ":"); !ok || len(id) == 0 || len(secret) == 0 {
		return fmt.Errorf("bot token must be in <bot-id>:<secret> form: %w", os.ErrInvalid)
	}
	if len(v.OwnerID) == 0 {
		return fmt.Errorf("owner id cannot be empty: %w", os.ErrInvalid)
	}
	if slices.Contains(v.OtherIDs, "") {
		return fmt.Errorf("empty string in other ids is not a valid id: %w", os.ErrInvalid)
	}
	if len(v.AdminID) != 0 && v.AdminID == v.OwnerID {
		return fmt.Errorf("admin id should be different from the owner id: %w", os.ErrInvalid)
	}
	if slices.Contains(v.OtherIDs, v.OwnerID) || (len(v.AdminID) != 0 && slices.Contains(v.OtherIDs, v.AdminID)) {
		return fmt.Errorf("owner and admin ids should not be repeated in other ids: %w", os.ErrInvalid)
	}
	return nil
}

func (v *Secrets) Clone() *Secrets {
	return &Secrets{
		BotToken: v.BotToken,
		OwnerID:  v.OwnerID,
		AdminID:  v.AdminID,
		OtherIDs: slices.Clone(v.OtherIDs),
	}
}

// Receivers returns the users that receive the alerts, owner first.
func (v *Secrets) Receivers() []string {
	users := []string{v.OwnerID}
	if len(v.AdminID) != 0 {
		users = append(users, v.AdminID)
	}
	return append(users, v.OtherIDs...)
}

// IsAllowed returns true if the user can run bot commands.
func (v *Secrets) IsAllowed(user string) bool {
	return len(user) != 0 && slices.Contains(v.Receivers(), user)
}
