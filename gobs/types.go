// Copyright (c) 2023 BVK Chaitanya

package gobs

// KeyValue is the unit of database backups.
type KeyValue struct {
	Key   string
	Value []byte
}

// NameData links a human friendly name to an object id in both directions.
type NameData struct {
	Name     string
	ID       string
	Typename string
}

// TelegramState holds the chat ids of the authorized telegram users.
type TelegramState struct {
	UserChatIDMap map[string]int64
}
