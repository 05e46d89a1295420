// Copyright (c) 2023 BVK Chaitanya

package gobs

type JobData struct {
	ID       string
	Typename string
	State    string
}
