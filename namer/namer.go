// Copyright (c) 2023 BVK Chaitanya

// Package namer maintains a two-way mapping between unique human friendly
// names and object ids in the database.
package namer

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/kvutil"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
)

var Keyspace = "/names/"

func checkEqual(a, b *gobs.NameData) error {
	if a.Name != b.Name {
		return fmt.Errorf("Name field value is not the same")
	}
	if a.ID != b.ID {
		return fmt.Errorf("ID field value is not the same")
	}
	if a.Typename != b.Typename {
		return fmt.Errorf("Typename field value is not the same")
	}
	return nil
}

// Resolve converts string argument which can be a name or an id with the
// namer database.
func Resolve(ctx context.Context, r kv.Reader, str string) (name, id, typename string, err error) {
	if len(str) == 0 {
		return "", "", "", fmt.Errorf("name/id string argument cannot be empty: %w", os.ErrInvalid)
	}
	skey := path.Join(Keyspace, toUUID(str))
	data, err := kvutil.Get[gobs.NameData](ctx, r, skey)
	if err != nil {
		return "", "", "", fmt.Errorf("could not fetch naming data: %w", err)
	}
	// Check that other link also points to the same data.
	other := ""
	if data.Name == str {
		other = data.ID
	} else if data.ID == str {
		other = data.Name
	} else {
		return "", "", "", fmt.Errorf("unexpected: name data is inconsistent for %q", str)
	}
	okey := path.Join(Keyspace, toUUID(other))
	if v, err := kvutil.Get[gobs.NameData](ctx, r, okey); err != nil {
		return "", "", "", fmt.Errorf("could not read name data for tag %q: %w", other, err)
	} else if err := checkEqual(data, v); err != nil {
		return "", "", "", fmt.Errorf("unexpected: name data at ID and Name is not the same: %w", err)
	}
	return data.Name, data.ID, data.Typename, nil
}

// ResolveID is similar to Resolve, but also checks that the object is of the
// given type.
func ResolveID(ctx context.Context, r kv.Reader, str, typename string) (string, error) {
	_, id, tname, err := Resolve(ctx, r, str)
	if err != nil {
		return "", err
	}
	if tname != typename {
		return "", fmt.Errorf("%q is a %s, not a %s: %w", str, tname, typename, os.ErrNotExist)
	}
	return id, nil
}

// SetName links the name and id. Fails with os.ErrExist if the name is
// already in use.
func SetName(ctx context.Context, rw kv.ReadWriter, name, id, typename string) error {
	if len(id) == 0 || len(name) == 0 {
		return fmt.Errorf("id and name must be non-empty: %w", os.ErrInvalid)
	}
	nkey := path.Join(Keyspace, toUUID(name))
	if _, err := rw.Get(ctx, nkey); err == nil {
		return fmt.Errorf("name %q is already used: %w", name, os.ErrExist)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not check if name already exists: %w", err)
	}
	data := &gobs.NameData{
		ID:       id,
		Name:     name,
		Typename: typename,
	}
	if err := kvutil.Set(ctx, rw, nkey, data); err != nil {
		return fmt.Errorf("could not set name key: %w", err)
	}
	ikey := path.Join(Keyspace, toUUID(id))
	if err := kvutil.Set(ctx, rw, ikey, data); err != nil {
		return fmt.Errorf("could not set id key: %w", err)
	}
	return nil
}

// Delete removes the name and id links for a name or an id.
func Delete(ctx context.Context, rw kv.ReadWriter, str string) error {
	name, id, _, err := Resolve(ctx, rw, str)
	if err != nil {
		return fmt.Errorf("could not resolve %q: %w", str, err)
	}
	nkey := path.Join(Keyspace, toUUID(name))
	if err := rw.Delete(ctx, nkey); err != nil {
		return fmt.Errorf("could not delete name key: %w", err)
	}
	ikey := path.Join(Keyspace, toUUID(id))
	if err := rw.Delete(ctx, ikey); err != nil {
		return fmt.Errorf("could not delete id key: %w", err)
	}
	return nil
}

func toUUID(s string) string {
	checksum := md5.Sum([]byte(s))
	return uuid.UUID(checksum).String()
}
