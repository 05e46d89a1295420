// Copyright (c) 2023 BVK Chaitanya

package kvutil

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvkgo/kv"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	backupMagic   = "unitbot-backup"
	backupVersion = 1
)

// backupHeader is the first record of a backup stream. Key-value records
// follow it till the end of the stream.
type backupHeader struct {
	Magic   string
	Version int
	Created time.Time
}

func writeBackup(ctx context.Context, r kv.Reader, w io.Writer) (nkeys int, status error) {
	enc := msgpack.NewEncoder(w)
	header := &backupHeader{Magic: backupMagic, Version: backupVersion, Created: time.Now().UTC()}
	if err := enc.Encode(header); err != nil {
		return 0, fmt.Errorf("could not write backup header: %w", err)
	}

	it, err := r.Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not create scanning iterator: %w", err)
	}
	defer kv.Close(it)

	for k, v, err := it.Fetch(ctx, false); err == nil; k, v, err = it.Fetch(ctx, true) {
		value, err := io.ReadAll(v)
		if err != nil {
			return nkeys, fmt.Errorf("could not read value at key %q: %w", k, err)
		}
		if err := enc.Encode(&gobs.KeyValue{Key: k, Value: value}); err != nil {
			return nkeys, fmt.Errorf("could not write key %q to backup: %w", k, err)
		}
		nkeys++
	}
	if _, _, err := it.Fetch(ctx, false); err != nil && !errors.Is(err, io.EOF) {
		return nkeys, fmt.Errorf("iterator fetch has failed: %w", err)
	}
	return nkeys, nil
}

// ReadBackup writes the key-value pairs from a backup stream created by
// BackupDB into the database. Existing keys not in the backup are left
// untouched.
func ReadBackup(ctx context.Context, r io.Reader, rw kv.ReadWriter) error {
	dec := msgpack.NewDecoder(r)

	header := new(backupHeader)
	if err := dec.Decode(header); err != nil {
		return fmt.Errorf("could not read backup header: %w", err)
	}
	if header.Magic != backupMagic {
		return fmt.Errorf("input is not a backup stream: %w", os.ErrInvalid)
	}
	if header.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %d: %w", header.Version, os.ErrInvalid)
	}

	for {
		item := new(gobs.KeyValue)
		if err := dec.Decode(item); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not decode item from backup: %w", err)
		}
		if err := rw.Set(ctx, item.Key, bytes.NewReader(item.Value)); err != nil {
			return fmt.Errorf("could not restore key %q: %w", item.Key, err)
		}
	}
}

func DeleteAll(ctx context.Context, rw kv.ReadWriter) error {
	it, err := rw.Scan(ctx)
	if err != nil {
		return fmt.Errorf("could not create scanning iterator: %w", err)
	}
	defer kv.Close(it)
	for k, _, err := it.Fetch(ctx, false); err == nil; k, _, err = it.Fetch(ctx, true) {
		if err := rw.Delete(ctx, k); err != nil {
			return fmt.Errorf("could not delete key %q: %w", k, err)
		}
	}
	if _, _, err := it.Fetch(ctx, false); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("iterator fetch has failed: %w", err)
	}
	return nil
}

// BackupDB saves a consistent snapshot of the database into file. The file is
// replaced atomically, so an existing backup survives a failed attempt.
func BackupDB(ctx context.Context, db kv.Database, file string) (status error) {
	abspath, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("could not determine absolute path: %w", err)
	}

	fp, err := os.CreateTemp(filepath.Dir(abspath), ".backup*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer func() {
		fp.Close()
		if status != nil {
			os.Remove(fp.Name())
		}
	}()

	bw := bufio.NewWriter(fp)
	var nkeys int
	save := func(ctx context.Context, r kv.Reader) (err error) {
		nkeys, err = writeBackup(ctx, r, bw)
		return err
	}
	if err := kv.WithReader(ctx, db, save); err != nil {
		return fmt.Errorf("could not export db content: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("could not flush the backup file: %w", err)
	}
	if err := fp.Sync(); err != nil {
		return fmt.Errorf("could not sync the backup file: %w", err)
	}
	if err := os.Rename(fp.Name(), abspath); err != nil {
		return fmt.Errorf("could not rename temp file to %q: %w", abspath, err)
	}
	slog.InfoContext(ctx, "saved database backup", "file", abspath, "keys", nkeys)
	return nil
}
