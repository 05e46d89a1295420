// Copyright (c) 2024 BVK Chaitanya

/*
Package logdir implements a log backend that limits log file(s) size to a fixed
size in a given directory and keeps only a bounded number of old log files.
*/
package logdir

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

type Options struct {
	// ReuseInterval contains the time interval during which a new log backend
	// instance will attempt to reuse (i.e., append-to) existing log file name
	// if present. This avoids filling up the logs directory if the daemon is in
	// a crash-loop.
	ReuseInterval time.Duration

	// TimeLocation contains the timezone for the timestamp in the log file
	// names.
	TimeLocation *time.Location

	// FileSizeLimit is the maximum size of a log file in bytes.
	FileSizeLimit int64

	// MaxFiles is the number of log files kept in the directory. Older files
	// are removed when a new file is opened.
	MaxFiles int

	// FileMode contains the file mode and permissions value for the log files.
	FileMode os.FileMode
}

func (v *Options) setDefaults() {
	if v.ReuseInterval == 0 {
		v.ReuseInterval = time.Hour
	}
	if v.TimeLocation == nil {
		v.TimeLocation = time.UTC
	}
	if v.FileSizeLimit == 0 {
		v.FileSizeLimit = 100 * 1024 * 1024
	}
	if v.MaxFiles == 0 {
		v.MaxFiles = 10
	}
	if v.FileMode == 0 {
		v.FileMode = os.FileMode(0600)
	}
}

func (v *Options) Check() error {
	if v.ReuseInterval < 0 {
		return fmt.Errorf("reuse interval cannot be negative: %w", os.ErrInvalid)
	}
	if v.FileSizeLimit < 1024 {
		return fmt.Errorf("file size limit must be at least 1KB: %w", os.ErrInvalid)
	}
	if v.MaxFiles < 1 {
		return fmt.Errorf("max files must be positive: %w", os.ErrInvalid)
	}
	return nil
}

// Backend is an io.Writer for log messages. It is safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	fp *os.File

	size int64

	dirname, logname string

	opts Options
}

func New(dirname, logname string, opts *Options) (*Backend, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dirname, 0700); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	b := &Backend{
		dirname: dirname,
		logname: logname,
		opts:    *opts,
	}
	fp, size, err := b.openFile(b.opts.ReuseInterval)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	b.fp, b.size = fp, size
	return b, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fp == nil {
		return nil
	}
	err := b.fp.Close()
	b.fp = nil
	return err
}

func (b *Backend) fileName(at time.Time, truncate time.Duration) string {
	at = at.In(b.opts.TimeLocation)
	if truncate != 0 {
		at = at.Truncate(truncate)
	}
	uniq := fmt.Sprintf("%d%02d%02d-%02d%02d%02d.%09d", at.Year(), at.Month(), at.Day(), at.Hour(), at.Minute(), at.Second(), at.Nanosecond())
	return fmt.Sprintf("%s-%s.log", b.logname, uniq)
}

func (b *Backend) openFile(truncate time.Duration) (*os.File, int64, error) {
	filename := b.fileName(time.Now(), truncate)
	fp, err := os.OpenFile(filepath.Join(b.dirname, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, b.opts.FileMode)
	if err != nil {
		return nil, -1, fmt.Errorf("could not open/create log file: %w", err)
	}
	finfo, err := fp.Stat()
	if err != nil {
		fp.Close()
		return nil, -1, fmt.Errorf("could not get file size: %w", err)
	}
	size := finfo.Size()
	if size >= b.opts.FileSizeLimit {
		fp.Close()
		if truncate == 0 {
			return nil, -1, fmt.Errorf("log file %q is already full: %w", filename, os.ErrExist)
		}
		return b.openFile(0)
	}
	b.removeOldFiles(filename)
	return fp, size, nil
}

// removeOldFiles deletes the oldest log files so that at most MaxFiles
// remain. Errors are ignored.
func (b *Backend) removeOldFiles(current string) {
	entries, err := os.ReadDir(b.dirname)
	if err != nil {
		return
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == current {
			continue
		}
		if strings.HasPrefix(name, b.logname+"-") && strings.HasSuffix(name, ".log") {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for len(names) >= b.opts.MaxFiles {
		os.Remove(filepath.Join(b.dirname, names[0]))
		names = names[1:]
	}
}

func (b *Backend) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fp == nil {
		return 0, os.ErrClosed
	}
	if b.size+int64(len(data)) > b.opts.FileSizeLimit {
		fp, size, err := b.openFile(0)
		if err != nil {
			return 0, fmt.Errorf("could not open new log file: %w", err)
		}
		b.fp.Close()
		b.fp, b.size = fp, size
	}
	n, err := b.fp.Write(data)
	b.size += int64(n)
	return n, err
}
