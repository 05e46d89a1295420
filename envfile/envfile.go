// Copyright (c) 2025 BVK Chaitanya

// Package envfile loads environment variables from a dotenv style file into
// the current process environment.
package envfile

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

var nameRe = regexp.MustCompile("^[a-zA-Z][0-9a-zA-Z_]*$")

type options struct {
	searchCwd     bool
	searchParents bool
	overwrite     bool
}

// Option customizes UpdateEnv.
type Option func(*options)

// SearchCurrentDir makes UpdateEnv look for the file in the current directory
// before the home directory. When parents is true, ancestors of the current
// directory are searched too, nearest first.
func SearchCurrentDir(parents bool) Option {
	return func(opts *options) {
		opts.searchCwd = true
		opts.searchParents = parents
	}
}

// OverwriteIfExists makes UpdateEnv replace variables that already have a
// non-empty value in the environment.
func OverwriteIfExists(overwrite bool) Option {
	return func(opts *options) {
		opts.overwrite = overwrite
	}
}

// UpdateEnv updates current process's environment with the values read from
// the env filename found in the user's home directory. The location of the env
// file search path and other behaviors can be changed by the input options.
//
// File contents are parsed with the dotenv syntax, so quoting, comments and
// `export` prefixes are supported. Returns the path of the file used, or an
// empty string when no file was found.
func UpdateEnv(filename string, opts ...Option) (string, error) {
	if strings.ContainsRune(filename, os.PathSeparator) {
		return "", fmt.Errorf("file name contains path separator: %w", os.ErrInvalid)
	}
	var fopts options
	for _, opt := range opts {
		opt(&fopts)
	}
	fpaths, err := searchPaths(filename, &fopts)
	if err != nil {
		return "", err
	}
	for _, fpath := range fpaths {
		vars, err := godotenv.Read(fpath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("could not parse env file %q: %w", fpath, err)
		}
		for key, value := range vars {
			if !nameRe.MatchString(key) {
				return "", fmt.Errorf("invalid environment variable name %q in %q: %w", key, fpath, os.ErrInvalid)
			}
			if len(os.Getenv(key)) != 0 && !fopts.overwrite {
				continue
			}
			if err := os.Setenv(key, value); err != nil {
				return "", fmt.Errorf("could not set variable %q: %w", key, err)
			}
		}
		return fpath, nil
	}
	return "", nil
}

func searchPaths(filename string, fopts *options) ([]string, error) {
	var fpaths []string
	if fopts.searchCwd {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		fpaths = []string{filepath.Join(cwd, filename)}
		if fopts.searchParents {
			last, dir := cwd, filepath.Dir(cwd)
			for dir != last {
				fpaths = append(fpaths, filepath.Join(dir, filename))
				last, dir = dir, filepath.Dir(dir)
			}
		}
	}
	user, err := user.Current()
	if err != nil {
		return nil, err
	}
	if len(user.HomeDir) == 0 {
		return nil, fmt.Errorf("could not determine current user's home directory")
	}
	return append(fpaths, filepath.Join(user.HomeDir, filename)), nil
}
