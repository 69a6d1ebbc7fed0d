// --------------------------------------------------------------------------------
// This file is part of the tabarc project.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
// --------------------------------------------------------------------------------

// Package storage resolves user-supplied paths and URLs to a storage
// backend, and defines the operation-scoped handle contracts every
// backend implements. URL parsing is pure and separated from client
// construction so the resolver can be tested without credentials.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

var (
	// ErrInvalidPath reports a malformed URL: missing authority, empty
	// object path, or an unparseable string.
	ErrInvalidPath = errors.New("storage: invalid path")

	// ErrUnsupportedScheme reports a URL scheme no backend handles.
	ErrUnsupportedScheme = errors.New("storage: unsupported scheme")

	// ErrMissingAccountConfiguration reports an az:// URL that needs a
	// storage account from the environment when none is set.
	ErrMissingAccountConfiguration = errors.New("storage: missing account configuration")
)

// azureAccountEnv supplies the storage account for az:// URLs whose
// authority is the container.
const azureAccountEnv = "AZURE_STORAGE_ACCOUNT"

// Config carries the resolver policy flags.
type Config struct {
	// AzAuthorityIsAccount selects the interpretation of the authority
	// component of az:// URLs: true reads az://account/container/path,
	// false reads az://container/path with the account taken from
	// AZURE_STORAGE_ACCOUNT.
	AzAuthorityIsAccount bool
}

// Scheme identifies a storage backend.
type Scheme string

const (
	SchemeLocal Scheme = ""
	SchemeGS    Scheme = "gs"
	SchemeS3    Scheme = "s3"
	SchemeAzure Scheme = "az"
)

// Location is a parsed, backend-specific address. Path is in the form
// the backend expects: a filesystem path for local, "bucket/key" for
// gs and s3, "container/blob" for az.
type Location struct {
	Scheme  Scheme
	Account string // Azure storage account; empty for other schemes
	Path    string
}

// Resolve parses a raw path or URL into a Location. It touches no
// network; Connect constructs the backend client.
func Resolve(raw string, cfg Config) (*Location, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if !strings.Contains(raw, "://") {
		return &Location{Scheme: SchemeLocal, Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, raw, err)
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return nil, fmt.Errorf("%w: %q: empty path", ErrInvalidPath, raw)
		}
		return &Location{Scheme: SchemeLocal, Path: u.Path}, nil

	case "gs", "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: %q: missing bucket", ErrInvalidPath, raw)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if key == "" {
			return nil, fmt.Errorf("%w: %q: empty object path", ErrInvalidPath, raw)
		}
		return &Location{Scheme: Scheme(u.Scheme), Path: u.Host + "/" + key}, nil

	case "az":
		return resolveAzure(u, raw, cfg)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// resolveAzure applies the authority-interpretation policy. In account
// mode the authority names the storage account and the first path
// segment the container; az:///container/path is accepted with the
// account from the environment. In container mode the authority is the
// container and the account always comes from the environment.
func resolveAzure(u *url.URL, raw string, cfg Config) (*Location, error) {
	if cfg.AzAuthorityIsAccount {
		account := u.Host
		if account == "" {
			account = os.Getenv(azureAccountEnv)
			if account == "" {
				return nil, fmt.Errorf("%w: no storage account in %q and %s not set",
					ErrMissingAccountConfiguration, raw, azureAccountEnv)
			}
		}
		internal := strings.TrimPrefix(u.Path, "/")
		if internal == "" {
			return nil, fmt.Errorf("%w: %q: missing container", ErrInvalidPath, raw)
		}
		return &Location{Scheme: SchemeAzure, Account: account, Path: internal}, nil
	}

	account := os.Getenv(azureAccountEnv)
	if account == "" {
		return nil, fmt.Errorf("%w: %s not set; use --az-url-authority-is-account with az://account/container/path, or set the environment variable",
			ErrMissingAccountConfiguration, azureAccountEnv)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q: missing container", ErrInvalidPath, raw)
	}
	internal := u.Host + u.Path
	return &Location{Scheme: SchemeAzure, Account: account, Path: internal}, nil
}

// Connect constructs the backend client for the location. Credential
// resolution is the SDK default chain for each provider; no retry
// policy is added on top of what the clients ship with.
func (l *Location) Connect(ctx context.Context) (Backend, error) {
	switch l.Scheme {
	case SchemeLocal:
		return NewLocalBackend(), nil
	case SchemeGS:
		return NewGCSBackend(ctx)
	case SchemeS3:
		return NewS3Backend(ctx)
	case SchemeAzure:
		return NewAzureBackend(l.Account)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, l.Scheme)
	}
}

// RangeReader is a random-access storage handle, needed by formats that
// read trailing metadata before streaming (the parquet footer).
type RangeReader interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// FileWriter is a write handle for one physical file. Close finalizes
// the file; Abort discards it, leaving no partial output behind.
// Exactly one of the two must be called.
type FileWriter interface {
	io.WriteCloser
	Abort() error
}

// Backend is a storage handle factory. Paths are in the backend's
// internal form (Location.Path). Handles are scoped to one read or one
// write operation.
type Backend interface {
	// Open returns a sequential read handle.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// OpenRange returns a random-access read handle with a known size.
	OpenRange(ctx context.Context, path string) (RangeReader, error)
	// Create returns a write handle. The file becomes visible at the
	// target path only on Close; Abort removes any partial output.
	Create(ctx context.Context, path string) (FileWriter, error)
	// Size returns the byte size of the object at path.
	Size(ctx context.Context, path string) (int64, error)
	// IsDir reports whether path names a directory (or key prefix with
	// objects under it). A nonexistent path is not a directory.
	IsDir(ctx context.Context, path string) (bool, error)
	// List returns the files under dir, recursively, in sorted order.
	List(ctx context.Context, dir string) ([]string, error)
	// Remove deletes the object at path.
	Remove(ctx context.Context, path string) error
	// MkdirAll creates a directory and parents where the backend has
	// real directories; a no-op on object stores.
	MkdirAll(ctx context.Context, dir string) error
	// Join joins path elements with the backend's separator.
	Join(elem ...string) string
}
