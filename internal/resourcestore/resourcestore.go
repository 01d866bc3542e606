// Package resourcestore implements the blob resource store (C10): an
// optionally gzip-compressed, expiring store for large tool outputs (e.g.
// full file contents referenced by a truncated response) addressed by
// opaque URIs.
package resourcestore

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// DefaultExpiry is the default lifetime of a stored blob before it becomes
// eligible for Sweep, within the spec's 1-24h guidance.
const DefaultExpiry = 4 * time.Hour

// DefaultWriteTimeout bounds how long Put waits to acquire the writer lock
// before degrading to a truncated-without-URI result.
const DefaultWriteTimeout = 200 * time.Millisecond

// Store is an optionally gzip-compressed, flock-serialized blob store rooted
// at a directory. Each blob is one file on disk, named by its URI, holding a
// gzip stream (or the raw bytes when compression is off), with its expiry
// time in Unix milliseconds encoded in the filename.
type Store struct {
	dir          string
	lock         *flock.Flock
	writeTimeout time.Duration
	expiry       time.Duration
	compress     bool
}

// New opens (creating if necessary) a resource store rooted at dir. When
// compress is false (config.ResourcesConfig.Compress), blobs are written
// uncompressed and read back via a passthrough reader, trading disk space
// for avoiding gzip overhead on already-compressed or latency-sensitive
// payloads.
func New(dir string, expiry, writeTimeout time.Duration, compress bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create resource store dir: %w", err)
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Store{
		dir:          dir,
		lock:         flock.New(filepath.Join(dir, ".lock")),
		writeTimeout: writeTimeout,
		expiry:       expiry,
		compress:     compress,
	}, nil
}

// PutResult reports the outcome of a Put call.
type PutResult struct {
	// URI is the opaque resource identifier. Empty if the write degraded.
	URI string
	// Truncated is true when the write could not complete within the
	// write-timeout and no URI is available; the caller's response should
	// fall back to an inline truncated payload with no resource reference.
	Truncated bool
}

// Put stores data under a new opaque URI, gzip-compressed unless the store
// was opened with compress=false. If the writer
// lock cannot be acquired within the store's write-timeout, Put returns a
// degraded PutResult (Truncated=true, URI="") rather than blocking or
// erroring, per the spec's non-blocking-write contract.
func (s *Store) Put(ctx context.Context, data []byte) (PutResult, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil || !locked {
		return PutResult{Truncated: true}, nil
	}
	defer s.lock.Unlock()

	id := uuid.NewString()
	expiresAt := time.Now().Add(s.expiry).UnixMilli()
	ext := "gz"
	if !s.compress {
		ext = "raw"
	}
	name := fmt.Sprintf("%s.%d.%s", id, expiresAt, ext)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return PutResult{}, fmt.Errorf("create resource blob: %w", err)
	}
	defer f.Close()

	if !s.compress {
		if _, err := f.Write(data); err != nil {
			return PutResult{}, fmt.Errorf("write resource blob: %w", err)
		}
		return PutResult{URI: "resource://" + id}, nil
	}

	gw := gzip.NewWriter(f)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return PutResult{}, fmt.Errorf("write resource blob: %w", err)
	}
	if err := gw.Close(); err != nil {
		return PutResult{}, fmt.Errorf("flush resource blob: %w", err)
	}

	return PutResult{URI: "resource://" + id}, nil
}

// ErrNotFound is returned by Get when the URI does not resolve to a blob,
// either because it never existed or because it has expired and been
// swept.
var ErrNotFound = fmt.Errorf("resource not found")

// Get retrieves and decompresses the blob for uri.
func (s *Store) Get(ctx context.Context, uri string) ([]byte, error) {
	id, ok := parseURI(uri)
	if !ok {
		return nil, ErrNotFound
	}

	path, expiresAt, compressed, ok := s.findBlob(id)
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().UnixMilli() > expiresAt {
		_ = os.Remove(path)
		return nil, ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open resource blob: %w", err)
	}
	defer f.Close()

	if !compressed {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, f); err != nil {
			return nil, fmt.Errorf("read resource blob: %w", err)
		}
		return buf.Bytes(), nil
	}

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, gr); err != nil {
		return nil, fmt.Errorf("decompress resource blob: %w", err)
	}
	return buf.Bytes(), nil
}

// Sweep removes all blobs whose expiry has passed. Returns the count
// removed. Nothing in the server calls it on a schedule; outside of Sweep,
// an expired blob is deleted only when Get finds it.
func (s *Store) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read resource store dir: %w", err)
	}

	now := time.Now().UnixMilli()
	removed := 0
	for _, e := range entries {
		if e.IsDir() || e.Name() == ".lock" {
			continue
		}
		_, expiresAt, _, ok := parseBlobName(e.Name())
		if !ok {
			continue
		}
		if now > expiresAt {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *Store) findBlob(id string) (path string, expiresAt int64, compressed bool, ok bool) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", 0, false, false
	}
	for _, e := range entries {
		gotID, gotExpiry, gotCompressed, matched := parseBlobName(e.Name())
		if matched && gotID == id {
			return filepath.Join(s.dir, e.Name()), gotExpiry, gotCompressed, true
		}
	}
	return "", 0, false, false
}

func parseURI(uri string) (string, bool) {
	const prefix = "resource://"
	if len(uri) <= len(prefix) || uri[:len(prefix)] != prefix {
		return "", false
	}
	return uri[len(prefix):], true
}

func parseBlobName(name string) (id string, expiresAt int64, compressed bool, ok bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 3 || (parts[2] != "gz" && parts[2] != "raw") {
		return "", 0, false, false
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, false, false
	}
	return parts[0], ts, parts[2] == "gz", true
}
