// Copyright 2026 The mlnative Authors
// SPDX-License-Identifier: Apache-2.0

package renderstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adonm/mlnative/lib/codec"
)

// entryHeaderSize is the fixed frame prefix: 1-byte compression tag
// plus the uncompressed payload size as a big-endian uint64.
const entryHeaderSize = 1 + 8

var pngSignature = []byte("\x89PNG")

// Meta is the per-entry metadata record, stored CBOR-encoded and
// compressed next to the payload.
type Meta struct {
	Request   Request   `cbor:"request"`
	ImageHash string    `cbor:"image_hash"`
	CreatedAt time.Time `cbor:"created_at"`
	Size      int64     `cbor:"size"`
}

// Store is a content-addressed cache rooted at one directory. Entries
// are sharded by the first key byte (two hex characters) to keep
// directory listings small. Safe for concurrent use by independent
// processes: writes are atomic temp-plus-rename, reads see either the
// old entry or the new one.
type Store struct {
	dir    string
	logger *slog.Logger
}

// Open creates or reuses the cache directory. A nil logger means
// slog.Default().
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("opening render cache: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the cache root directory.
func (s *Store) Dir() string { return s.dir }

// Put stores image under key along with its metadata record. An
// existing entry is replaced atomically. PNG payloads are stored
// uncompressed; anything else gets LZ4 with a fallback to uncompressed
// when the payload does not shrink.
func (s *Store) Put(key Key, image []byte, meta Meta) error {
	tag := CompressionLZ4
	if bytes.HasPrefix(image, pngSignature) {
		tag = CompressionNone
	}
	if err := s.writeFramed(s.entryPath(key), image, tag); err != nil {
		return fmt.Errorf("storing cache entry %s: %w", FormatKey(key), err)
	}

	record, err := codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding cache metadata %s: %w", FormatKey(key), err)
	}
	if err := s.writeFramed(s.metaPath(key), record, CompressionZstd); err != nil {
		return fmt.Errorf("storing cache metadata %s: %w", FormatKey(key), err)
	}

	s.logger.Debug("cache entry stored",
		"key", FormatKey(key),
		"size", len(image),
		"compression", tag.String(),
	)
	return nil
}

// Get returns the payload stored under key. The second return is
// false on a miss; errors are reserved for corrupt or unreadable
// entries.
func (s *Store) Get(key Key) ([]byte, bool, error) {
	payload, found, err := s.readFramed(s.entryPath(key))
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry %s: %w", FormatKey(key), err)
	}
	return payload, found, nil
}

// Meta returns the metadata record stored under key.
func (s *Store) Meta(key Key) (Meta, bool, error) {
	record, found, err := s.readFramed(s.metaPath(key))
	if err != nil || !found {
		return Meta{}, false, err
	}
	var meta Meta
	if err := codec.Unmarshal(record, &meta); err != nil {
		return Meta{}, false, fmt.Errorf("decoding cache metadata %s: %w", FormatKey(key), err)
	}
	return meta, true, nil
}

// writeFramed writes tag-framed, possibly compressed data to path
// atomically. An incompressible payload degrades to CompressionNone
// rather than failing.
func (s *Store) writeFramed(path string, data []byte, tag CompressionTag) error {
	payload, err := compress(data, tag)
	if errors.Is(err, errIncompressible) {
		tag = CompressionNone
		payload = data
	} else if err != nil {
		return err
	}

	frame := make([]byte, entryHeaderSize+len(payload))
	frame[0] = byte(tag)
	binary.BigEndian.PutUint64(frame[1:entryHeaderSize], uint64(len(data)))
	copy(frame[entryHeaderSize:], payload)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	temp, err := os.CreateTemp(filepath.Dir(path), ".write-*")
	if err != nil {
		return err
	}
	if _, err := temp.Write(frame); err != nil {
		temp.Close()
		os.Remove(temp.Name())
		return err
	}
	if err := temp.Close(); err != nil {
		os.Remove(temp.Name())
		return err
	}
	if err := os.Rename(temp.Name(), path); err != nil {
		os.Remove(temp.Name())
		return err
	}
	return nil
}

// readFramed reads and decompresses a framed file. A missing file is
// a miss, not an error.
func (s *Store) readFramed(path string) ([]byte, bool, error) {
	frame, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(frame) < entryHeaderSize {
		return nil, false, fmt.Errorf("truncated entry: %d bytes", len(frame))
	}

	tag := CompressionTag(frame[0])
	size := binary.BigEndian.Uint64(frame[1:entryHeaderSize])
	payload, err := decompress(frame[entryHeaderSize:], tag, int(size))
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *Store) entryPath(key Key) string {
	hexKey := FormatKey(key)
	return filepath.Join(s.dir, hexKey[:2], hexKey+".entry")
}

func (s *Store) metaPath(key Key) string {
	hexKey := FormatKey(key)
	return filepath.Join(s.dir, hexKey[:2], hexKey+".meta")
}
