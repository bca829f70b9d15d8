package storage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FlatFileDB implements DB as a single flat file holding the whole set in
// memory and rewritten in full on every mutation. It is the second on-disk
// backend of storage.DB beside BadgerDB.
//
// Grounded on original_source/layer1-core/chainstate/coins.cpp's Load/Persist
// (the non-LevelDB branch): a count-prefixed sequence of records read whole
// into memory at open and rewritten whole on every Persist. coins.cpp's
// on-disk record is fixed-width and UTXO-specific (hash/index/value/script);
// this backend generalizes the same count-prefixed shape to the arbitrary
// byte keys and values the storage.DB contract requires of any backend, with
// length prefixes in place of coins.cpp's fixed field widths. The file does
// not hold fixed-width UTXO records: each record is a chainstate key
// ("c/" + txid + big-endian index) and an encodeCoin value, both
// length-prefixed.
//
// Durability uses write-then-rename rather than coins.cpp's direct
// truncate-and-overwrite: persistLocked writes to a temp file in the same
// directory and renames it over the target, so a crash mid-write never
// leaves a half-written set on disk. (internal/blockstore's flushIndexLocked
// does not do this; it overwrites its index with os.WriteFile.)
type FlatFileDB struct {
	mu   sync.Mutex
	path string
	data map[string][]byte
}

// NewFlatFile opens (creating if necessary) the flat file at path, loading
// its full contents into memory.
func NewFlatFile(path string) (*FlatFileDB, error) {
	f := &FlatFileDB{
		path: path,
		data: make(map[string][]byte),
	}
	if err := f.loadLocked(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FlatFileDB) loadLocked() error {
	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: open flat file %s: %w", f.path, err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		if err == io.EOF {
			return nil // empty file, e.g. created but never persisted
		}
		return fmt.Errorf("storage: read flat file %s: %w", f.path, err)
	}
	for i := uint32(0); i < count; i++ {
		key, err := readLenPrefixed(r)
		if err != nil {
			return fmt.Errorf("storage: corrupt flat file %s: %w", f.path, err)
		}
		value, err := readLenPrefixed(r)
		if err != nil {
			return fmt.Errorf("storage: corrupt flat file %s: %w", f.path, err)
		}
		f.data[string(key)] = value
	}
	return nil
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// persistLocked rewrites the whole file: [count: u32] then per entry
// [keyLen: u32][key][valueLen: u32][value], written to a temp file and
// renamed into place.
func (f *FlatFileDB) persistLocked() error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file for %s: %w", f.path, err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(f.data)))
	if _, err := w.Write(countBuf[:]); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write flat file %s: %w", f.path, err)
	}
	for k, v := range f.data {
		if err := writeLenPrefixed(w, []byte(k)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("storage: write flat file %s: %w", f.path, err)
		}
		if err := writeLenPrefixed(w, v); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("storage: write flat file %s: %w", f.path, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: flush flat file %s: %w", f.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: sync flat file %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close flat file %s: %w", f.path, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename flat file %s: %w", f.path, err)
	}
	return nil
}

func writeLenPrefixed(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// Get retrieves a value by key. Returns ErrNotFound if key is absent.
func (f *FlatFileDB) Get(key []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Put stores a key-value pair and rewrites the backing file.
func (f *FlatFileDB) Put(key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[string(key)] = append([]byte(nil), value...)
	return f.persistLocked()
}

// Delete removes a key and rewrites the backing file.
func (f *FlatFileDB) Delete(key []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, string(key))
	return f.persistLocked()
}

// Has checks if a key exists.
func (f *FlatFileDB) Has(key []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[string(key)]
	return ok, nil
}

// ForEach iterates over all keys with the given prefix.
func (f *FlatFileDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := string(prefix)
	for k, v := range f.data {
		if len(k) < len(p) || k[:len(p)] != p {
			continue
		}
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

// Close persists any unflushed state. Every mutating call already persists
// synchronously, so this is a final confirmation write, not a required one.
func (f *FlatFileDB) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persistLocked()
}
