package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const metaFile = "cache_meta.json"

// pairMeta is the sidecar written next to a persisted pair.
type pairMeta struct {
	ResourceID string    `json:"resource_id"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// diskStore persists fetched pairs under <dir>/<resource_id>/ so a restart
// can serve artifacts before any network refresh.
type diskStore struct {
	dir string
}

func newDiskStore(dir string) *diskStore {
	return &diskStore{dir: dir}
}

// writePair persists both documents and the meta sidecar atomically per
// file. The meta file is written last so a half-written pair is treated as
// absent on reload.
func (s *diskStore) writePair(id string, manifest, catalog []byte, fetchedAt time.Time) error {
	dir := filepath.Join(s.dir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}
	if err := writeAtomic(filepath.Join(dir, manifestFile), manifest); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, catalogFile), catalog); err != nil {
		return err
	}
	meta, _ := json.Marshal(pairMeta{ResourceID: id, FetchedAt: fetchedAt.UTC()})
	return writeAtomic(filepath.Join(dir, metaFile), meta)
}

// readPair loads a persisted pair. A directory without a complete pair and
// meta sidecar returns os.ErrNotExist.
func (s *diskStore) readPair(id string) (manifest, catalog []byte, meta pairMeta, err error) {
	dir := filepath.Join(s.dir, id)
	metaData, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, nil, pairMeta{}, err
	}
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, nil, pairMeta{}, fmt.Errorf("cache: decode meta for %s: %w", id, err)
	}
	manifest, err = os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, nil, pairMeta{}, err
	}
	catalog, err = os.ReadFile(filepath.Join(dir, catalogFile))
	if err != nil {
		return nil, nil, pairMeta{}, err
	}
	return manifest, catalog, meta, nil
}

// list returns the resource ids with a persisted pair.
func (s *diskStore) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, e.Name(), metaFile)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// remove deletes the persisted pair for one resource.
func (s *diskStore) remove(id string) error {
	return os.RemoveAll(filepath.Join(s.dir, id))
}

// writeAtomic writes content via tmp file, fsync, rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".raido-tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("cache: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("cache: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("cache: rename: %w", err)
	}
	success = true
	return nil
}
