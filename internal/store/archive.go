package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"airline_ops/internal/fleet"
	"airline_ops/internal/models"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Archive keeps a compressed msgpack copy of the state every Every ticks.
type Archive struct {
	Dir   string
	Every int
}

func NewArchive(dir string, every int) *Archive {
	return &Archive{Dir: dir, Every: every}
}

// ArchiveName is the file name used for the snapshot taken at tick.
func ArchiveName(tick int) string {
	return fmt.Sprintf("tick-%06d.msgpack.zst", tick)
}

// Persist archives st when its tick falls on the archive interval.
func (a *Archive) Persist(_ context.Context, st models.GameState, res fleet.TickResult) error {
	if a.Every <= 0 || res.Tick%a.Every != 0 {
		return nil
	}
	_, err := a.Store(st)
	return err
}

// Store writes st unconditionally and returns the file path.
func (a *Archive) Store(st models.GameState) (string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(a.Dir, ArchiveName(st.Tick))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return "", err
	}
	enc := msgpack.NewEncoder(zw)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(&st); err != nil {
		zw.Close()
		return "", fmt.Errorf("encode archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, os.Rename(tmp, path)
}

// LoadArchive decodes a file written by Store.
func LoadArchive(path string) (models.GameState, error) {
	var st models.GameState
	f, err := os.Open(path)
	if err != nil {
		return st, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return st, err
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&st); err != nil {
		return st, fmt.Errorf("decode archive %s: %w", path, err)
	}
	return st, nil
}

// List returns archive paths oldest first.
func (a *Archive) List() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(a.Dir, "tick-*.msgpack.zst"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	return paths, nil
}
