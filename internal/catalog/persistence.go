package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/netip"
	"os"
	"path/filepath"
	"time"
)

const (
	// snapshotVersion is bumped when the file layout changes.
	snapshotVersion = 1

	catalogFileName = "catalog.json"
	appDirName      = "birdwatch"
)

// Snapshot is the on-disk form of a Store.
type Snapshot struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"savedAt"`
	Nodes   []Node    `json:"nodes"`
	Species []Species `json:"species"`
	Birds   []Bird    `json:"birds"`

	rev uint64
}

// Snapshot copies the whole catalog.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{
		Version: snapshotVersion,
		Nodes:   make([]Node, 0, len(s.nodes)),
		Species: make([]Species, 0, len(s.species)),
		Birds:   make([]Bird, 0, len(s.birds)),
		rev:     s.rev,
	}
	for _, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, *n)
	}
	for _, sp := range s.species {
		snap.Species = append(snap.Species, *sp)
	}
	for _, b := range s.birds {
		snap.Birds = append(snap.Birds, *b)
	}
	sortBirds(snap.Birds)
	return snap
}

// Restore replaces the catalog with snap. Sightings that refer to a
// missing node or species are rejected.
func (s *Store) Restore(snap *Snapshot) error {
	fresh := NewStore()
	for _, n := range snap.Nodes {
		addr, err := netip.ParseAddr(n.Address)
		if err != nil {
			return fmt.Errorf("node %d address %q: %w", n.ID, n.Address, ErrInvalid)
		}
		key := nodeKey{addr: addr.Unmap(), port: n.Port}
		if _, dup := fresh.nodeIndex[key]; dup {
			return fmt.Errorf("node %d duplicates %s:%d: %w", n.ID, n.Address, n.Port, ErrInvalid)
		}
		cp := n
		fresh.nodes[n.ID] = &cp
		fresh.nodeIndex[key] = n.ID
		fresh.nextNode = max(fresh.nextNode, n.ID)
	}
	for _, sp := range snap.Species {
		if _, dup := fresh.speciesIndex[sp.Name]; dup {
			return fmt.Errorf("species %q duplicated: %w", sp.Name, ErrInvalid)
		}
		cp := sp
		fresh.species[sp.ID] = &cp
		fresh.speciesIndex[sp.Name] = sp.ID
		fresh.nextSpecies = max(fresh.nextSpecies, sp.ID)
	}
	for _, b := range snap.Birds {
		if _, ok := fresh.species[b.SpeciesID]; !ok {
			return fmt.Errorf("bird %d species %d: %w", b.ID, b.SpeciesID, ErrNotFound)
		}
		if _, ok := fresh.nodes[b.NodeID]; !ok {
			return fmt.Errorf("bird %d node %d: %w", b.ID, b.NodeID, ErrNotFound)
		}
		cp := b
		fresh.birds[b.ID] = &cp
		fresh.nextBird = max(fresh.nextBird, b.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes, s.species, s.birds = fresh.nodes, fresh.species, fresh.birds
	s.nodeIndex, s.speciesIndex = fresh.nodeIndex, fresh.speciesIndex
	s.nextNode, s.nextSpecies, s.nextBird = fresh.nextNode, fresh.nextSpecies, fresh.nextBird
	s.rev++
	return nil
}

// FileStore loads and saves catalog snapshots in a directory.
type FileStore struct {
	dir string
}

// NewFileStore uses dir, or the XDG state directory when dir is empty.
// The directory is created on the first Save.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = defaultCatalogDir()
	}
	return &FileStore{dir: dir}
}

func (f *FileStore) Path() string {
	return filepath.Join(f.dir, catalogFileName)
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (f *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{Version: snapshotVersion}, nil
		}
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if snap.Version > snapshotVersion {
		return nil, fmt.Errorf("catalog version %d is newer than supported %d", snap.Version, snapshotVersion)
	}
	return &snap, nil
}

// Save writes snap with a temp-file-then-rename so readers never see a
// partial file.
func (f *FileStore) Save(snap *Snapshot) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}

	snap.Version = snapshotVersion
	snap.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(f.dir, ".catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.Path()); err != nil {
		return fmt.Errorf("renaming catalog file: %w", err)
	}
	committed = true
	return nil
}

// defaultCatalogDir returns ~/.local/state/birdwatch, respecting
// XDG_STATE_HOME if set.
func defaultCatalogDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}

// Persister saves the store whenever it has changed, on a fixed interval
// and once more when stopped.
type Persister struct {
	store    *Store
	files    *FileStore
	interval time.Duration
	saved    uint64
}

func NewPersister(store *Store, files *FileStore, interval time.Duration) *Persister {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Persister{store: store, files: files, interval: interval, saved: store.Revision()}
}

// Run blocks until ctx is cancelled. It returns the error of the final
// save, if any; periodic failures are logged and retried next tick.
func (p *Persister) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.Flush()
		case <-ticker.C:
			if err := p.Flush(); err != nil {
				log.Printf("Catalog save failed: %v", err)
			}
		}
	}
}

// Flush saves the store if it changed since the last successful save.
// Persister is not safe for concurrent Flush calls.
func (p *Persister) Flush() error {
	if p.store.Revision() == p.saved {
		return nil
	}
	snap := p.store.Snapshot()
	if err := p.files.Save(snap); err != nil {
		return err
	}
	p.saved = snap.rev
	return nil
}
