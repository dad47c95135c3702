package catalog

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"
)

type nodeKey struct {
	addr netip.Addr
	port int
}

// Store is the in-memory catalog. Everything it returns is a copy.
type Store struct {
	mu      sync.RWMutex
	nodes   map[int64]*Node
	species map[int64]*Species
	birds   map[int64]*Bird

	nodeIndex    map[nodeKey]int64
	speciesIndex map[string]int64

	nextNode    int64
	nextSpecies int64
	nextBird    int64

	// rev increases on every mutation so persistence can tell whether a
	// save is due.
	rev uint64
}

func NewStore() *Store {
	return &Store{
		nodes:        make(map[int64]*Node),
		species:      make(map[int64]*Species),
		birds:        make(map[int64]*Bird),
		nodeIndex:    make(map[nodeKey]int64),
		speciesIndex: make(map[string]int64),
	}
}

func validName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is empty: %w", kind, ErrInvalid)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%s name longer than %d bytes: %w", kind, maxNameLen, ErrInvalid)
	}
	return nil
}

// EnsureNode returns the node at address:port, creating it with name if it
// does not exist yet. The name of an existing node is left unchanged.
func (s *Store) EnsureNode(address string, port int, name string) (Node, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return Node{}, fmt.Errorf("node address %q: %w", address, ErrInvalid)
	}
	if port < 1 || port > 65535 {
		return Node{}, fmt.Errorf("node port %d: %w", port, ErrInvalid)
	}
	if err := validName("node", name); err != nil {
		return Node{}, err
	}
	key := nodeKey{addr: addr.Unmap(), port: port}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.nodeIndex[key]; ok {
		return *s.nodes[id], nil
	}
	s.nextNode++
	n := &Node{ID: s.nextNode, Name: name, Address: key.addr.String(), Port: port}
	s.nodes[n.ID] = n
	s.nodeIndex[key] = n.ID
	s.rev++
	return *n, nil
}

func (s *Store) EnsureSpecies(name string) (Species, error) {
	if err := validName("species", name); err != nil {
		return Species{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.speciesIndex[name]; ok {
		return *s.species[id], nil
	}
	s.nextSpecies++
	sp := &Species{ID: s.nextSpecies, Name: name}
	s.species[sp.ID] = sp
	s.speciesIndex[name] = sp.ID
	s.rev++
	return *sp, nil
}

// AddBird records a sighting. The species and node must already exist.
func (s *Store) AddBird(ts time.Time, name string, speciesID, nodeID int64) (Bird, error) {
	if err := validName("bird", name); err != nil {
		return Bird{}, err
	}
	if ts.IsZero() {
		return Bird{}, fmt.Errorf("bird timestamp missing: %w", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.species[speciesID]; !ok {
		return Bird{}, fmt.Errorf("species %d: %w", speciesID, ErrNotFound)
	}
	if _, ok := s.nodes[nodeID]; !ok {
		return Bird{}, fmt.Errorf("node %d: %w", nodeID, ErrNotFound)
	}
	s.nextBird++
	b := &Bird{ID: s.nextBird, Timestamp: ts.UTC(), Name: name, SpeciesID: speciesID, NodeID: nodeID}
	s.birds[b.ID] = b
	s.rev++
	return *b, nil
}

func (s *Store) Node(id int64) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return *n, nil
}

func (s *Store) Species(id int64) (Species, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.species[id]
	if !ok {
		return Species{}, fmt.Errorf("species %d: %w", id, ErrNotFound)
	}
	return *sp, nil
}

func (s *Store) Bird(id int64) (Bird, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.birds[id]
	if !ok {
		return Bird{}, fmt.Errorf("bird %d: %w", id, ErrNotFound)
	}
	return *b, nil
}

// Nodes lists every node ordered by name, then id.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SpeciesList lists every species ordered by name, then id.
func (s *Store) SpeciesList() []Species {
	s.mu.RLock()
	out := make([]Species, 0, len(s.species))
	for _, sp := range s.species {
		out = append(out, *sp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Birds returns the sightings matching q, newest first. Search is a
// case-insensitive substring match on the bird's name.
func (s *Store) Birds(q Query) []Bird {
	search := strings.ToLower(q.Search)

	s.mu.RLock()
	out := make([]Bird, 0, len(s.birds))
	for _, b := range s.birds {
		if q.SpeciesID != 0 && b.SpeciesID != q.SpeciesID {
			continue
		}
		if q.NodeID != 0 && b.NodeID != q.NodeID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(b.Name), search) {
			continue
		}
		out = append(out, *b)
	}
	s.mu.RUnlock()

	sortBirds(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func sortBirds(birds []Bird) {
	sort.Slice(birds, func(i, j int) bool {
		if !birds[i].Timestamp.Equal(birds[j].Timestamp) {
			return birds[i].Timestamp.After(birds[j].Timestamp)
		}
		return birds[i].ID > birds[j].ID
	})
}

// DeleteNode removes a node and every sighting it reported.
func (s *Store) DeleteNode(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	addr, _ := netip.ParseAddr(n.Address)
	delete(s.nodeIndex, nodeKey{addr: addr, port: n.Port})
	delete(s.nodes, id)
	for bid, b := range s.birds {
		if b.NodeID == id {
			delete(s.birds, bid)
		}
	}
	s.rev++
	return nil
}

// DeleteSpecies removes a species and every sighting of it.
func (s *Store) DeleteSpecies(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.species[id]
	if !ok {
		return fmt.Errorf("species %d: %w", id, ErrNotFound)
	}
	delete(s.speciesIndex, sp.Name)
	delete(s.species, id)
	for bid, b := range s.birds {
		if b.SpeciesID == id {
			delete(s.birds, bid)
		}
	}
	s.rev++
	return nil
}

// Summary counts sightings per species and per node, busiest first.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perSpecies := make(map[int64]*Count, len(s.species))
	for id, sp := range s.species {
		perSpecies[id] = &Count{ID: id, Name: sp.Name}
	}
	perNode := make(map[int64]*Count, len(s.nodes))
	for id, n := range s.nodes {
		perNode[id] = &Count{ID: id, Name: n.Name}
	}

	sum := Summary{Total: len(s.birds)}
	for _, b := range s.birds {
		if b.Timestamp.After(sum.LastSeen) {
			sum.LastSeen = b.Timestamp
		}
		for _, c := range []*Count{perSpecies[b.SpeciesID], perNode[b.NodeID]} {
			c.Count++
			if b.Timestamp.After(c.LastSeen) {
				c.LastSeen = b.Timestamp
			}
		}
	}

	sum.PerSpecies = sortCounts(perSpecies)
	sum.PerNode = sortCounts(perNode)
	return sum
}

func sortCounts(m map[int64]*Count) []Count {
	out := make([]Count, 0, len(m))
	for _, c := range m {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Revision changes whenever the catalog does.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}
