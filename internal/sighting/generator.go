package sighting

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Generator builds randomized events. The zero value is not usable; use
// NewGenerator or NewSeededGenerator.
type Generator struct {
	intn func(n int) int
	now  func() time.Time
}

// NewGenerator returns a Generator drawing from the process-wide random
// source, which is safe for concurrent use by every session.
func NewGenerator() *Generator {
	return &Generator{
		intn: rand.Intn,
		now:  time.Now,
	}
}

// NewSeededGenerator returns a deterministic Generator. The private source
// is guarded so the generator may still be shared between goroutines.
func NewSeededGenerator(seed int64, now func() time.Time) *Generator {
	var mu sync.Mutex
	r := rand.New(rand.NewSource(seed))
	if now == nil {
		now = time.Now
	}
	return &Generator{
		intn: func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return r.Intn(n)
		},
		now: now,
	}
}

var defaultGenerator = NewGenerator()

// Generate returns a new event from the process-wide generator.
func Generate() Event {
	return defaultGenerator.Generate()
}

// Generate returns a new event stamped with the current UTC time.
func (g *Generator) Generate() Event {
	return Event{
		Timestamp: g.now().UTC(),
		Species:   g.Species(),
		Name:      g.Name(),
	}
}

// Species returns a random species label such as "Lesser Spotted Gull".
func (g *Generator) Species() string {
	return speciesPrefixes[g.intn(len(speciesPrefixes))] + " " +
		speciesSuffixes[g.intn(len(speciesSuffixes))]
}

// Name returns a random person-like label such as "Lady Ann Webb".
func (g *Generator) Name() string {
	return strings.Join([]string{
		titles[g.intn(len(titles))],
		firstNames[g.intn(len(firstNames))],
		lastNames[g.intn(len(lastNames))],
	}, " ")
}

// AllSpecies returns every species label the generator can produce, in
// prefix-major order.
func AllSpecies() []string {
	out := make([]string, 0, len(speciesPrefixes)*len(speciesSuffixes))
	for _, p := range speciesPrefixes {
		for _, s := range speciesSuffixes {
			out = append(out, p+" "+s)
		}
	}
	return out
}

var (
	speciesSet = func() map[string]bool {
		m := make(map[string]bool)
		for _, s := range AllSpecies() {
			m[s] = true
		}
		return m
	}()
	titleSet = toSet(titles[:])
	firstSet = toSet(firstNames[:])
	lastSet  = toSet(lastNames[:])
)

func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// IsSpecies reports whether s is one of the generated species labels.
func IsSpecies(s string) bool {
	return speciesSet[s]
}

// IsName reports whether s could have been produced by Name. Titles and
// names are single words, so the label splits into exactly three parts.
func IsName(s string) bool {
	parts := strings.Split(s, " ")
	if len(parts) != 3 {
		return false
	}
	return titleSet[parts[0]] && firstSet[parts[1]] && lastSet[parts[2]]
}

// Combinations returns how many distinct species and name labels exist.
func Combinations() (species, names int) {
	return len(speciesPrefixes) * len(speciesSuffixes),
		len(titles) * len(firstNames) * len(lastNames)
}
