// Package words holds the game vocabulary: every term with its embedding
// vector, loaded once from a word2vec model and read-only afterwards.
//
// A Store is safe for concurrent use without locking.
package words

import (
	"errors"
	"math"
	"math/rand"

	"golang.org/x/exp/slices"
)

var (
	ErrNotFound        = errors.New("term not found")
	ErrEmptyVocabulary = errors.New("vocabulary is empty")
)

// Entry is one vocabulary term and its embedding.
type Entry struct {
	Term   string
	Vector []float32
}

// Neighbor is a term scored against an anchor term.
type Neighbor struct {
	Term       string  `json:"term"`
	Similarity float64 `json:"similarity"`
}

type Store struct {
	entries     []Entry
	index       map[string]int
	dim         int
	fingerprint string
	pick        func(n int) int
}

type StoreOption func(*Store)

// WithPicker replaces the uniform random index source used by RandomTerm.
// pick must return a value in [0, n).
func WithPicker(pick func(n int) int) StoreOption {
	return func(s *Store) {
		s.pick = pick
	}
}

// WithFingerprint sets the identifier of the model the entries came from.
func WithFingerprint(fp string) StoreOption {
	return func(s *Store) {
		s.fingerprint = fp
	}
}

// New builds a store from entries, kept in the given order. All vectors must
// share one dimension.
func New(entries []Entry, opts ...StoreOption) (*Store, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyVocabulary
	}

	s := &Store{
		entries: entries,
		index:   make(map[string]int, len(entries)),
		dim:     len(entries[0].Vector),
		pick:    rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}

	for i, e := range entries {
		if len(e.Vector) != s.dim {
			return nil, malformedf("entry %d (%q) has dimension %d, want %d", i, e.Term, len(e.Vector), s.dim)
		}
		// first occurrence wins
		if _, ok := s.index[e.Term]; !ok {
			s.index[e.Term] = i
		}
	}

	return s, nil
}

// Len returns the number of vocabulary entries.
func (s *Store) Len() int { return len(s.entries) }

// Dim returns the embedding dimension.
func (s *Store) Dim() int { return s.dim }

// Fingerprint identifies the model the store was loaded from. Empty when the
// store was built in memory without WithFingerprint.
func (s *Store) Fingerprint() string { return s.fingerprint }

// Contains reports whether term is in the vocabulary.
func (s *Store) Contains(term string) bool {
	_, ok := s.index[term]
	return ok
}

// Vector returns the embedding of an exact, already normalized term.
// The returned slice must not be modified.
func (s *Store) Vector(term string) ([]float32, bool) {
	i, ok := s.index[term]
	if !ok {
		return nil, false
	}
	return s.entries[i].Vector, true
}

// Similarity returns the dot product of the two terms' vectors.
func (s *Store) Similarity(a, b string) (float64, error) {
	va, ok := s.Vector(a)
	if !ok {
		return 0, ErrNotFound
	}
	vb, ok := s.Vector(b)
	if !ok {
		return 0, ErrNotFound
	}
	return Dot(va, vb), nil
}

// NearestNeighbors scores every entry other than term itself against term and
// returns the count best, by descending dot product. Equal scores keep
// vocabulary order. A count larger than the vocabulary returns everything.
func (s *Store) NearestNeighbors(term string, count int) ([]Neighbor, error) {
	anchor, ok := s.Vector(term)
	if !ok {
		return nil, ErrNotFound
	}
	if count <= 0 {
		return []Neighbor{}, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	scoreds := make([]scored, 0, len(s.entries))
	for i, e := range s.entries {
		if e.Term == term {
			continue
		}
		scoreds = append(scoreds, scored{idx: i, score: Dot(anchor, e.Vector)})
	}

	slices.SortStableFunc(scoreds, func(a, b scored) int {
		return compareDesc(a.score, b.score)
	})

	if count > len(scoreds) {
		count = len(scoreds)
	}
	out := make([]Neighbor, count)
	for n := 0; n < count; n++ {
		out[n] = Neighbor{
			Term:       s.entries[scoreds[n].idx].Term,
			Similarity: scoreds[n].score,
		}
	}
	return out, nil
}

// RandomTerm returns a term drawn uniformly from the vocabulary.
func (s *Store) RandomTerm() string {
	return s.entries[s.pick(len(s.entries))].Term
}

// Terms returns the vocabulary terms in load order.
func (s *Store) Terms() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Term
	}
	return out
}

// Dot is the similarity measure of the game: the plain dot product, with no
// division by the norms. Vectors are expected to be normalized on load.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// compareDesc orders higher scores first and NaN last.
func compareDesc(a, b float64) int {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return 1
	case math.IsNaN(b):
		return -1
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
