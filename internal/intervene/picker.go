package intervene

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// Picker chooses one of n catalog entries for a key. Implementations must
// return a value in [0, n) for n > 0.
type Picker interface {
	Pick(key string, n int) int
}

// HashPicker picks by hashing the key, so the same turn always yields the
// same phrasing while different turns vary.
type HashPicker struct {
	Seed uint32
}

func (p HashPicker) Pick(key string, n int) int {
	if n <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte{byte(p.Seed), byte(p.Seed >> 8), byte(p.Seed >> 16), byte(p.Seed >> 24)})
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// FixedPicker always picks the same index, clamped to n.
type FixedPicker int

func (p FixedPicker) Pick(_ string, n int) int {
	if n <= 0 || p < 0 {
		return 0
	}
	if int(p) >= n {
		return n - 1
	}
	return int(p)
}

// RandPicker picks pseudo-randomly from a seeded source. It ignores the key.
type RandPicker struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandPicker returns a picker seeded with seed.
func NewRandPicker(seed int64) *RandPicker {
	return &RandPicker{r: rand.New(rand.NewSource(seed))}
}

func (p *RandPicker) Pick(_ string, n int) int {
	if n <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Intn(n)
}
