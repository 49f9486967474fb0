package data

import (
	"math/rand"
)

// Sampler yields the order in which a loader visits dataset indices.
// SetEpoch reseeds epoch-dependent shuffling; samplers that do not
// shuffle ignore it.
type Sampler interface {
	Indices() []int
	SetEpoch(epoch int)
}

// SequentialSampler visits indices in order. Used for evaluation.
type SequentialSampler struct {
	n int
}

func NewSequentialSampler(n int) *SequentialSampler {
	return &SequentialSampler{n: n}
}

func (s *SequentialSampler) Indices() []int {
	indices := make([]int, s.n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

func (s *SequentialSampler) SetEpoch(int) {}

// RandomSampler shuffles indices with a seed derived from the base seed
// and the epoch, so runs are reproducible and every epoch sees a fresh
// permutation.
type RandomSampler struct {
	n     int
	seed  int64
	epoch int
}

func NewRandomSampler(n int, seed int64) *RandomSampler {
	return &RandomSampler{n: n, seed: seed}
}

func (s *RandomSampler) Indices() []int {
	rng := rand.New(rand.NewSource(s.seed + int64(s.epoch)))
	return rng.Perm(s.n)
}

func (s *RandomSampler) SetEpoch(epoch int) {
	s.epoch = epoch
}

// DistributedSampler partitions a dataset across the ranks of a process
// group. Every rank receives the same number of indices; when the
// dataset does not divide evenly, the permutation wraps around so the
// first indices pad the tail. Shards are disjoint for the unpadded
// portion: rank r takes positions r, r+world, r+2*world, ... of the
// shared permutation.
type DistributedSampler struct {
	n          int
	rank       int
	worldSize  int
	shuffle    bool
	seed       int64
	epoch      int
	numSamples int
}

func NewDistributedSampler(n, rank, worldSize int, shuffle bool, seed int64) *DistributedSampler {
	numSamples := (n + worldSize - 1) / worldSize
	return &DistributedSampler{
		n:          n,
		rank:       rank,
		worldSize:  worldSize,
		shuffle:    shuffle,
		seed:       seed,
		numSamples: numSamples,
	}
}

// NumSamples is the per-rank shard size.
func (s *DistributedSampler) NumSamples() int {
	return s.numSamples
}

// SetEpoch must be called before each epoch so every rank draws the
// same permutation and the shuffle differs between epochs.
func (s *DistributedSampler) SetEpoch(epoch int) {
	s.epoch = epoch
}

func (s *DistributedSampler) Indices() []int {
	var order []int
	if s.shuffle {
		rng := rand.New(rand.NewSource(s.seed + int64(s.epoch)))
		order = rng.Perm(s.n)
	} else {
		order = make([]int, s.n)
		for i := range order {
			order[i] = i
		}
	}

	// Pad to a multiple of the world size by wrapping around.
	total := s.numSamples * s.worldSize
	for len(order) < total {
		order = append(order, order[:min(total-len(order), s.n)]...)
	}

	indices := make([]int, 0, s.numSamples)
	for i := s.rank; i < total; i += s.worldSize {
		indices = append(indices, order[i])
	}
	return indices
}
