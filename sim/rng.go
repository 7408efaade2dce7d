package sim

import (
	"hash/fnv"
	"math/rand"
)

// startStream is hashed into the seed of the start-time draw.
const startStream = "start_times"

// PopulationRNG holds the random streams used to draw a consumer population.
// Work amounts come straight from the seed; start times come from the seed
// XOR a hash of their stream name. Drawing more work values never shifts the
// start times, so adding consumers keeps the earlier ones unchanged.
//
// Thread-safety: NOT thread-safe.
type PopulationRNG struct {
	Work  *rand.Rand
	Start *rand.Rand
}

// NewPopulationRNG returns the streams for seed.
func NewPopulationRNG(seed int64) *PopulationRNG {
	return &PopulationRNG{
		Work:  rand.New(rand.NewSource(seed)),
		Start: rand.New(rand.NewSource(streamSeed(seed, startStream))),
	}
}

func streamSeed(seed int64, stream string) int64 {
	h := fnv.New64a()
	h.Write([]byte(stream))
	return seed ^ int64(h.Sum64())
}
