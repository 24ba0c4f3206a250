package core

// Rand is the random source consumed by the simulation. *math/rand.Rand
// satisfies it; tests inject a seeded instance for reproducible runs.
type Rand interface {
	Float64() float64
	Intn(n int) int
}
