package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"math/bits"
	"math/rand"
	"strings"
)

const (
	// shingleSize is the word-level shingle width for near-duplicate
	// signatures.
	shingleSize = 3
	// numPermutations is the MinHash signature length.
	numPermutations = 128
	// jaccardThreshold is the estimated similarity above which two
	// chunks count as near-duplicates.
	jaccardThreshold = 0.8

	mersennePrime = (1 << 61) - 1
	// permSeed fixes the hash permutations so signatures are stable
	// across runs.
	permSeed = 1
)

// Deduplicate removes exact and near-duplicate chunks, keeping the
// earliest occurrence of each group, and re-indexes survivors from 0.
// Returns the surviving chunks and the number removed.
func Deduplicate(chunks []Chunk) ([]Chunk, int) {
	if len(chunks) == 0 {
		return chunks, 0
	}

	// Exact pass: first occurrence of each content hash wins.
	seen := make(map[string]struct{}, len(chunks))
	unique := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		sum := sha256.Sum256([]byte(c.Content))
		key := hex.EncodeToString(sum[:])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}
	exactRemoved := len(chunks) - len(unique)

	if len(unique) <= 1 {
		reindex(unique)
		return unique, exactRemoved
	}

	// Near-duplicate pass: MinHash signatures over word shingles,
	// estimated Jaccard similarity against earlier survivors.
	signatures := make([][]uint64, len(unique))
	for i, c := range unique {
		signatures[i] = minhashSignature(shingles(c.Content))
	}

	removed := make(map[int]struct{})
	for i := range unique {
		if _, gone := removed[i]; gone {
			continue
		}
		for j := i + 1; j < len(unique); j++ {
			if _, gone := removed[j]; gone {
				continue
			}
			if estimatedJaccard(signatures[i], signatures[j]) >= jaccardThreshold {
				removed[j] = struct{}{}
			}
		}
	}

	final := make([]Chunk, 0, len(unique)-len(removed))
	for i, c := range unique {
		if _, gone := removed[i]; gone {
			continue
		}
		final = append(final, c)
	}
	reindex(final)

	return final, exactRemoved + len(removed)
}

func reindex(chunks []Chunk) {
	for i := range chunks {
		chunks[i].ChunkIndex = i
	}
}

// shingles returns the set of lowercased word k-shingles. Texts shorter
// than k words yield their single joined form.
func shingles(text string) map[uint64]struct{} {
	words := strings.Fields(strings.ToLower(text))
	out := make(map[uint64]struct{})

	if len(words) < shingleSize {
		out[hashShingle(strings.Join(words, " "))] = struct{}{}
		return out
	}
	for i := 0; i+shingleSize <= len(words); i++ {
		out[hashShingle(strings.Join(words[i:i+shingleSize], " "))] = struct{}{}
	}
	return out
}

func hashShingle(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// permParams holds the fixed (a, b) coefficients of the universal hash
// family h(x) = (a*x + b) mod p.
var permParams = func() [][2]uint64 {
	rng := rand.New(rand.NewSource(permSeed))
	params := make([][2]uint64, numPermutations)
	for i := range params {
		a := uint64(rng.Int63n(mersennePrime-1)) + 1
		b := uint64(rng.Int63n(mersennePrime))
		params[i] = [2]uint64{a, b}
	}
	return params
}()

func minhashSignature(shingleSet map[uint64]struct{}) []uint64 {
	sig := make([]uint64, numPermutations)
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	for x := range shingleSet {
		for i, p := range permParams {
			h := permute(x, p[0], p[1])
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// permute computes (a*x + b) mod p in 128-bit arithmetic so large
// coefficients don't overflow.
func permute(x, a, b uint64) uint64 {
	x %= mersennePrime
	hi, lo := bits.Mul64(a, x)
	lo, carry := bits.Add64(lo, b, 0)
	return mod128(hi+carry, lo)
}

// mod128 reduces a 128-bit value modulo the Mersenne prime 2^61-1 using
// the shift-and-add identity for Mersenne moduli.
func mod128(hi, lo uint64) uint64 {
	r := (lo & mersennePrime) + (lo >> 61) + (hi << 3)
	for r >= mersennePrime {
		r = (r & mersennePrime) + (r >> 61)
	}
	return r
}

func estimatedJaccard(a, b []uint64) float64 {
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
