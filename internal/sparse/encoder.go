package sparse

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/docuchat/backend/internal/platform/qdrant"
)

// Encoder turns text into a sparse lexical vector. Term indices are
// 32-bit FNV-1a hashes of normalized tokens and weights are
// BM25-saturated term frequencies. Document frequency is not applied
// here: the vector store computes IDF at query time, so both sides of
// retrieval only need consistent tokenization and TF weighting.
type Encoder struct {
	k1    float64
	b     float64
	avgDL float64
}

const (
	defaultK1    = 1.2
	defaultB     = 0.75
	defaultAvgDL = 256
)

func NewEncoder() *Encoder {
	return &Encoder{k1: defaultK1, b: defaultB, avgDL: defaultAvgDL}
}

// Encode produces the sparse vector for one text. Empty or
// stopword-only text yields an empty vector.
func (e *Encoder) Encode(text string) qdrant.SparseVector {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return qdrant.SparseVector{Indices: []uint32{}, Values: []float32{}}
	}

	counts := make(map[uint32]int, len(tokens))
	for _, tok := range tokens {
		counts[hashToken(tok)]++
	}

	docLen := float64(len(tokens))
	norm := e.k1 * (1 - e.b + e.b*docLen/e.avgDL)

	indices := make([]uint32, 0, len(counts))
	values := make([]float32, 0, len(counts))
	for idx, count := range counts {
		tf := float64(count)
		weight := tf * (e.k1 + 1) / (tf + norm)
		indices = append(indices, idx)
		values = append(values, float32(weight))
	}
	return qdrant.SparseVector{Indices: indices, Values: values}
}

// Tokenize lowercases, splits on non-alphanumeric runs, and drops
// stopwords and single-character tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func hashToken(tok string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tok))
	// Qdrant sparse indices are unsigned but some clients treat them as
	// int32; mask into the positive range to stay interoperable.
	return h.Sum32() & math.MaxInt32
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "if": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"she": {}, "that": {}, "the": {}, "their": {}, "they": {},
	"this": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}
