package vectorstore

import (
	"encoding/binary"
	"math"
	"sort"
	"strings"
)

// hybridVectorWeight is the share of the vector score in hybrid ranking.
const hybridVectorWeight = 0.7

// serializeVector converts a float32 slice to a little-endian byte blob.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// textScore ranks content against a query by token overlap: the fraction
// of distinct query tokens present in the content, in [0, 1].
func textScore(content, query string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	contentTokens := make(map[string]struct{})
	for _, tok := range tokenize(content) {
		contentTokens[tok] = struct{}{}
	}

	seen := make(map[string]struct{})
	matched := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := contentTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// mergeHybrid combines vector and text rankings into a single ranking by
// weighted score, deduplicating by document ID.
func mergeHybrid(vector, text []SearchResult, topK int) []SearchResult {
	combined := make(map[string]*SearchResult)

	for i := range vector {
		r := vector[i]
		r.Score = r.Score * hybridVectorWeight
		combined[r.Document.ID] = &r
	}
	for i := range text {
		weighted := text[i].Score * (1 - hybridVectorWeight)
		if existing, ok := combined[text[i].Document.ID]; ok {
			existing.Score += weighted
			continue
		}
		r := text[i]
		r.Score = weighted
		combined[r.Document.ID] = &r
	}

	out := make([]SearchResult, 0, len(combined))
	for _, r := range combined {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// topKResults sorts results by descending score and truncates to topK.
func topKResults(results []SearchResult, topK int) []SearchResult {
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
