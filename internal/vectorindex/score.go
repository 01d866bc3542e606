package vectorindex

import "math"

// distanceToScore converts a raw HNSW distance into a similarity score in
// [0,1]. Two formulas are supported:
//
//   - cosine (default, per the spec's literal formula): cosine distance
//     ranges 0 (identical) to 2 (opposite); score = 1 - distance/2.
//   - l2 (kept as a documented alternate, not surfaced as the default):
//     Euclidean distance ranges 0 to +inf; score = 1 / (1 + distance),
//     which asymptotically approaches 0 rather than hitting it exactly.
//
// Resolves the "cosine vs rescaled similarity" design question in favor of
// cosine everywhere semantic-search scores are returned to callers.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}

// normalizeVectorInPlace rescales v to unit length, required before
// inserting/querying under the cosine metric since coder/hnsw's
// CosineDistance assumes normalized inputs.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
