package vectorstore

import (
	"fmt"

	"docrag/internal/domain"
)

// Distance metric names as understood by the Qdrant API.
const (
	DistanceCosine = "Cosine"
	DistanceDot    = "Dot"
	DistanceEuclid = "Euclid"
)

// DefaultTopK is the result bound used when a caller passes a non-positive top-K.
const DefaultTopK = 3

// CheckDimension reports domain.ErrSchemaMismatch when any vector's length
// differs from dimension.
func CheckDimension(dimension int, vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("vector %d has %d dimensions, collection expects %d: %w", i, len(v), dimension, domain.ErrSchemaMismatch)
		}
	}
	return nil
}

// PointVectors returns the vectors of points in order.
func PointVectors(points []domain.Point) [][]float32 {
	out := make([][]float32, len(points))
	for i, p := range points {
		out[i] = p.Vector
	}
	return out
}

// NormalizeTopK maps non-positive values to DefaultTopK.
func NormalizeTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	return topK
}
