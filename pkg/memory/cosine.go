package memory

import "math"

// CosineSimilarity возвращает косинусную близость векторов.
// Для векторов разной длины или нулевой нормы возвращает 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// round4 округляет до 4 знаков после запятой.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
