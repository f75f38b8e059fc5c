package semantic

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/ghmbegerez/converge/pkg/models"
)

// DeterministicModel names the hash-based embedding provider.
// semantic/embeddings.py (the get_provider("deterministic") factory)
// was filtered out of the retrieval pack; conflicts.py's docstring is
// the sole surviving description of its behavior ("hash-based:
// identical text → cosine ~1.0, different text → cosine ~0.0"), which
// this reconstruction reproduces: the same text always hashes to the
// same vector, and distinct texts hash to (with overwhelming
// probability) near-orthogonal ones.
const DeterministicModel = "deterministic-v1"

// EmbeddingDimension is the vector length the deterministic provider
// produces.
const EmbeddingDimension = 32

// DeterministicProvider turns canonical text into a fixed-dimension
// unit vector derived entirely from a hash of the text, so the same
// input always embeds identically and no external model call is
// needed in tests or CI.
type DeterministicProvider struct{}

// Embed hashes text repeatedly (sha256(text || index)) to fill a
// EmbeddingDimension-length vector, then L2-normalizes it so cosine
// similarity reduces to a dot product.
func (DeterministicProvider) Embed(text string) []float64 {
	vec := make([]float64, EmbeddingDimension)
	data := []byte(text)
	for i := 0; i < EmbeddingDimension; i += 4 {
		h := sha256.Sum256(append(data, byte(i)))
		for j := 0; j < 4 && i+j < EmbeddingDimension; j++ {
			chunk := h[j*8 : j*8+8]
			u := binary.BigEndian.Uint64(chunk)
			// Map to [-1, 1).
			vec[i+j] = float64(int64(u)) / float64(1<<63)
		}
	}
	normalize(vec)
	return vec
}

func normalize(vec []float64) {
	var sumSq float64
	for _, v := range vec {
		sumSq += v * v
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range vec {
		vec[i] /= norm
	}
}

// Checksum returns a stable hex digest of text, stored on
// EmbeddingRecord so a caller can detect whether re-embedding a
// changed intent actually changed its canonical text.
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// BuildEmbeddingRecord embeds text with the deterministic provider and
// wraps it into a persistable EmbeddingRecord for intentID.
func BuildEmbeddingRecord(intentID, text string) *models.EmbeddingRecord {
	vec := DeterministicProvider{}.Embed(text)
	return &models.EmbeddingRecord{
		IntentID:    intentID,
		Model:       DeterministicModel,
		Dimension:   len(vec),
		Checksum:    Checksum(text),
		Vector:      vec,
		GeneratedAt: models.NowISO(),
	}
}
