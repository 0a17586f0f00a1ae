package internal

import "fmt"

// Document is a raw text file pulled from the corpus. It exists only for the
// duration of an index build; after chunking only segments survive.
type Document struct {
	ID         string // path relative to the corpus root
	SourcePath string // absolute path on disk
	RawText    string
	Hash       string // sha256 of RawText, used for change detection
}

// Segment is a bounded slice of a document, the unit of embedding and
// retrieval. Positions are strictly increasing within a document.
type Segment struct {
	ID         string
	DocumentID string
	Text       string
	Position   int
}

// SegmentID derives the stable identifier for a segment. The zero-padded
// position keeps lexicographic order aligned with document order, which the
// index relies on for deterministic tie-breaking.
func SegmentID(documentID string, position int) string {
	return fmt.Sprintf("%s#%04d", documentID, position)
}

// Embedding pairs a dense vector with the model that produced it. All
// embeddings in one index must share model and dimension.
type Embedding struct {
	Vector []float32
	Model  string
}

func NewEmbedding(vec []float32, model string) Embedding {
	return Embedding{Vector: vec, Model: model}
}

// IndexEntry is the pairing stored in the vector index.
type IndexEntry struct {
	Segment   Segment
	Embedding Embedding
}

// ScoredSegment is a retrieval hit. Score is cosine similarity, higher is
// better.
type ScoredSegment struct {
	Segment Segment
	Score   float32
}

// GeneratedAnswer is the generator's output: the completion text plus the
// segments that actually made it into the prompt.
type GeneratedAnswer struct {
	Text         string
	UsedSegments []Segment
}
