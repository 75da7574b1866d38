package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"care-planner/internal/embeddings"
	"care-planner/internal/patient"
)

// KBStatus tracks a knowledge-base document through ingestion.
type KBStatus string

const (
	KBStatusProcessing KBStatus = "processing"
	KBStatusReady      KBStatus = "ready"
	KBStatusFailed     KBStatus = "failed"
)

var (
	ErrPatientNotFound  = errors.New("patient not found")
	ErrDocumentNotFound = errors.New("knowledge-base document not found")
)

// PatientInfo is the listing projection of a stored patient record.
type PatientInfo struct {
	PatientID        string    `json:"patientId"`
	Age              int       `json:"age"`
	PrimaryCondition string    `json:"primaryCondition"`
	Comorbidities    []string  `json:"comorbidities"`
	CreatedAt        time.Time `json:"createdAt"`
}

// KBDocument is a reference document in the knowledge base.
type KBDocument struct {
	ID        uuid.UUID
	Title     string
	SourceURI string
	Status    KBStatus
	CreatedAt time.Time
}

// KBChunk is one retrievable slice of a knowledge-base document.
type KBChunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Text       string
	TokenCount int
}

// KBEmbedding is the vector for one chunk.
type KBEmbedding struct {
	ChunkID uuid.UUID
	Vector  embeddings.Vector
	Model   string
}

// KBSearchResult is one similarity hit with its document's source URI.
type KBSearchResult struct {
	Chunk     KBChunk
	Score     float32
	SourceURI string
}

// Store defines the persistence contract for patient records and the
// knowledge base.
type Store interface {
	// Patient records. PutPatient replaces an existing record wholesale;
	// PatchPatient merges only the named top-level fields into it.
	PutPatient(ctx context.Context, p patient.Patient) error
	GetPatient(ctx context.Context, patientID string) (patient.Record, error)
	PatchPatient(ctx context.Context, patientID string, fields map[string]any) error
	ListPatients(ctx context.Context, condition string) ([]PatientInfo, error)

	// Knowledge base.
	CreateKBDocument(ctx context.Context, title, sourceURI string) (KBDocument, error)
	GetKBDocument(ctx context.Context, id uuid.UUID) (KBDocument, error)
	UpdateKBDocumentStatus(ctx context.Context, id uuid.UUID, status KBStatus) error
	// DeleteKBChunks removes a document's chunks and, by cascade, their
	// embeddings. Ingestion runs it first so a retried task cannot leave
	// duplicate passages behind.
	DeleteKBChunks(ctx context.Context, docID uuid.UUID) error
	SaveKBChunks(ctx context.Context, docID uuid.UUID, chunks []KBChunk) ([]KBChunk, error)
	SaveKBEmbeddings(ctx context.Context, embs []KBEmbedding) error
	SearchKB(ctx context.Context, vector embeddings.Vector, k int) ([]KBSearchResult, error)
}
