package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"care-planner/internal/embeddings"
	"care-planner/internal/patient"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) PutPatient(ctx context.Context, p patient.Patient) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockStore) GetPatient(ctx context.Context, patientID string) (patient.Record, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(patient.Record), args.Error(1)
}

func (m *MockStore) PatchPatient(ctx context.Context, patientID string, fields map[string]any) error {
	args := m.Called(ctx, patientID, fields)
	return args.Error(0)
}

func (m *MockStore) ListPatients(ctx context.Context, condition string) ([]PatientInfo, error) {
	args := m.Called(ctx, condition)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PatientInfo), args.Error(1)
}

func (m *MockStore) CreateKBDocument(ctx context.Context, title, sourceURI string) (KBDocument, error) {
	args := m.Called(ctx, title, sourceURI)
	return args.Get(0).(KBDocument), args.Error(1)
}

func (m *MockStore) GetKBDocument(ctx context.Context, id uuid.UUID) (KBDocument, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(KBDocument), args.Error(1)
}

func (m *MockStore) UpdateKBDocumentStatus(ctx context.Context, id uuid.UUID, status KBStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockStore) DeleteKBChunks(ctx context.Context, docID uuid.UUID) error {
	args := m.Called(ctx, docID)
	return args.Error(0)
}

func (m *MockStore) SaveKBChunks(ctx context.Context, docID uuid.UUID, chunks []KBChunk) ([]KBChunk, error) {
	args := m.Called(ctx, docID, chunks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]KBChunk), args.Error(1)
}

func (m *MockStore) SaveKBEmbeddings(ctx context.Context, embs []KBEmbedding) error {
	args := m.Called(ctx, embs)
	return args.Error(0)
}

func (m *MockStore) SearchKB(ctx context.Context, vector embeddings.Vector, k int) ([]KBSearchResult, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]KBSearchResult), args.Error(1)
}
