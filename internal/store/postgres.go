package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"care-planner/internal/embeddings"
	"care-planner/internal/patient"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock so the server and the worker don't race migrations.
	const lockID = 764201835

	var acquired bool
	if err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another service is migrating; wait briefly and skip.
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		// Full record as JSONB plus extracted columns for listing/filtering.
		`CREATE TABLE IF NOT EXISTS patients (
			patient_id TEXT PRIMARY KEY,
			age INT,
			primary_condition TEXT,
			comorbidities TEXT[],
			record JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now(),
			updated_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS patients_condition_idx ON patients (primary_condition);`,
		`CREATE TABLE IF NOT EXISTS kb_documents (
			id UUID PRIMARY KEY,
			title TEXT,
			source_uri TEXT,
			status TEXT,
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS kb_chunks (
			id UUID PRIMARY KEY,
			document_id UUID REFERENCES kb_documents(id) ON DELETE CASCADE,
			ord INT,
			text TEXT,
			token_count INT
		);`,
		`CREATE TABLE IF NOT EXISTS kb_embeddings (
			chunk_id UUID PRIMARY KEY REFERENCES kb_chunks(id) ON DELETE CASCADE,
			vector vector(1536),
			model TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS kb_embeddings_vector_idx
		ON kb_embeddings USING ivfflat (vector vector_cosine_ops)
		WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

// PutPatient stores a record, replacing any existing one with the same id.
// Matches the replace semantics of a key-value put.
func (s *PostgresStore) PutPatient(ctx context.Context, p patient.Patient) error {
	record, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode patient record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patients (patient_id, age, primary_condition, comorbidities, record)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id) DO UPDATE SET
			age = excluded.age,
			primary_condition = excluded.primary_condition,
			comorbidities = excluded.comorbidities,
			record = excluded.record,
			updated_at = now()`,
		p.PatientID, p.Age, p.PrimaryCondition, pq.Array(p.Comorbidities), record)
	return err
}

func (s *PostgresStore) GetPatient(ctx context.Context, patientID string) (patient.Record, error) {
	var raw []byte
	row := s.db.QueryRowContext(ctx, `SELECT record FROM patients WHERE patient_id = $1`, patientID)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to get patient %s: %w", patientID, err)
	}
	var rec patient.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode patient %s: %w", patientID, err)
	}
	return rec, nil
}

// PatchPatient merges the given top-level fields into the stored record,
// leaving everything else untouched. None of the patched fields are backed
// by an extracted column, so only the JSONB document changes.
func (s *PostgresStore) PatchPatient(ctx context.Context, patientID string, fields map[string]any) error {
	fragment, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode patch fields: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE patients SET record = record || $2::jsonb, updated_at = now()
		WHERE patient_id = $1`,
		patientID, fragment)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (s *PostgresStore) ListPatients(ctx context.Context, condition string) ([]PatientInfo, error) {
	query := `SELECT patient_id, age, primary_condition, comorbidities, created_at FROM patients`
	args := []any{}
	if condition != "" {
		query += ` WHERE primary_condition = $1`
		args = append(args, condition)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PatientInfo
	for rows.Next() {
		var info PatientInfo
		if err := rows.Scan(&info.PatientID, &info.Age, &info.PrimaryCondition, pq.Array(&info.Comorbidities), &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateKBDocument(ctx context.Context, title, sourceURI string) (KBDocument, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `INSERT INTO kb_documents(id, title, source_uri, status) VALUES($1,$2,$3,$4)`,
		id, title, sourceURI, KBStatusProcessing)
	if err != nil {
		return KBDocument{}, err
	}
	return KBDocument{ID: id, Title: title, SourceURI: sourceURI, Status: KBStatusProcessing, CreatedAt: time.Now()}, nil
}

func (s *PostgresStore) GetKBDocument(ctx context.Context, id uuid.UUID) (KBDocument, error) {
	var doc KBDocument
	row := s.db.QueryRowContext(ctx, `SELECT id, title, source_uri, status, created_at FROM kb_documents WHERE id=$1`, id)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.SourceURI, &doc.Status, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return KBDocument{}, ErrDocumentNotFound
		}
		return KBDocument{}, err
	}
	return doc, nil
}

func (s *PostgresStore) UpdateKBDocumentStatus(ctx context.Context, id uuid.UUID, status KBStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE kb_documents SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteKBChunks(ctx context.Context, docID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kb_chunks WHERE document_id = $1`, docID)
	return err
}

func (s *PostgresStore) SaveKBChunks(ctx context.Context, docID uuid.UUID, chunks []KBChunk) ([]KBChunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	out := make([]KBChunk, 0, len(chunks))
	for _, c := range chunks {
		cid := uuid.New()
		_, err := tx.ExecContext(ctx, `INSERT INTO kb_chunks(id, document_id, ord, text, token_count) VALUES($1,$2,$3,$4,$5)`,
			cid, docID, c.Index, c.Text, c.TokenCount)
		if err != nil {
			return nil, err
		}
		c.ID = cid
		c.DocumentID = docID
		out = append(out, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) SaveKBEmbeddings(ctx context.Context, embs []KBEmbedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, emb := range embs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kb_embeddings(chunk_id, vector, model)
			VALUES($1,$2::vector,$3)
			ON CONFLICT (chunk_id) DO UPDATE SET vector=excluded.vector, model=excluded.model`,
			emb.ChunkID, vectorToString(emb.Vector), emb.Model)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) SearchKB(ctx context.Context, vector embeddings.Vector, k int) ([]KBSearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.id,
			c.document_id,
			c.ord,
			c.text,
			c.token_count,
			1 - (e.vector <=> $1::vector) AS similarity,
			COALESCE(d.source_uri, '')
		FROM kb_embeddings e
		JOIN kb_chunks c ON c.id = e.chunk_id
		JOIN kb_documents d ON d.id = c.document_id
		WHERE d.status = $2
		ORDER BY e.vector <=> $1::vector
		LIMIT $3
	`, vectorToString(vector), KBStatusReady, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []KBSearchResult
	for rows.Next() {
		var r KBSearchResult
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Index, &r.Chunk.Text, &r.Chunk.TokenCount, &r.Score, &r.SourceURI); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// vectorToString converts a Vector to pgvector's textual array format,
// "[0.1,0.2,...]".
func vectorToString(v embeddings.Vector) string {
	if len(v) == 0 {
		return "[]"
	}
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
