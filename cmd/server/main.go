package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"care-planner/internal/app"
	"care-planner/internal/httputil"
	"care-planner/internal/normalize"
	"care-planner/internal/patient"
	"care-planner/internal/planner"
	"care-planner/internal/queue"
	"care-planner/internal/retrieval"
	"care-planner/internal/store"
)

type ingestTaskPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
}

func main() {
	deps, err := app.Build("server")
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	r := httputil.NewRouter(deps.Log)

	r.Post("/patients", createPatientHandler(deps))
	r.Get("/patients", listPatientsHandler(deps))
	r.Get("/patients/{id}", getPatientHandler(deps))
	r.Post("/patients/{id}/summarize", summarizeHandler(deps))
	r.Post("/patients/{id}/plan", generatePlanHandler(deps))
	r.Get("/patients/{id}/plan", getPlanHandler(deps))
	r.Post("/chat", chatHandler(deps))
	r.Post("/kb/documents", uploadKBHandler(deps))
	r.Get("/kb/documents/{id}", getKBDocumentHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("server listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

// failDomain maps pipeline errors onto the API's status codes. A provider
// failure and output the normalizer rejected are both upstream faults, not
// ours.
func failDomain(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrPatientNotFound):
		httputil.Fail(log, w, "Patient not found", err, http.StatusNotFound)
	case errors.Is(err, planner.ErrPlanNotGenerated):
		httputil.Fail(log, w, "No treatment plan generated for this patient yet", err, http.StatusNotFound)
	case errors.Is(err, planner.ErrGenerationFailed):
		httputil.Fail(log, w, "Model provider request failed", err, http.StatusBadGateway)
	case normalize.KindOf(err) != "":
		httputil.Fail(log, w, "Model returned unusable output: "+err.Error(), err, http.StatusBadGateway)
	default:
		httputil.Fail(log, w, "An unexpected error occurred", err, http.StatusInternalServerError)
	}
}

func createPatientHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p patient.Patient
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&p); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		if err := deps.Store.PutPatient(r.Context(), p); err != nil {
			httputil.Fail(deps.Log, w, "failed to store patient record", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, map[string]any{
			"message":   "Patient data stored successfully",
			"patientId": p.PatientID,
		})
	}
}

func listPatientsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := deps.Store.ListPatients(r.Context(), r.URL.Query().Get("condition"))
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list patients", err, http.StatusInternalServerError)
			return
		}
		if infos == nil {
			infos = []store.PatientInfo{}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"patients": infos})
	}
}

func getPatientHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Store.GetPatient(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			failDomain(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rec)
	}
}

func summarizeHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sum, err := deps.Planner.Summarize(r.Context(), id)
		if err != nil {
			failDomain(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("Summary generated and stored for patient %s", id),
			"data":    sum,
		})
	}
}

func generatePlanHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := deps.Planner.GeneratePlan(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			failDomain(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, plan)
	}
}

func getPlanHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := deps.Planner.StoredPlan(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			failDomain(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, plan)
	}
}

type chatRequest struct {
	Message string `json:"message" validate:"required,min=1,max=2000"`
}

func chatHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		resp, err := deps.Planner.Chat(r.Context(), req.Message)
		if err != nil {
			failDomain(deps.Log, w, err)
			return
		}
		if resp.Sources == nil {
			resp.Sources = []retrieval.Passage{}
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func uploadKBHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}
		if !allowedUpload(header.Filename, header.Header.Get("Content-Type")) {
			httputil.Fail(deps.Log, w, "unsupported file type (only PDF and TXT allowed)", nil, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		text := extractText(header.Filename, content, deps.Log)

		doc, err := deps.Store.CreateKBDocument(ctx, header.Filename, "kb://"+header.Filename)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to persist document", err, http.StatusInternalServerError)
			return
		}

		body, err := json.Marshal(ingestTaskPayload{
			DocumentID: doc.ID,
			Title:      header.Filename,
			Content:    text,
		})
		if err != nil {
			failKB(deps, w, r, "failed to encode ingest task", err, doc.ID)
			return
		}
		task := queue.Task{Type: queue.TaskTypeIngest, Payload: body}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			failKB(deps, w, r, "failed to enqueue document; please retry", err, doc.ID)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"document_id": doc.ID.String(),
			"status":      doc.Status,
		})
	}
}

// failKB marks the document failed before answering, so it never shows up as
// processing forever.
func failKB(deps app.Deps, w http.ResponseWriter, r *http.Request, message string, err error, docID uuid.UUID) {
	log := deps.Log.With("document_id", docID)
	if upErr := deps.Store.UpdateKBDocumentStatus(r.Context(), docID, store.KBStatusFailed); upErr != nil {
		log.Error("failed to mark document failed", "err", upErr)
	}
	httputil.Fail(log, w, message, err, http.StatusInternalServerError)
}

func getKBDocumentHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
			return
		}
		doc, err := deps.Store.GetKBDocument(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrDocumentNotFound) {
				httputil.Fail(deps.Log, w, "Document not found", err, http.StatusNotFound)
				return
			}
			httputil.Fail(deps.Log, w, "failed to get document", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"document_id": doc.ID.String(),
			"title":       doc.Title,
			"source_uri":  doc.SourceURI,
			"status":      doc.Status,
			"created_at":  doc.CreatedAt,
		})
	}
}

func allowedUpload(filename, contentType string) bool {
	if contentType == "" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".txt":
			contentType = "text/plain"
		case ".pdf":
			contentType = "application/pdf"
		}
	}
	return contentType == "text/plain" || contentType == "application/pdf"
}

// extractText extracts text from uploaded files, with PDF support.
func extractText(filename string, content []byte, log *slog.Logger) string {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err := extractPDF(content)
		if err != nil {
			log.Warn("pdf extraction failed, using raw bytes", "err", err, "filename", filename)
			return string(content)
		}
		return text
	}
	return string(content)
}

func extractPDF(content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract.
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}
	return textBuilder.String(), nil
}
