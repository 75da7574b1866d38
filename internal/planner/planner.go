// Package planner orchestrates the generation pipelines: fetch the patient
// record, build a prompt, invoke a model provider, normalize its output, and
// patch the result back into the record.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"care-planner/internal/cache"
	"care-planner/internal/llm"
	"care-planner/internal/normalize"
	"care-planner/internal/retrieval"
	"care-planner/internal/store"
)

var (
	// ErrPlanNotGenerated is returned when a stored plan is requested before
	// one was generated for the patient.
	ErrPlanNotGenerated = errors.New("treatment plan not generated yet")

	// ErrGenerationFailed wraps a model provider failure, as opposed to output
	// the normalizer could not use. Both are upstream faults.
	ErrGenerationFailed = errors.New("model generation failed")
)

// noGuidancePlaceholder stands in for retrieved context when the knowledge
// base is unavailable; retrieval failure never aborts plan generation.
const noGuidancePlaceholder = "No reference guidance available."

// Planner wires the collaborators of the generation pipelines. Summaries and
// plans deliberately go to independent providers.
type Planner struct {
	store      store.Store
	summaryLLM llm.Client
	planLLM    llm.Client
	retriever  retrieval.Retriever
	cache      cache.Cache
	norm       normalize.Normalizer
	log        *slog.Logger

	topK             int
	summaryMaxTokens int
	planMaxTokens    int
	cacheTTL         time.Duration
}

// Options tunes generation; zero values fall back to the defaults the stored
// records were produced with.
type Options struct {
	TopK             int
	SummaryMaxTokens int
	PlanMaxTokens    int
	CacheTTL         time.Duration
	StrictPlanShape  bool
}

func New(st store.Store, summaryLLM, planLLM llm.Client, rt retrieval.Retriever, ch cache.Cache, log *slog.Logger, opts Options) *Planner {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.SummaryMaxTokens <= 0 {
		opts.SummaryMaxTokens = 350
	}
	if opts.PlanMaxTokens <= 0 {
		opts.PlanMaxTokens = 2048
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Planner{
		store:            st,
		summaryLLM:       summaryLLM,
		planLLM:          planLLM,
		retriever:        rt,
		cache:            ch,
		norm:             normalize.Normalizer{StrictPlanShape: opts.StrictPlanShape},
		log:              log,
		topK:             opts.TopK,
		summaryMaxTokens: opts.SummaryMaxTokens,
		planMaxTokens:    opts.PlanMaxTokens,
		cacheTTL:         opts.CacheTTL,
	}
}

// Summarize generates a clinical summary for the patient and patches it into
// the stored record.
func (p *Planner) Summarize(ctx context.Context, patientID string) (normalize.Summary, error) {
	rec, err := p.store.GetPatient(ctx, patientID)
	if err != nil {
		return normalize.Summary{}, err
	}

	raw, err := p.summaryLLM.Generate(ctx, summaryPrompt(rec), llm.GenerationConfig{
		MaxTokens: p.summaryMaxTokens,
	})
	if err != nil {
		return normalize.Summary{}, fmt.Errorf("%w for summary: %w", ErrGenerationFailed, err)
	}

	sum, err := p.norm.Summary(raw)
	if err != nil {
		return normalize.Summary{}, err
	}

	if err := p.store.PatchPatient(ctx, patientID, map[string]any{
		"summary":         sum.Summary,
		"similarSymptoms": sum.SimilarSymptoms,
	}); err != nil {
		return normalize.Summary{}, fmt.Errorf("failed to store summary: %w", err)
	}
	return sum, nil
}

// GeneratePlan generates a treatment plan for the patient, augmented with
// knowledge-base guidance when available, and patches it into the record.
func (p *Planner) GeneratePlan(ctx context.Context, patientID string) (normalize.Plan, error) {
	rec, err := p.store.GetPatient(ctx, patientID)
	if err != nil {
		return normalize.Plan{}, err
	}

	guidance := p.guidance(ctx, rec.PrimaryCondition("the patient's condition"))

	raw, err := p.planLLM.Generate(ctx, planPrompt(rec, guidance), llm.GenerationConfig{
		MaxTokens:   p.planMaxTokens,
		Temperature: 0.1,
		TopP:        0.9,
	})
	if err != nil {
		return normalize.Plan{}, fmt.Errorf("%w for plan: %w", ErrGenerationFailed, err)
	}

	plan, err := p.norm.Plan(raw)
	if err != nil {
		return normalize.Plan{}, err
	}

	if err := p.store.PatchPatient(ctx, patientID, map[string]any{
		"treatmentPlan": plan.Plan,
	}); err != nil {
		return normalize.Plan{}, fmt.Errorf("failed to store plan: %w", err)
	}
	return plan, nil
}

// StoredPlan returns the plan previously patched into the patient record.
func (p *Planner) StoredPlan(ctx context.Context, patientID string) (normalize.Plan, error) {
	rec, err := p.store.GetPatient(ctx, patientID)
	if err != nil {
		return normalize.Plan{}, err
	}
	v, ok := rec.TreatmentPlan()
	if !ok {
		return normalize.Plan{}, ErrPlanNotGenerated
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return normalize.Plan{}, fmt.Errorf("stored plan is not serializable: %w", err)
	}
	var entries []normalize.PlanEntry
	if err := json.Unmarshal(buf, &entries); err != nil {
		return normalize.Plan{}, fmt.Errorf("stored plan has unexpected shape: %w", err)
	}
	return normalize.Plan{Plan: entries}, nil
}

// ChatResponse is a knowledge-base answer with its supporting passages.
type ChatResponse struct {
	Reply   string              `json:"reply"`
	Sources []retrieval.Passage `json:"sources"`
	Cached  bool                `json:"cached"`
}

// Chat answers a free-form question against the knowledge base. Responses
// are cached by message and retrieval depth.
func (p *Planner) Chat(ctx context.Context, message string) (ChatResponse, error) {
	key := cache.ChatKey(message, p.topK)
	if cached, err := p.cache.GetChatResult(ctx, key); err == nil && cached != nil {
		var sources []retrieval.Passage
		uerr := json.Unmarshal(cached.Sources, &sources)
		if uerr == nil {
			return ChatResponse{Reply: cached.Reply, Sources: sources, Cached: true}, nil
		}
		// A corrupt cache entry falls through to the normal flow.
		p.log.Warn("failed to decode cached chat sources", "err", uerr)
	}

	passages, err := p.retriever.Retrieve(ctx, message, p.topK)
	if err != nil {
		p.log.Warn("retrieval failed for chat, answering without context", "err", err)
		passages = nil
	}

	reply, err := p.planLLM.Generate(ctx, chatPrompt(message, passages), llm.GenerationConfig{
		MaxTokens:   1024,
		Temperature: 0.2,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%w for chat: %w", ErrGenerationFailed, err)
	}

	sourcesJSON, err := json.Marshal(passages)
	if err != nil {
		p.log.Warn("failed to encode chat sources, skipping cache", "err", err)
	} else if err := p.cache.SetChatResult(ctx, key, &cache.ChatResult{Reply: reply, Sources: sourcesJSON}, p.cacheTTL); err != nil {
		p.log.Warn("failed to cache chat result", "err", err)
	}

	return ChatResponse{Reply: reply, Sources: passages, Cached: false}, nil
}

// guidance retrieves reference passages for the condition, degrading to a
// fixed placeholder on any retrieval failure.
func (p *Planner) guidance(ctx context.Context, condition string) string {
	query := "Current treatment guidelines for " + condition
	passages, err := p.retriever.Retrieve(ctx, query, p.topK)
	if err != nil {
		p.log.Warn("retrieval failed, proceeding without guidance", "condition", condition, "err", err)
		return noGuidancePlaceholder
	}
	if len(passages) == 0 {
		return noGuidancePlaceholder
	}
	var b strings.Builder
	for i, ps := range passages {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(ps.Text)
		if ps.SourceURI != "" {
			b.WriteString("\n(Source: " + ps.SourceURI + ")")
		}
	}
	return b.String()
}
