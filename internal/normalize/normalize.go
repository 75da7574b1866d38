// Package normalize extracts structured results from raw generative-model
// output. Models are told to answer with a single JSON object, but in
// practice wrap it in prose, emit a bare array instead of the wrapper object,
// or return a single entry with no wrapper at all; this package turns any of
// those into a well-formed plan or summary, or reports a typed failure.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PlanEntry is one treatment recommendation with its justification.
type PlanEntry struct {
	Recommendation string `json:"recommendation"`
	Justification  string `json:"justification"`
}

// Plan is an ordered list of recommendations. Order reflects model-assigned
// priority and duplicates are kept.
type Plan struct {
	Plan []PlanEntry `json:"plan"`
}

// Summary is a clinical summary with possible similar symptoms.
type Summary struct {
	Summary         string   `json:"summary"`
	SimilarSymptoms []string `json:"similarSymptoms"`
}

// Kind classifies normalization failures.
type Kind string

const (
	// KindNoJSONFound means no plausible JSON delimiter pair was located.
	KindNoJSONFound Kind = "no_json_found"
	// KindMalformedJSON means delimiters were located but the slice between
	// them failed to parse.
	KindMalformedJSON Kind = "malformed_json"
	// KindMissingField means parsing succeeded but a required field is absent.
	KindMissingField Kind = "missing_field"
	// KindUnparseable means every plan extraction stage was exhausted without
	// producing a usable structure.
	KindUnparseable Kind = "unparseable_model_output"
)

// ParseError is the only error type returned by this package.
type ParseError struct {
	Kind Kind
	Msg  string
	Err  error // underlying json error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or "" if err is not a ParseError.
func KindOf(err error) Kind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// rawPrefixLimit bounds how much of the model output is carried in an
// unparseable-output error, so error payloads stay small no matter what the
// model returned.
const rawPrefixLimit = 200

// Normalizer converts raw model text into structured results. The zero value
// reproduces the behavior the stored records were generated with.
type Normalizer struct {
	// StrictPlanShape rejects a direct parse that yields an object without a
	// "plan" key instead of degrading it to an empty plan.
	StrictPlanShape bool
}

// Summary extracts a clinical summary from raw model output.
//
// The JSON payload is located with first-'{' / last-'}' indices rather than
// balanced-bracket parsing; braces inside string values before the real
// payload can shift the slice. Kept for parity with previously stored
// records.
func (n Normalizer) Summary(raw string) (Summary, error) {
	slice, ok := sliceBetween(raw, '{', '}')
	if !ok {
		return Summary{}, &ParseError{Kind: KindNoJSONFound, Msg: "no JSON object delimiters in model output"}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(slice), &obj); err != nil {
		return Summary{}, &ParseError{Kind: KindMalformedJSON, Msg: "summary object failed to parse", Err: err}
	}
	rawSummary, ok := obj["summary"]
	if !ok {
		return Summary{}, &ParseError{Kind: KindMissingField, Msg: `summary object has no "summary" field`}
	}
	var out Summary
	if err := json.Unmarshal(rawSummary, &out.Summary); err != nil {
		return Summary{}, &ParseError{Kind: KindMalformedJSON, Msg: `"summary" is not a string`, Err: err}
	}
	if rawSymptoms, ok := obj["similarSymptoms"]; ok {
		if err := json.Unmarshal(rawSymptoms, &out.SimilarSymptoms); err != nil {
			return Summary{}, &ParseError{Kind: KindMalformedJSON, Msg: `"similarSymptoms" is not a string array`, Err: err}
		}
	}
	if out.SimilarSymptoms == nil {
		out.SimilarSymptoms = []string{}
	}
	return out, nil
}

// Plan extracts a treatment plan from raw model output.
//
// Three stages, strictly in order, each more permissive than the last:
//
//  1. parse the whole trimmed text; an object with a "plan" key is used
//     as-is, a bare array is wrapped, and any other object degrades to an
//     empty plan (or fails under StrictPlanShape);
//  2. on a stage-1 parse error, slice first '[' to last ']' and wrap the
//     array;
//  3. slice first '{' to last '}'; an object carrying "recommendation" or
//     "justification" becomes a one-entry plan, an object carrying "plan" is
//     used directly.
//
// A stage-1 success short-circuits the later stages even when it degraded to
// the empty plan. Whitespace is trimmed once, up front only.
func (n Normalizer) Plan(raw string) (Plan, error) {
	trimmed := strings.TrimSpace(raw)

	plan, done, err := n.directParse(trimmed)
	if done {
		return plan, err
	}
	if plan, ok, err := arrayScan(trimmed); ok {
		return plan, err
	}
	if plan, ok, err := objectScan(trimmed); ok {
		return plan, err
	}
	return Plan{}, &ParseError{Kind: KindUnparseable, Msg: "no usable plan structure in model output: " + prefix(trimmed)}
}

// directParse is stage 1. done reports whether the result (success or
// failure) is final; when false the caller falls through to the scan stages.
func (n Normalizer) directParse(trimmed string) (Plan, bool, error) {
	var top any
	if err := json.Unmarshal([]byte(trimmed), &top); err != nil {
		return Plan{}, false, nil
	}
	switch v := top.(type) {
	case map[string]any:
		if rawPlan, ok := v["plan"]; ok {
			plan, err := decodeEntries(rawPlan)
			return plan, true, err
		}
		if n.StrictPlanShape {
			return Plan{}, true, &ParseError{Kind: KindMissingField, Msg: `model output parsed to an object without a "plan" field`}
		}
		// Legacy behavior: an unrelated object silently becomes an empty plan.
		return Plan{Plan: []PlanEntry{}}, true, nil
	case []any:
		plan, err := decodeEntries(v)
		return plan, true, err
	default:
		// A bare scalar parses but can never carry a plan; let the scan
		// stages look inside it.
		return Plan{}, false, nil
	}
}

// arrayScan is stage 2: first-'[' / last-']' slice, wrapped as a plan when it
// parses to an array.
func arrayScan(trimmed string) (Plan, bool, error) {
	slice, ok := sliceBetween(trimmed, '[', ']')
	if !ok {
		return Plan{}, false, nil
	}
	var arr []any
	if err := json.Unmarshal([]byte(slice), &arr); err != nil {
		return Plan{}, false, nil
	}
	plan, err := decodeEntries(arr)
	return plan, true, err
}

// objectScan is stage 3: first-'{' / last-'}' slice. An object that looks
// like a single plan entry is wrapped into a one-entry plan; otherwise a
// "plan" key is honored.
func objectScan(trimmed string) (Plan, bool, error) {
	slice, ok := sliceBetween(trimmed, '{', '}')
	if !ok {
		return Plan{}, false, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(slice), &obj); err != nil {
		return Plan{}, false, nil
	}
	if _, ok := obj["recommendation"]; ok {
		plan, err := decodeEntries([]any{obj})
		return plan, true, err
	}
	if _, ok := obj["justification"]; ok {
		plan, err := decodeEntries([]any{obj})
		return plan, true, err
	}
	if rawPlan, ok := obj["plan"]; ok {
		plan, err := decodeEntries(rawPlan)
		return plan, true, err
	}
	return Plan{}, false, nil
}

// decodeEntries converts an already-parsed plan value into typed entries.
func decodeEntries(v any) (Plan, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return Plan{}, &ParseError{Kind: KindMalformedJSON, Msg: "plan value is not serializable", Err: err}
	}
	var entries []PlanEntry
	if err := json.Unmarshal(buf, &entries); err != nil {
		return Plan{}, &ParseError{Kind: KindMalformedJSON, Msg: "plan value is not a recommendation list", Err: err}
	}
	if entries == nil {
		entries = []PlanEntry{}
	}
	return Plan{Plan: entries}, nil
}

// sliceBetween returns the substring from the first occurrence of open to the
// last occurrence of closing, inclusive. Purely textual: no bracket balancing.
func sliceBetween(s string, open, closing byte) (string, bool) {
	first := strings.IndexByte(s, open)
	last := strings.LastIndexByte(s, closing)
	if first == -1 || last == -1 || first > last {
		return "", false
	}
	return s[first : last+1], true
}

func prefix(s string) string {
	if len(s) <= rawPrefixLimit {
		return s
	}
	return s[:rawPrefixLimit]
}
