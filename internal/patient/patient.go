// Package patient defines the patient record as it crosses the API boundary
// and as it lives in the store.
package patient

import "encoding/json"

// Medication is one entry of a patient's current medication list.
type Medication struct {
	Name      string `json:"name" validate:"required"`
	Dosage    string `json:"dosage" validate:"required"`
	Adherence string `json:"adherence" validate:"required"`
}

// Patient is the ingest payload. Field names follow the wire format the
// record keeps in the store, so a stored record round-trips unchanged.
type Patient struct {
	PatientID          string         `json:"patientId" validate:"required"`
	Age                int            `json:"age" validate:"required,gte=0,lte=130"`
	Gender             string         `json:"gender" validate:"required"`
	PrimaryCondition   string         `json:"primaryCondition" validate:"required"`
	Comorbidities      []string       `json:"comorbidities"`
	GeneticMarkers     map[string]any `json:"geneticMarkers"`
	Lifestyle          map[string]any `json:"lifestyle"`
	CurrentMedications []Medication   `json:"currentMedications" validate:"dive"`
}

// Record is the raw stored form of a patient: the ingested fields plus
// whatever the generation pipelines have patched in since (summary,
// similarSymptoms, treatmentPlan).
type Record map[string]any

// PrimaryCondition returns the record's primary condition, or fallback when
// the field is absent or not a string.
func (r Record) PrimaryCondition(fallback string) string {
	if v, ok := r["primaryCondition"].(string); ok && v != "" {
		return v
	}
	return fallback
}

// TreatmentPlan returns the previously generated plan fragment, if any.
func (r Record) TreatmentPlan() (any, bool) {
	v, ok := r["treatmentPlan"]
	return v, ok
}

// JSON renders the record for inclusion in a model prompt.
func (r Record) JSON() string {
	buf, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(buf)
}
