// Command seed posts patient records to a running API instance. With no
// arguments it inserts a built-in set of sample patients; with -file it reads
// a JSON array of records instead.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"care-planner/internal/patient"
)

func main() {
	apiURL := flag.String("url", "http://127.0.0.1:8080/patients", "patients endpoint of a running server")
	file := flag.String("file", "", "JSON file with an array of patient records (default: built-in samples)")
	flag.Parse()

	patients, err := loadPatients(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load patients: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	failures := 0
	for _, p := range patients {
		if err := insert(client, *apiURL, p); err != nil {
			fmt.Fprintf(os.Stderr, "FAILED %s: %v\n", p.PatientID, err)
			failures++
			continue
		}
		fmt.Printf("inserted %s\n", p.PatientID)
	}
	fmt.Printf("done: %d inserted, %d failed\n", len(patients)-failures, failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func loadPatients(path string) ([]patient.Patient, error) {
	if path == "" {
		return samplePatients, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var patients []patient.Patient
	if err := json.Unmarshal(data, &patients); err != nil {
		return nil, fmt.Errorf("invalid patient file %s: %w", path, err)
	}
	return patients, nil
}

func insert(client *http.Client, url string, p patient.Patient) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("is the server running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

var samplePatients = []patient.Patient{
	{
		PatientID:        "P-Cardio-01",
		Age:              62,
		Gender:           "Male",
		PrimaryCondition: "Atrial Fibrillation",
		Comorbidities:    []string{"Hypertension", "Sleep Apnea"},
		GeneticMarkers: map[string]any{
			"VKORC1": "High Sensitivity",
			"CYP2C9": "Intermediate Metabolizer",
		},
		Lifestyle: map[string]any{
			"diet":        "High-sodium, frequent alcohol consumption",
			"exercise":    "Occasional walking",
			"stressLevel": "High",
			"smoker":      false,
		},
		CurrentMedications: []patient.Medication{
			{Name: "Lisinopril", Dosage: "20mg daily", Adherence: "Good"},
			{Name: "Metoprolol", Dosage: "50mg twice daily", Adherence: "Good"},
		},
	},
	{
		PatientID:        "P-Autoimmune-02",
		Age:              28,
		Gender:           "Female",
		PrimaryCondition: "Crohn's Disease",
		Comorbidities:    []string{"Anemia", "Anxiety"},
		GeneticMarkers: map[string]any{
			"NOD2":    "Risk Variant Present",
			"ATG16L1": "Risk Variant Present",
		},
		Lifestyle: map[string]any{
			"diet":        "Reported flare-ups with dairy and high-fiber foods",
			"exercise":    "Limited due to fatigue",
			"stressLevel": "Moderate",
			"smoker":      true,
		},
		CurrentMedications: []patient.Medication{
			{Name: "Mesalamine", Dosage: "4.8g daily", Adherence: "Fair"},
			{Name: "Iron Supplement", Dosage: "65mg daily", Adherence: "Good"},
		},
	},
	{
		PatientID:        "P-Neuro-03",
		Age:              74,
		Gender:           "Female",
		PrimaryCondition: "Parkinson's Disease",
		Comorbidities:    []string{"Osteoarthritis", "Depression", "Constipation"},
		GeneticMarkers: map[string]any{
			"LRRK2": "G2019S Mutation Not Present",
			"GBA":   "N370S Variant Present",
		},
		Lifestyle: map[string]any{
			"diet":          "Normal, but reports difficulty swallowing",
			"exercise":      "Physical therapy twice a week",
			"supportSystem": "Strong (family lives nearby)",
			"smoker":        false,
		},
		CurrentMedications: []patient.Medication{
			{Name: "Carbidopa-Levodopa", Dosage: "25-100mg three times daily", Adherence: "Good, but reports nausea"},
			{Name: "Sertraline", Dosage: "50mg daily", Adherence: "Good"},
		},
	},
	{
		PatientID:        "P-Metabolic-04",
		Age:              59,
		Gender:           "Male",
		PrimaryCondition: "Gout",
		Comorbidities:    []string{"Obesity", "Metabolic Syndrome"},
		GeneticMarkers: map[string]any{
			"SLC2A9": "Risk Variant",
		},
		Lifestyle: map[string]any{
			"diet": "High in purines",
		},
		CurrentMedications: []patient.Medication{
			{Name: "Allopurinol", Dosage: "300mg daily", Adherence: "Fair"},
		},
	},
}
