package planner

import (
	"fmt"
	"strings"

	"care-planner/internal/patient"
	"care-planner/internal/retrieval"
)

func summaryPrompt(rec patient.Record) string {
	condition := rec.PrimaryCondition("the primary condition")
	return fmt.Sprintf(`You are an expert AI medical assistant that ALWAYS responds in a specific JSON format. Analyze the following patient data and provide a concise clinical summary and a list of possible similar symptoms for the patient's primary condition (%s).

Patient Data:
%s

IMPORTANT: Your entire response MUST be a single, valid JSON object, with no text or explanations before or after it. Use this exact format:
{
  "summary": "A concise, well-written clinical summary of the patient goes here.",
  "similarSymptoms": ["Symptom 1", "Symptom 2", "Symptom 3"]
}`, condition, rec.JSON())
}

func planPrompt(rec patient.Record, guidance string) string {
	return fmt.Sprintf(`Task: Analyze the following patient data and generate exactly three treatment recommendations.
Constraint: Your entire output must be a single, valid JSON object. Do not include any text, conversation, or explanation before or after the JSON object.

Reference Guidance:
%s

Patient Data:
%s

Required JSON Format:
{
  "plan": [
    {
      "recommendation": "First treatment recommendation.",
      "justification": "Justification for the first recommendation."
    },
    {
      "recommendation": "Second treatment recommendation.",
      "justification": "Justification for the second recommendation."
    },
    {
      "recommendation": "Third treatment recommendation.",
      "justification": "Justification for the third recommendation."
    }
  ]
}

JSON Response:`, guidance, rec.JSON())
}

func chatPrompt(message string, passages []retrieval.Passage) string {
	var ctx strings.Builder
	if len(passages) == 0 {
		ctx.WriteString(noGuidancePlaceholder)
	}
	for i, ps := range passages {
		if i > 0 {
			ctx.WriteString("\n---\n")
		}
		ctx.WriteString(ps.Text)
	}
	return fmt.Sprintf(`You are a careful clinical assistant. Answer the question concisely, based only on the reference context below. If the context does not cover the question, say so.

Context:
%s

Question: %s`, ctx.String(), message)
}
