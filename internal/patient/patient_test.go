package patient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrimaryCondition(t *testing.T) {
	assert.Equal(t, "Gout", Record{"primaryCondition": "Gout"}.PrimaryCondition("fallback"))
	assert.Equal(t, "fallback", Record{}.PrimaryCondition("fallback"))
	assert.Equal(t, "fallback", Record{"primaryCondition": 42}.PrimaryCondition("fallback"))
	assert.Equal(t, "fallback", Record{"primaryCondition": ""}.PrimaryCondition("fallback"))
}

func TestTreatmentPlan(t *testing.T) {
	plan := []any{map[string]any{"recommendation": "rest"}}
	v, ok := Record{"treatmentPlan": plan}.TreatmentPlan()
	assert.True(t, ok)
	assert.Equal(t, plan, v)

	_, ok = Record{}.TreatmentPlan()
	assert.False(t, ok)
}

func TestRecordJSON(t *testing.T) {
	out := Record{"patientId": "P-001"}.JSON()
	assert.Contains(t, out, `"patientId": "P-001"`)
}
