package diagnosis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alcortex/alcortex/internal/domain/intake"
)

// Request is the canonical diagnostic request payload: the frozen snapshot,
// the response language, and an optional image reference. Building one has
// no side effects and is deterministic for identical input.
type Request struct {
	Patient  *intake.PatientSnapshot `json:"patient"`
	Language string                  `json:"language"`
	ImageURI string                  `json:"imageUri,omitempty"`
}

// BuildRequest normalizes a snapshot into a Request. The snapshot is
// cloned: the request owns its copy.
func BuildRequest(snapshot *intake.PatientSnapshot, language, imageURI string) Request {
	return Request{
		Patient:  snapshot.Clone(),
		Language: language,
		ImageURI: imageURI,
	}
}

// Prompt renders the instruction text sent to the provider. Lab panels are
// embedded as structured JSON arrays, never collapsed to prose, so
// parameter, value, unit and reference range stay independently visible to
// the provider and in audit logs.
func (r Request) Prompt() string {
	p := r.Patient

	labs := fmt.Sprintf("  - BLOOD LAB: %s\n  - URINE LAB: %s\n  - SPUTUM LAB: %s",
		mustJSON(p.LabBlood), mustJSON(p.LabUrine), mustJSON(p.LabSputum))

	var b strings.Builder
	fmt.Fprintf(&b, "Perform a highly professional and precise medical diagnosis.\n")
	fmt.Fprintf(&b, "The response MUST be entirely in %s.\n\n", r.Language)
	fmt.Fprintf(&b, "PATIENT: %s (%dY, %s)\n\n", p.Name, p.Age, p.Gender)
	fmt.Fprintf(&b, "1. SUBJECTIVE DATA:\n")
	fmt.Fprintf(&b, "   - Main Complaints: %s\n", p.Complaints)
	fmt.Fprintf(&b, "   - Medical History: %s\n", p.History)
	fmt.Fprintf(&b, "   - Current Medications: %s\n", p.Meds)
	fmt.Fprintf(&b, "   - Allergies: %s\n\n", p.Allergies)
	fmt.Fprintf(&b, "2. OBJECTIVE DATA (VITALS):\n")
	fmt.Fprintf(&b, "   - BP: %s/%s mmHg\n", p.Vitals.BPSystolic, p.Vitals.BPDiastolic)
	fmt.Fprintf(&b, "   - Heart Rate: %s bpm\n", p.Vitals.HeartRate)
	fmt.Fprintf(&b, "   - Resp Rate: %s/min\n", p.Vitals.RespiratoryRate)
	fmt.Fprintf(&b, "   - Temperature: %s C\n", p.Vitals.Temperature)
	fmt.Fprintf(&b, "   - SpO2: %s%%\n\n", p.Vitals.SpO2)
	fmt.Fprintf(&b, "3. LIFESTYLE FACTORS:\n")
	fmt.Fprintf(&b, "   - Smoking: %s\n", p.Smoking)
	fmt.Fprintf(&b, "   - Alcohol: %s\n", p.Alcohol)
	fmt.Fprintf(&b, "   - Activity: %s\n\n", p.Activity)
	fmt.Fprintf(&b, "4. LABORATORY MARKERS:\n%s\n\n", labs)
	if r.ImageURI != "" {
		fmt.Fprintf(&b, "An imaging scan is provided. Correlate visual pathology with clinical lab markers.\n\n")
	}
	fmt.Fprintf(&b, "INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "- Correlate lab abnormalities with clinical symptoms and history.\n")
	fmt.Fprintf(&b, "- Provide a main diagnosis, differential diagnoses with ICD-10 codes, and a detailed clinical interpretation.\n")
	fmt.Fprintf(&b, "- Include specific medication recommendations and safety warnings.\n")
	fmt.Fprintf(&b, "- Output MUST be valid JSON according to the schema.\n")
	return b.String()
}

func mustJSON(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// Lab slices of plain strings cannot fail to marshal.
		return "[]"
	}
	return string(raw)
}

// ResponseSchema is the structured-output schema sent with every request:
// the eight result fields, all required, differentials as an array of
// objects each requiring diagnosis, icd10 and confidence.
func ResponseSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"mainDiagnosis": map[string]interface{}{"type": "STRING"},
			"differentials": map[string]interface{}{
				"type": "ARRAY",
				"items": map[string]interface{}{
					"type": "OBJECT",
					"properties": map[string]interface{}{
						"diagnosis":  map[string]interface{}{"type": "STRING"},
						"icd10":      map[string]interface{}{"type": "STRING"},
						"confidence": map[string]interface{}{"type": "NUMBER"},
					},
					"required": []string{"diagnosis", "icd10", "confidence"},
				},
			},
			"severity":        map[string]interface{}{"type": "STRING"},
			"confidenceScore": map[string]interface{}{"type": "NUMBER"},
			"interpretation":  map[string]interface{}{"type": "STRING"},
			"safetyWarning":   map[string]interface{}{"type": "STRING"},
			"followUp":        map[string]interface{}{"type": "STRING"},
			"medicationRecs":  map[string]interface{}{"type": "STRING"},
		},
		"required": []string{
			"mainDiagnosis", "differentials", "severity", "confidenceScore",
			"interpretation", "safetyWarning", "followUp", "medicationRecs",
		},
	}
}
