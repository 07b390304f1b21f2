package diagnosis

// Severity tiers for triage-style filtering.
const (
	SeverityMild     = "Mild"
	SeverityModerate = "Moderate"
	SeveritySevere   = "Severe"
	SeverityCritical = "Critical"
)

// ValidSeverity reports whether s is one of the four tiers.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere, SeverityCritical:
		return true
	}
	return false
}

// Differential is an alternative candidate diagnosis. Order is assigned by
// the provider and preserved; it is never re-sorted locally.
type Differential struct {
	Diagnosis  string  `json:"diagnosis"`
	ICD10      string  `json:"icd10"`
	Confidence float64 `json:"confidence"`
}

// DiagnosisResult is the structured diagnostic opinion. Immutable once
// produced: all eight fields are required by the response contract.
type DiagnosisResult struct {
	MainDiagnosis   string         `json:"mainDiagnosis"`
	Differentials   []Differential `json:"differentials"`
	Severity        string         `json:"severity"`
	ConfidenceScore float64        `json:"confidenceScore"`
	Interpretation  string         `json:"interpretation"`
	SafetyWarning   string         `json:"safetyWarning"`
	FollowUp        string         `json:"followUp"`
	MedicationRecs  string         `json:"medicationRecs"`
}
