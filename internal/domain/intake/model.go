package intake

import (
	"time"
)

// Gender values accepted on a snapshot.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// SmokingLevel is the closed smoking-exposure scale.
type SmokingLevel string

const (
	SmokingNone    SmokingLevel = "None"
	SmokingPassive SmokingLevel = "Passive"
	SmokingActive  SmokingLevel = "Active"
	SmokingHeavy   SmokingLevel = "Heavy"
)

// AlcoholLevel is the closed alcohol-consumption scale.
type AlcoholLevel string

const (
	AlcoholNone       AlcoholLevel = "None"
	AlcoholOccasional AlcoholLevel = "Occasional"
	AlcoholActive     AlcoholLevel = "Active"
	AlcoholHeavy      AlcoholLevel = "Heavy"
)

// ActivityLevel is the closed physical-activity scale.
type ActivityLevel string

const (
	ActivitySedentary ActivityLevel = "Sedentary"
	ActivityLight     ActivityLevel = "Light"
	ActivityModerate  ActivityLevel = "Moderate"
	ActivityHigh      ActivityLevel = "High"
)

// LabResult is one row of a lab panel. The four columns stay independent;
// they are never collapsed into free text.
type LabResult struct {
	Parameter      string `json:"parameter"`
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange string `json:"referenceRange"`
}

// Vitals holds the objective measurements. Values are numeric-as-text: the
// wizard keeps exactly what was typed and enforces format per field.
type Vitals struct {
	BPSystolic      string `json:"bpSystolic"`
	BPDiastolic     string `json:"bpDiastolic"`
	HeartRate       string `json:"heartRate"`
	RespiratoryRate string `json:"respiratoryRate"`
	Temperature     string `json:"temperature"`
	SpO2            string `json:"spo2"`
	Weight          string `json:"weight"`
	Height          string `json:"height"`
}

// PatientSnapshot is the full clinical picture collected by the wizard. It
// is mutable while drafted and frozen (deep-copied) at submission.
type PatientSnapshot struct {
	Name      string        `json:"name"`
	RMNo      string        `json:"rmNo"`
	DOB       string        `json:"dob"` // ISO date, YYYY-MM-DD
	Age       int           `json:"age"` // always derived from DOB
	Gender    string        `json:"gender"`
	BloodType string        `json:"bloodType"`
	History   string        `json:"history"`
	Meds      string        `json:"meds"`
	Allergies string        `json:"allergies"`
	Smoking   SmokingLevel  `json:"smoking"`
	Alcohol   AlcoholLevel  `json:"alcohol"`
	Activity  ActivityLevel `json:"activity"`
	Complaints string       `json:"complaints"`
	Vitals    Vitals        `json:"vitals"`
	LabBlood  []LabResult   `json:"labBlood"`
	LabUrine  []LabResult   `json:"labUrine"`
	LabSputum []LabResult   `json:"labSputum"`
}

// NewSnapshot returns a draft pre-seeded with the standard panel rows the
// intake form presents.
func NewSnapshot() *PatientSnapshot {
	return &PatientSnapshot{
		Gender:    GenderMale,
		BloodType: "A+",
		Smoking:   SmokingNone,
		Alcohol:   AlcoholNone,
		Activity:  ActivityModerate,
		LabBlood: []LabResult{
			{Parameter: "Hemoglobin", Unit: "g/dL", ReferenceRange: "13.5-17.5"},
			{Parameter: "Leukocytes (WBC)", Unit: "10^3/uL", ReferenceRange: "4.5-11.0"},
			{Parameter: "Platelets", Unit: "10^3/uL", ReferenceRange: "150-450"},
		},
		LabUrine: []LabResult{
			{Parameter: "Specific Gravity", Unit: "-", ReferenceRange: "1.005-1.030"},
			{Parameter: "Protein", Unit: "-", ReferenceRange: "Negative"},
		},
		LabSputum: []LabResult{
			{Parameter: "AFB", Unit: "-", ReferenceRange: "Negative"},
			{Parameter: "Gram Stain", Unit: "-", ReferenceRange: "-"},
		},
	}
}

// AgeOn derives the age from DOB as of the given date, subtracting one year
// when the birthday has not yet occurred. Returns 0 for unset or
// unparseable DOB, and never a negative value.
func (p *PatientSnapshot) AgeOn(now time.Time) int {
	if p.DOB == "" {
		return 0
	}
	dob, err := time.Parse("2006-01-02", p.DOB)
	if err != nil {
		return 0
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Normalize recomputes derived fields. The age on the wire is never
// trusted; DOB is the single source of truth.
func (p *PatientSnapshot) Normalize(now time.Time) {
	p.Age = p.AgeOn(now)
}

// Clone returns a deep copy. Used to freeze the draft at submission so the
// stored record cannot alias wizard state.
func (p *PatientSnapshot) Clone() *PatientSnapshot {
	out := *p
	out.LabBlood = cloneLabs(p.LabBlood)
	out.LabUrine = cloneLabs(p.LabUrine)
	out.LabSputum = cloneLabs(p.LabSputum)
	return &out
}

func cloneLabs(in []LabResult) []LabResult {
	if in == nil {
		return nil
	}
	out := make([]LabResult, len(in))
	copy(out, in)
	return out
}

// Empty reports whether nothing identifying has been entered yet. An empty
// draft is not worth autosaving.
func (p *PatientSnapshot) Empty() bool {
	return p.Name == "" && p.Complaints == "" && p.History == "" && p.RMNo == ""
}
