package vaccination

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/platform/fhir"
)

// Outcome is what happened when a patient was seen at a session.
type Outcome string

const (
	OutcomeVaccinated        Outcome = "vaccinated"
	OutcomePartVaccinated    Outcome = "part-vaccinated"
	OutcomeAlreadyVaccinated Outcome = "already-vaccinated"
	OutcomeContraindications Outcome = "contraindications"
	OutcomeRefused           Outcome = "refused"
	OutcomeAbsent            Outcome = "absent"
	OutcomeUnwell            Outcome = "unwell"
)

var validOutcomes = map[Outcome]bool{
	OutcomeVaccinated: true, OutcomePartVaccinated: true, OutcomeAlreadyVaccinated: true,
	OutcomeContraindications: true, OutcomeRefused: true, OutcomeAbsent: true, OutcomeUnwell: true,
}

func (o Outcome) Valid() bool { return validOutcomes[o] }

// Given reports whether the outcome counts as a dose towards the programme.
func (o Outcome) Given() bool {
	return o == OutcomeVaccinated || o == OutcomePartVaccinated || o == OutcomeAlreadyVaccinated
}

// Administered reports whether a dose was physically given at this session.
func (o Outcome) Administered() bool {
	return o == OutcomeVaccinated || o == OutcomePartVaccinated
}

// Vaccination is the record of a patient being seen for one programme at one
// session. Unlike events it can be corrected in place; UpdatedAt and VersionID
// change on every correction.
type Vaccination struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	PatientID    uuid.UUID         `db:"patient_id" json:"patient_id"`
	ProgrammeID  string            `db:"programme_id" json:"programme_id"`
	SessionID    uuid.UUID         `db:"session_id" json:"session_id"`
	Outcome      Outcome           `db:"outcome" json:"outcome"`
	DoseSequence *string           `db:"dose_sequence" json:"dose_sequence,omitempty"`
	Method       *programme.Method `db:"method" json:"method,omitempty"`
	Site         *string           `db:"site" json:"site,omitempty"`
	BatchID      *string           `db:"batch_id" json:"batch_id,omitempty"`
	VaccineID    *string           `db:"vaccine_id" json:"vaccine_id,omitempty"`
	Note         *string           `db:"note" json:"note,omitempty"`
	CreatedBy    *string           `db:"created_by" json:"created_by,omitempty"`
	VersionID    int               `db:"version_id" json:"version_id"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// LastChanged is the most recent of CreatedAt and UpdatedAt.
func (v *Vaccination) LastChanged() time.Time {
	if v.UpdatedAt.After(v.CreatedAt) {
		return v.UpdatedAt
	}
	return v.CreatedAt
}

const snomedSystem = "http://snomed.info/sct"

var routeCodes = map[programme.Method]fhir.Coding{
	programme.MethodInjection: {System: snomedSystem, Code: "78421000", Display: "Intramuscular route"},
	programme.MethodNasal:     {System: snomedSystem, Code: "46713006", Display: "Nasal route"},
}

// ToFHIR builds the FHIR Immunization sent to the national registry for
// programmes that sync their results.
func (v *Vaccination) ToFHIR(p *programme.Programme, nhsNumber string) map[string]interface{} {
	status := "completed"
	if !v.Outcome.Given() {
		status = "not-done"
	}
	patient := fhir.Reference{Reference: fhir.FormatReference("Patient", v.PatientID.String())}
	if nhsNumber != "" {
		patient.Identifier = &fhir.Identifier{System: "https://fhir.nhs.uk/Id/nhs-number", Value: nhsNumber}
	}
	result := map[string]interface{}{
		"resourceType": "Immunization",
		"id":           v.ID.String(),
		"status":       status,
		"vaccineCode": fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: snomedSystem, Code: p.VaccineCode, Display: p.VaccineDisplay}},
			Text:   p.Name,
		},
		"patient":            patient,
		"occurrenceDateTime": v.CreatedAt.Format(time.RFC3339),
		"primarySource":      v.Outcome != OutcomeAlreadyVaccinated,
		"meta": fhir.Meta{
			VersionID:   fmt.Sprintf("%d", v.VersionID),
			LastUpdated: v.LastChanged(),
		},
	}
	if status == "not-done" {
		result["statusReason"] = fhir.CodeableConcept{Text: string(v.Outcome)}
	}
	if v.Method != nil {
		if route, ok := routeCodes[*v.Method]; ok {
			result["route"] = fhir.CodeableConcept{Coding: []fhir.Coding{route}}
		}
	}
	if v.Site != nil {
		result["site"] = fhir.CodeableConcept{Text: *v.Site}
	}
	if v.BatchID != nil {
		result["lotNumber"] = *v.BatchID
	}
	if v.DoseSequence != nil {
		result["protocolApplied"] = []map[string]interface{}{{
			"series":           p.Name,
			"doseNumberString": *v.DoseSequence,
		}}
	}
	if v.Note != nil {
		result["note"] = []map[string]string{{"text": *v.Note}}
	}
	return result
}
