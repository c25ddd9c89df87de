package outcome

import (
	"github.com/google/uuid"

	"github.com/ehr/vaccinations/internal/domain/programme"
)

// resolveRegistration takes the report computed from earlier sessions only,
// so this session's capture never feeds back into its own registration.
func resolveRegistration(s *programme.Session, patientID uuid.UUID, prior ReportOutcome) RegisterOutcome {
	if !s.RegistrationRequired {
		return RegisterPresent
	}
	if prior == ReportVaccinated {
		return RegisterComplete
	}
	switch a, _ := s.Attendance(patientID); a {
	case programme.AttendancePresent:
		return RegisterPresent
	case programme.AttendanceAbsent:
		return RegisterAbsent
	}
	return RegisterPending
}
