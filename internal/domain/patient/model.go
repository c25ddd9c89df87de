package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID                uuid.UUID `db:"id" json:"id"`
	NHSNumber         *string   `db:"nhs_number" json:"nhs_number,omitempty"`
	FirstName         string    `db:"first_name" json:"first_name"`
	LastName          string    `db:"last_name" json:"last_name"`
	DOB               time.Time `db:"dob" json:"dob"`
	Immunocompromised bool      `db:"immunocompromised" json:"immunocompromised"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// academicYear returns the calendar year in which the school year containing t
// started. School years start on 1 September.
func academicYear(t time.Time) int {
	if t.Month() >= time.September {
		return t.Year()
	}
	return t.Year() - 1
}

// YearGroup returns the school year group the patient is in on today. Children
// start Reception (year 0) in the academic year in which they turn five.
func (p *Patient) YearGroup(today time.Time) int {
	return academicYear(today) - academicYear(p.DOB) - 5
}

// ValidNHSNumber checks the length and modulus 11 check digit of an NHS number.
func ValidNHSNumber(n string) bool {
	if len(n) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		d := n[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += int(d-'0') * (10 - i)
	}
	check := 11 - sum%11
	if check == 11 {
		check = 0
	}
	if check == 10 {
		return false
	}
	return n[9] == byte('0'+check)
}
