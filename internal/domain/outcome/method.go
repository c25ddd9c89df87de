package outcome

import "github.com/ehr/vaccinations/internal/domain/programme"

// resolveMethod picks how the vaccine should be given. Consent narrows the
// choice to an alternative method only when every granting reply restricts to
// it, which combine reports as a method-specific outcome. Triage can move it
// to an alternative method but triage naming the primary method never undoes
// a consent restriction.
func resolveMethod(p *programme.Programme, consent ConsentOutcome, screen ScreenOutcome) programme.Method {
	method := p.PrimaryMethod()
	if !p.HasAlternativeMethods() {
		return method
	}
	switch consent {
	case ConsentGivenNasal:
		if p.IsAlternative(programme.MethodNasal) {
			method = programme.MethodNasal
		}
	case ConsentGivenInjection:
		if p.IsAlternative(programme.MethodInjection) {
			method = programme.MethodInjection
		}
	}
	switch screen {
	case ScreenVaccinateNasal:
		if p.IsAlternative(programme.MethodNasal) {
			method = programme.MethodNasal
		}
	case ScreenVaccinateInjection:
		if p.IsAlternative(programme.MethodInjection) {
			method = programme.MethodInjection
		}
	}
	return method
}
