package citation

// Outcome labels a tier result for logs and metrics.
type Outcome string

// Tier outcomes.
const (
	OutcomeHit    Outcome = "hit"
	OutcomeMiss   Outcome = "miss"
	OutcomeDenied Outcome = "denied"
	OutcomeError  Outcome = "error"
)

// Candidate is the result of one resolution tier. A miss, a policy denial and
// an error all move resolution on to the next tier; they differ only in
// Diagnostic and Err.
type Candidate struct {
	Found      bool
	Value      string
	Diagnostic string
	Denied     bool
	Err        error
}

// Hit wraps a resolved image URL or path.
func Hit(value string) Candidate {
	return Candidate{Found: true, Value: value}
}

// Miss reports that a tier ran but produced nothing usable.
func Miss(diagnostic string) Candidate {
	return Candidate{Diagnostic: diagnostic}
}

// Denied reports a deliberate no-fetch, e.g. robots.txt disallows the page.
func Denied(diagnostic string) Candidate {
	return Candidate{Diagnostic: diagnostic, Denied: true}
}

// Failed reports a tier that errored.
func Failed(err error) Candidate {
	c := Candidate{Err: err}
	if err != nil {
		c.Diagnostic = err.Error()
	}
	return c
}

// Outcome classifies the candidate.
func (c Candidate) Outcome() Outcome {
	switch {
	case c.Found:
		return OutcomeHit
	case c.Err != nil:
		return OutcomeError
	case c.Denied:
		return OutcomeDenied
	default:
		return OutcomeMiss
	}
}
