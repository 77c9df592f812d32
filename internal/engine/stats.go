package engine

// Stats aggregates run counters. Ephemeral: reported at the end of a run and
// never persisted.
type Stats struct {
	// Checked counts members evaluated by the tenure phase.
	Checked int
	// TenureGranted counts members granted the tenure role this run.
	TenureGranted int
	// PairResolved counts members whose primary pair role was removed this run.
	PairResolved int
}
