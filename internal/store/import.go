package store

// ImportMode selects how ImportHosts treats a domain that already exists.
type ImportMode string

const (
	// ImportSkip leaves an existing host with a matching domain untouched.
	ImportSkip ImportMode = "skip"
	// ImportOverwrite updates the existing host in place (an Update, not a
	// Create — its id and createdAt are preserved).
	ImportOverwrite ImportMode = "overwrite"
)

// ImportResult summarizes one ImportHosts call. Errs holds one string per
// item that failed validation; a failed item never aborts the rest of the
// batch.
//
// ImportHosts itself lives on the Orchestrator, not the Store: a batch
// import must render, reconcile, and validate each item against the live
// nginx binary before it is committed, which only the Orchestrator's
// reload barrier drives. These types stay in the store package since they
// describe Store-level outcomes (created/updated/skipped rows) that the
// Orchestrator's ImportHosts reports back.
type ImportResult struct {
	Created int
	Updated int
	Skipped int
	Errs    []string
}
