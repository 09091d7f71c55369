package domain

// DedupOptions controls one deduplication pass. Execute defaults to false:
// a pass is a dry run unless the caller explicitly opts into deletion.
type DedupOptions struct {
	Threshold float64 `json:"threshold,omitempty"`
	Execute   bool    `json:"execute,omitempty"`
}

// DuplicateGroup is a transitively closed cluster of near-duplicate
// documents and the single representative that survives it.
type DuplicateGroup struct {
	IDs           []string `json:"ids"`
	KeepID        string   `json:"keep"`
	RemoveIDs     []string `json:"remove"`
	MaxSimilarity float64  `json:"max_similarity"`
}

// DedupReport is the auditable outcome of a deduplication pass.
type DedupReport struct {
	Scanned   int              `json:"scanned"`
	Groups    []DuplicateGroup `json:"groups"`
	Removed   int              `json:"removed"`
	DryRun    bool             `json:"dry_run"`
	Threshold float64          `json:"threshold"`
}
