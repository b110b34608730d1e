package domain

// RetrieveOptions configures a retrieval query.
type RetrieveOptions struct {
	// MatchCount caps the candidates requested from similarity search.
	// Zero means DefaultMatchCount.
	MatchCount int

	// SimilarityThreshold drops candidates scoring strictly below it.
	SimilarityThreshold float64
}

// WithDefaults fills zero fields.
func (o RetrieveOptions) WithDefaults() RetrieveOptions {
	if o.MatchCount <= 0 {
		o.MatchCount = DefaultMatchCount
	}
	return o
}
