package usecase

import "time"

// RetrievalConfig holds every tunable of the hybrid pipeline. Instances are
// treated as immutable after construction; the zero value of any field falls
// back to the default below.
type RetrievalConfig struct {
	VectorWeight  float64
	KeywordWeight float64
	BoostStep     float64
	BoostCap      float64

	MinScore       float64
	TopK           int
	CandidateLimit int

	ExpansionCount   int
	ExpansionTimeout time.Duration

	RerankTopN   int
	RerankWeight float64

	HighBand   float64
	MediumBand float64
	LowBand    float64

	DedupThreshold float64
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		VectorWeight:  0.5,
		KeywordWeight: 0.3,
		BoostStep:     0.05,
		BoostCap:      0.2,

		MinScore:       0.5,
		TopK:           10,
		CandidateLimit: 20,

		ExpansionCount:   2,
		ExpansionTimeout: 3 * time.Second,

		RerankTopN:   20,
		RerankWeight: 0.7,

		HighBand:   0.8,
		MediumBand: 0.6,
		LowBand:    0.5,

		DedupThreshold: 0.95,
	}
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	def := DefaultRetrievalConfig()
	out := c

	if out.VectorWeight <= 0 {
		out.VectorWeight = def.VectorWeight
	}
	if out.KeywordWeight <= 0 {
		out.KeywordWeight = def.KeywordWeight
	}
	if out.BoostStep <= 0 {
		out.BoostStep = def.BoostStep
	}
	if out.BoostCap <= 0 {
		out.BoostCap = def.BoostCap
	}
	if out.MinScore <= 0 {
		out.MinScore = def.MinScore
	}
	if out.TopK <= 0 {
		out.TopK = def.TopK
	}
	if out.CandidateLimit < out.TopK {
		out.CandidateLimit = max(out.TopK, def.CandidateLimit)
	}
	if out.ExpansionCount < 0 {
		out.ExpansionCount = def.ExpansionCount
	}
	if out.ExpansionTimeout <= 0 {
		out.ExpansionTimeout = def.ExpansionTimeout
	}
	if out.RerankTopN <= 0 {
		out.RerankTopN = def.RerankTopN
	}
	if out.RerankWeight <= 0 || out.RerankWeight > 1 {
		out.RerankWeight = def.RerankWeight
	}
	if out.HighBand <= 0 {
		out.HighBand = def.HighBand
	}
	if out.MediumBand <= 0 {
		out.MediumBand = def.MediumBand
	}
	if out.LowBand <= 0 {
		out.LowBand = def.LowBand
	}
	if out.DedupThreshold <= 0 || out.DedupThreshold > 1 {
		out.DedupThreshold = def.DedupThreshold
	}
	return out
}
