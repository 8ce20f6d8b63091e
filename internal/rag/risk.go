package rag

// RiskThresholds splits accuracy (0-100) into tiers: below HighMax is high
// risk, below MediumMax is medium, anything else is low.
type RiskThresholds struct {
	HighMax   float64
	MediumMax float64
}

func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{HighMax: 30, MediumMax: 50}
}

func (t RiskThresholds) valid() bool {
	return t.HighMax < t.MediumMax
}

func (t RiskThresholds) Classify(accuracy float64) RiskLevel {
	switch {
	case accuracy < t.HighMax:
		return RiskHigh
	case accuracy < t.MediumMax:
		return RiskMedium
	default:
		return RiskLow
	}
}
