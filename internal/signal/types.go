package signal

// Action is the discrete recommendation.
type Action string

const (
	StrongBuy Action = "StrongBuy"
	BuyHold   Action = "BuyHold"
	Watch     Action = "Watch"
	SellAvoid Action = "SellAvoid"
)

// IsBuy reports whether the action recommends opening a position.
func (a Action) IsBuy() bool { return a == StrongBuy || a == BuyHold }

// Result is the composed advisory. Reasons follow rule order, one per
// applied rule.
type Result struct {
	TotalScore    int      `json:"total_score"`
	Action        Action   `json:"action"`
	Reasons       []string `json:"reasons"`
	LowConfidence bool     `json:"low_confidence,omitempty"`
}

// Thresholds are the absolute cutoffs the rules compare against.
type Thresholds struct {
	HealthyCurrentRatio  float64
	CapitalEfficiencyMin float64
	EarningsYieldMin     float64
	MinAverageVolume     float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HealthyCurrentRatio:  1.5,
		CapitalEfficiencyMin: 0.25,
		EarningsYieldMin:     0.10,
		MinAverageVolume:     500_000,
	}
}

// ActionFor maps a total score onto the four actions.
func ActionFor(score int) Action {
	switch {
	case score >= 5:
		return StrongBuy
	case score >= 3:
		return BuyHold
	case score < 0:
		return SellAvoid
	default:
		return Watch
	}
}
