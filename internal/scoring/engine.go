package scoring

import "fmt"

// Level is the coarse risk classification derived from a clamped score.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Decision is the action label paired with a Level.
type Decision string

const (
	DecisionApprove           Decision = "Approve"
	DecisionApproveConditions Decision = "Approve with conditions"
	DecisionReviewReject      Decision = "Review / Reject"
)

const (
	baseScore = 50
	minScore  = 0
	maxScore  = 100

	// incomeMonths approximates the income baseline the financed amount is compared to.
	incomeMonths = 6

	lowRiskThreshold    = 70
	mediumRiskThreshold = 45
)

// Input carries applicant attributes. Ranges are enforced by the caller.
type Input struct {
	Age             int
	MonthlyIncome   float64
	VehiclePrice    float64
	DownPayment     float64
	EmploymentYears int
}

// Result is the engine output.
type Result struct {
	Score          int
	Level          Level
	Decision       Decision
	Explanation    string
	FinancedAmount float64
	Ratio          float64
}

// Compute applies the additive point rules to in. It is pure and safe for concurrent use.
func Compute(in Input) Result {
	financed := in.VehiclePrice - in.DownPayment
	if financed < 0 {
		financed = 0
	}

	baseline := in.MonthlyIncome * incomeMonths
	if baseline < 1 {
		baseline = 1
	}
	ratio := financed / baseline

	score := baseScore + ratioDelta(ratio) + employmentDelta(in.EmploymentYears) + ageDelta(in.Age)
	score = clamp(score, minScore, maxScore)

	level, decision := Classify(score)

	return Result{
		Score:          score,
		Level:          level,
		Decision:       decision,
		Explanation:    explain(financed, ratio, in.EmploymentYears, in.Age),
		FinancedAmount: financed,
		Ratio:          ratio,
	}
}

// Classify maps a clamped score onto its level and decision.
func Classify(score int) (Level, Decision) {
	switch {
	case score >= lowRiskThreshold:
		return LevelLow, DecisionApprove
	case score >= mediumRiskThreshold:
		return LevelMedium, DecisionApproveConditions
	default:
		return LevelHigh, DecisionReviewReject
	}
}

func ratioDelta(ratio float64) int {
	switch {
	case ratio > 1.5:
		return -25
	case ratio > 1.0:
		return -15
	case ratio > 0.7:
		return -5
	default:
		return 5
	}
}

func employmentDelta(years int) int {
	switch {
	case years >= 5:
		return 20
	case years >= 2:
		return 10
	default:
		return -10
	}
}

func ageDelta(age int) int {
	switch {
	case age < 21:
		return -10
	case age > 65:
		return -5
	default:
		return 0
	}
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func explain(financed, ratio float64, employmentYears, age int) string {
	return fmt.Sprintf(
		"financed_amount=%.0f, ratio=%.2f, employment_years=%d, age=%d",
		financed, ratio, employmentYears, age,
	)
}
