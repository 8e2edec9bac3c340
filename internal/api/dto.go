package api

import (
	"time"

	"risk-decision/internal/scoring"
	"risk-decision/internal/store"
)

// PredictRequest is the applicant payload accepted by POST /predict. Fields are pointers so
// that a legitimate zero (down payment, employment years) differs from a missing field.
type PredictRequest struct {
	Age             *int     `json:"age" binding:"required,gte=18,lte=100"`
	MonthlyIncome   *float64 `json:"monthly_income" binding:"required,finite,gt=0"`
	VehiclePrice    *float64 `json:"vehicle_price" binding:"required,finite,gt=0"`
	DownPayment     *float64 `json:"down_payment" binding:"required,finite,gte=0"`
	EmploymentYears *int     `json:"employment_years" binding:"required,gte=0,lte=60"`
}

// Input converts a validated request into engine input.
func (r PredictRequest) Input() scoring.Input {
	return scoring.Input{
		Age:             derefInt(r.Age),
		MonthlyIncome:   derefFloat(r.MonthlyIncome),
		VehiclePrice:    derefFloat(r.VehiclePrice),
		DownPayment:     derefFloat(r.DownPayment),
		EmploymentYears: derefInt(r.EmploymentYears),
	}
}

// PredictResponse is the scoring result returned to callers.
type PredictResponse struct {
	RiskScore   int    `json:"risk_score"`
	RiskLevel   string `json:"risk_level"`
	Decision    string `json:"decision"`
	Explanation string `json:"explanation"`
}

// FromResult maps an engine result onto the response shape.
func FromResult(r scoring.Result) PredictResponse {
	return PredictResponse{
		RiskScore:   r.Score,
		RiskLevel:   string(r.Level),
		Decision:    string(r.Decision),
		Explanation: r.Explanation,
	}
}

// ValidationError describes one rejected field.
type ValidationError struct {
	Loc   []string `json:"loc"`
	Msg   string   `json:"msg"`
	Type  string   `json:"type"`
	Input any      `json:"input,omitempty"`
}

// ValidationErrorResponse is the 422 body.
type ValidationErrorResponse struct {
	Detail []ValidationError `json:"detail"`
}

// TallyDTO is the API representation of a store.DecisionTally.
type TallyDTO struct {
	Day       string `json:"day"`
	RiskLevel string `json:"risk_level"`
	Decision  string `json:"decision"`
	Total     int64  `json:"total"`
}

// StatsResponse lists decision tallies for a window of days.
type StatsResponse struct {
	Since string     `json:"since"`
	Items []TallyDTO `json:"items"`
	Total int64      `json:"total"`
}

// TallyFromModel converts a store.DecisionTally into a DTO.
func TallyFromModel(t store.DecisionTally) TallyDTO {
	return TallyDTO{
		Day:       t.Day,
		RiskLevel: t.Level,
		Decision:  t.Decision,
		Total:     t.Total,
	}
}

// DecisionEvent is pushed to stream subscribers after each decision. It omits the
// explanation since that embeds applicant attributes.
type DecisionEvent struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	RiskScore int       `json:"risk_score"`
	RiskLevel string    `json:"risk_level"`
	Decision  string    `json:"decision"`
	Timestamp time.Time `json:"timestamp"`
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
