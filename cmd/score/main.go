package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"risk-decision/internal/api"
	"risk-decision/internal/scoring"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logrus.Fatalf("score: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	var (
		age             = fs.Int("age", 0, "Applicant age (18-100)")
		monthlyIncome   = fs.Float64("monthly-income", 0, "Monthly income (> 0)")
		vehiclePrice    = fs.Float64("vehicle-price", 0, "Vehicle price (> 0)")
		downPayment     = fs.Float64("down-payment", 0, "Down payment (>= 0)")
		employmentYears = fs.Int("employment-years", 0, "Years at current employer (0-60)")
		verbose         = fs.Bool("verbose", false, "Include financed amount and ratio in the output")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := api.PredictRequest{
		Age:             age,
		MonthlyIncome:   monthlyIncome,
		VehiclePrice:    vehiclePrice,
		DownPayment:     downPayment,
		EmploymentYears: employmentYears,
	}
	if details := req.Validate(); len(details) > 0 {
		return invalidInput(details)
	}

	result := scoring.Compute(req.Input())
	logrus.WithFields(logrus.Fields{
		"score":    result.Score,
		"level":    result.Level,
		"decision": result.Decision,
	}).Debug("decision computed")

	var payload any = api.FromResult(result)
	if *verbose {
		payload = struct {
			api.PredictResponse
			FinancedAmount float64 `json:"financed_amount"`
			Ratio          float64 `json:"ratio"`
		}{api.FromResult(result), result.FinancedAmount, result.Ratio}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func invalidInput(details []api.ValidationError) error {
	msgs := make([]string, 0, len(details))
	for _, d := range details {
		field := strings.Join(d.Loc[1:], ".")
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, d.Msg))
	}
	return fmt.Errorf("invalid input: %s", strings.Join(msgs, "; "))
}
