package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// UnmarshalJSON reads the numeric fields leniently: integers accept integral floats and
// numeric strings, floats accept numeric strings. Absent fields stay nil for the required
// check; values that cannot be coerced are reported together.
func (r *PredictRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var issues coercionErrors
	r.Age = looseInt(raw, "age", &issues)
	r.MonthlyIncome = looseFloat(raw, "monthly_income", &issues)
	r.VehiclePrice = looseFloat(raw, "vehicle_price", &issues)
	r.DownPayment = looseFloat(raw, "down_payment", &issues)
	r.EmploymentYears = looseInt(raw, "employment_years", &issues)

	if len(issues) > 0 {
		return issues
	}
	return nil
}

const maxExactInt = 1 << 53

func looseInt(raw map[string]json.RawMessage, field string, issues *coercionErrors) *int {
	msg, ok := raw[field]
	if !ok {
		return nil
	}
	value := decodeLoose(msg)
	fail := func(typ, text string) *int {
		*issues = append(*issues, ValidationError{Loc: bodyLoc(field), Msg: text, Type: typ, Input: value})
		return nil
	}

	switch v := value.(type) {
	case json.Number:
		n, integral, ok := parseIntegral(v.String())
		switch {
		case ok && integral:
			return &n
		case ok:
			return fail("int_from_float", "Input should be a valid integer, got a number with a fractional part")
		default:
			return fail("int_type", "Input should be a valid integer")
		}
	case string:
		if n, integral, ok := parseIntegral(strings.TrimSpace(v)); ok && integral {
			return &n
		}
		return fail("int_parsing", "Input should be a valid integer, unable to parse string as an integer")
	default:
		return fail("int_type", "Input should be a valid integer")
	}
}

// parseIntegral reports whether text is a finite number and whether it has no fractional part.
func parseIntegral(text string) (n int, integral, ok bool) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxExactInt {
		return 0, false, false
	}
	if f != math.Trunc(f) {
		return 0, false, true
	}
	return int(f), true, true
}

func looseFloat(raw map[string]json.RawMessage, field string, issues *coercionErrors) *float64 {
	msg, ok := raw[field]
	if !ok {
		return nil
	}
	value := decodeLoose(msg)

	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		*issues = append(*issues, ValidationError{
			Loc: bodyLoc(field), Msg: "Input should be a valid number", Type: "float_type", Input: value,
		})
		return nil
	}

	f, err := strconv.ParseFloat(text, 64)
	switch {
	case err == nil && !math.IsNaN(f) && !math.IsInf(f, 0):
		return &f
	case err == nil, errors.Is(err, strconv.ErrRange):
		*issues = append(*issues, ValidationError{
			Loc: bodyLoc(field), Msg: "Input should be a finite number", Type: "finite_number", Input: value,
		})
	default:
		*issues = append(*issues, ValidationError{
			Loc: bodyLoc(field), Msg: "Input should be a valid number, unable to parse string as a number",
			Type: "float_parsing", Input: value,
		})
	}
	return nil
}

// decodeLoose keeps numbers as json.Number so integers survive without float rounding.
func decodeLoose(msg json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil
	}
	return value
}
