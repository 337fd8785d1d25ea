// Package bmi computes a body-mass index from the free-text height and
// weight answers of the intake questionnaire.
package bmi

import (
	"math"
	"strconv"
	"strings"
)

// Result is a BMI value rounded to one decimal with its WHO category.  Value
// is nil when either input cannot be interpreted.
type Result struct {
	Value *float64 `json:"bmi"`
	Label string   `json:"label"`
}

// Compute accepts heights in metres ("1.70") or centimetres ("170 cm") and
// weights in kilograms ("70kg").  Heights above 3 are taken as centimetres.
func Compute(height, weight string) Result {
	h, okH := number(height)
	w, okW := number(weight)
	if !okH || !okW || h <= 0 || w <= 0 {
		return Result{Label: "N/A"}
	}
	if h > 3 {
		h /= 100
	}
	v := math.Round(w/(h*h)*10) / 10
	return Result{Value: &v, Label: label(v)}
}

func label(v float64) string {
	switch {
	case v < 18.5:
		return "Underweight"
	case v < 25:
		return "Normal"
	case v < 30:
		return "Overweight"
	default:
		return "Obese"
	}
}

// number keeps digits, dots and minus signs and parses what is left.
func number(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}
