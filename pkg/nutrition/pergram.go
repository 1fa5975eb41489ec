package nutrition

import (
	"fmt"
	"regexp"
	"strconv"
)

// Nutrients are the per-food keys converted by PerGram
var Nutrients = []string{"protein", "carbs", "fat", "fiber"}

var numberPattern = regexp.MustCompile(`(\d+\.?\d*)`)

// PerGram rewrites every string nutrient of data["foods"][i] from a per-100g
// amount to a per-gram amount formatted like "0.31g". Strings without a number
// and non-string values are left as they are.
func PerGram(data any) any {
	obj, ok := data.(map[string]any)
	if !ok {
		return data
	}
	foods, ok := obj["foods"].([]any)
	if !ok {
		return data
	}
	for _, f := range foods {
		food, ok := f.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range Nutrients {
			s, ok := food[key].(string)
			if !ok {
				continue
			}
			food[key] = ConvertPer100g(s)
		}
	}
	return obj
}

// ConvertPer100g converts a value such as "31g" to "0.31g"
func ConvertPer100g(s string) string {
	m := numberPattern.FindString(s)
	if m == "" {
		return s
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2fg", v/100)
}
