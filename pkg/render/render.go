// Package render maps analysis results onto a display structure.
package render

import (
	"github.com/menta2k/food-analyzer/pkg/types"
)

const (
	FoodsHeading = "Nutritional Info Per Gram"
	ResetLabel   = "Analyze Another Image"
)

// Field is a labelled nutrient value shown on a card.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Card shows one food item.
type Card struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// View is the renderable form of an AnalysisResult. Advisory is set for
// the message variant; otherwise Heading and Cards describe the food list.
type View struct {
	Advisory   string `json:"advisory,omitempty"`
	Heading    string `json:"heading,omitempty"`
	Cards      []Card `json:"cards,omitempty"`
	ResetLabel string `json:"reset_label"`
}

// IsAdvisory reports whether the view is a single informational block.
func (v View) IsAdvisory() bool {
	return v.Heading == "" && v.Advisory != ""
}

// Render builds a View. Food order is kept and values are passed through
// untouched.
func Render(result types.AnalysisResult) View {
	if result.Kind == types.ResultAdvisory {
		return View{Advisory: result.Message, ResetLabel: ResetLabel}
	}

	view := View{Heading: FoodsHeading, ResetLabel: ResetLabel}
	if len(result.Foods) > 0 {
		view.Cards = make([]Card, 0, len(result.Foods))
	}
	for _, food := range result.Foods {
		view.Cards = append(view.Cards, Card{
			Title: food.Name,
			Fields: []Field{
				{Label: "Protein", Value: string(food.Protein)},
				{Label: "Carbs", Value: string(food.Carbs)},
				{Label: "Fat", Value: string(food.Fat)},
				{Label: "Fiber", Value: string(food.Fiber)},
			},
		})
	}
	return view
}
