package vibelock

import "slices"

// Question is one prompt of the fixed pool. Answers must be one of Options.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// Accepts reports whether answer is one of the question's options.
func (q Question) Accepts(answer string) bool {
	return slices.Contains(q.Options, answer)
}

// DefaultQuestions is the built-in pool rounds draw from.
var DefaultQuestions = []Question{
	{ID: "weekend", Prompt: "Perfect weekend?", Options: []string{"Road trip", "Netflix marathon", "Festival", "Hiking"}},
	{ID: "first_date", Prompt: "Ideal first date?", Options: []string{"Coffee", "Dinner", "Museum", "Drinks"}},
	{ID: "pets", Prompt: "Cats or dogs?", Options: []string{"Cats", "Dogs", "Both", "Neither"}},
	{ID: "morning", Prompt: "Morning person or night owl?", Options: []string{"Morning person", "Night owl"}},
	{ID: "travel", Prompt: "Dream trip?", Options: []string{"Beach", "Mountains", "City break", "Backpacking"}},
	{ID: "food", Prompt: "Pick a cuisine.", Options: []string{"Italian", "Japanese", "Mexican", "Indian"}},
	{ID: "music", Prompt: "Soundtrack of your life?", Options: []string{"Pop", "Rock", "Hip-hop", "Jazz", "Electronic"}},
	{ID: "plans", Prompt: "Plans or spontaneity?", Options: []string{"Plans", "Spontaneity"}},
}
