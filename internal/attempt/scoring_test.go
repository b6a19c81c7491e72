package attempt

import (
	"testing"

	"quizmaster/internal/models"
)

func intPtr(v int) *int { return &v }

func TestScore(t *testing.T) {
	question := models.Question{
		CorrectOption: 2,
		Marks:         4,
		NegativeMarks: 1,
	}

	tests := []struct {
		name     string
		question models.Question
		selected *int
		want     float64
	}{
		{name: "correct", question: question, selected: intPtr(2), want: 4},
		{name: "wrong", question: question, selected: intPtr(3), want: -1},
		{name: "unanswered", question: question, selected: nil, want: 0},
		{name: "wrong option 1", question: question, selected: intPtr(1), want: -1},
		{name: "wrong option 4", question: question, selected: intPtr(4), want: -1},
		{
			name:     "no penalty configured",
			question: models.Question{CorrectOption: 1, Marks: 5},
			selected: intPtr(3),
			want:     0,
		},
		{
			name:     "penalty stored negative still subtracts",
			question: models.Question{CorrectOption: 1, Marks: 5, NegativeMarks: -2},
			selected: intPtr(3),
			want:     -2,
		},
		{
			name:     "zero marks correct",
			question: models.Question{CorrectOption: 4, Marks: 0, NegativeMarks: 1},
			selected: intPtr(4),
			want:     0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.question, tc.selected)
			if got != tc.want {
				t.Errorf("Score() = %v, want %v", got, tc.want)
			}
			// Deterministic: same inputs, same delta.
			if again := Score(tc.question, tc.selected); again != got {
				t.Errorf("Score() not deterministic: %v then %v", got, again)
			}
		})
	}
}
