package attempt

import "quizmaster/internal/models"

// Score computes the signed mark delta for one question. nil means the
// student left the question unanswered. Total over {1,2,3,4,nil}; never
// panics for any option value.
//
// Unanswered -> 0. Correct -> +Marks. Wrong -> -|NegativeMarks|; the
// penalty is stored as a magnitude and always subtracted.
func Score(question models.Question, selected *int) float64 {
	if selected == nil {
		return 0
	}
	if *selected == question.CorrectOption {
		return question.Marks
	}
	penalty := question.NegativeMarks
	if penalty < 0 {
		penalty = -penalty
	}
	return -penalty
}
