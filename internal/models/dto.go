package models

import "time"

// QuestionView is the student-safe projection served while an attempt is in
// progress. It has no correct-answer field at all, so no serialization path
// can leak one.
type QuestionView struct {
	QuestionID    uint    `json:"question_id"`
	Statement     string  `json:"statement"`
	Option1       string  `json:"option1"`
	Option2       string  `json:"option2"`
	Option3       string  `json:"option3"`
	Option4       string  `json:"option4"`
	Marks         float64 `json:"marks"`
	NegativeMarks float64 `json:"negative_marks"`
}

func (q Question) StudentView() QuestionView {
	return QuestionView{
		QuestionID:    q.ID,
		Statement:     q.Statement,
		Option1:       q.Option1,
		Option2:       q.Option2,
		Option3:       q.Option3,
		Option4:       q.Option4,
		Marks:         q.Marks,
		NegativeMarks: q.NegativeMarks,
	}
}

// UnansweredSentinel marks a question the student never answered in a result
// row.
const UnansweredSentinel = -1

// ResultRow is the post-submission review projection: the full question,
// including the correct option, next to what the student picked.
type ResultRow struct {
	Statement     string  `json:"statement"`
	Option1       string  `json:"option1"`
	Option2       string  `json:"option2"`
	Option3       string  `json:"option3"`
	Option4       string  `json:"option4"`
	CorrectOption int     `json:"correct_option"`
	YourAnswer    int     `json:"your_answer"`
	Marks         float64 `json:"marks"`
	NegativeMarks float64 `json:"negative_marks"`
}

type HistoryEntry struct {
	AttemptID     uint      `json:"attempt_id"`
	ExamID        uint      `json:"exam_id"`
	ExamName      string    `json:"exam_name"`
	MarksObtained float64   `json:"marks_obtained"`
	TotalMarks    float64   `json:"total_marks"`
	AttemptDate   time.Time `json:"attempt_date"`
}

type SubjectStat struct {
	Subject string  `json:"subject"`
	Count   int64   `json:"count"`
	Average float64 `json:"average_score"`
}
