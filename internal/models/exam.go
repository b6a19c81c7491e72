package models

import (
	"time"
)

// Exam scheduling modes. A deadline exam can be taken any time before its
// ExamDate; a specific-time exam opens at StartTime.
const (
	ScheduleDeadline     = "deadline"
	ScheduleSpecificTime = "specific_time"
)

type Subject struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `json:"name" gorm:"uniqueIndex;not null"`
	Description string    `json:"description"`
	Chapters    []Chapter `json:"chapters,omitempty" gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE"`
}

type Chapter struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SubjectID   uint      `json:"subject_id" gorm:"uniqueIndex:idx_chapter_subject_name;not null"`
	Name        string    `json:"name" gorm:"uniqueIndex:idx_chapter_subject_name;not null"`
	Description string    `json:"description"`
	Exams       []Exam    `json:"exams,omitempty" gorm:"foreignKey:ChapterID;constraint:OnDelete:CASCADE"`
}

// Exam aggregates TotalMarks and TotalQuestions over its question set. Both
// are maintained incrementally inside the same transaction as any question
// mutation; they are never set directly by callers.
type Exam struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ChapterID       uint       `json:"chapter_id" gorm:"not null"`
	Name            string     `json:"name" gorm:"not null"`
	TotalMarks      float64    `json:"total_marks"`
	TotalQuestions  int        `json:"total_questions"`
	DurationMinutes int        `json:"duration_minutes"`
	ExamDate        time.Time  `json:"exam_date"`
	ScheduleType    string     `json:"schedule_type" gorm:"default:deadline"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	Published       bool       `json:"published" gorm:"default:false"`
	Questions       []Question `json:"questions,omitempty" gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE"`
}

// Locked reports whether the exam's fields and question set are frozen.
// Published exams only accept an unpublish toggle.
func (e *Exam) Locked() bool {
	return e.Published
}

type Question struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ExamID        uint      `json:"exam_id" gorm:"not null"`
	Statement     string    `json:"statement" gorm:"not null"`
	Option1       string    `json:"option1" gorm:"not null"`
	Option2       string    `json:"option2" gorm:"not null"`
	Option3       string    `json:"option3" gorm:"not null"`
	Option4       string    `json:"option4" gorm:"not null"`
	CorrectOption int       `json:"correct_option" gorm:"not null"`
	Marks         float64   `json:"marks"`
	NegativeMarks float64   `json:"negative_marks"`
}

// Attempt is one student's run through one exam. TotalMarks is snapshotted
// from the exam at start time so later question edits cannot change the
// denominator of a finished attempt. Submitted flips exactly once.
type Attempt struct {
	ID            uint             `json:"id" gorm:"primaryKey"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	StudentID     uint             `json:"student_id" gorm:"not null;index"`
	ExamID        uint             `json:"exam_id" gorm:"not null"`
	AttemptDate   time.Time        `json:"attempt_date"`
	MarksObtained float64          `json:"marks_obtained"`
	TotalMarks    float64          `json:"total_marks"`
	Submitted     bool             `json:"submitted" gorm:"default:false"`
	Answers       []SelectedAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
	Exam          *Exam            `json:"-" gorm:"foreignKey:ExamID"`
}

// SelectedAnswer is write-once: rows are created only when an attempt is
// submitted, one per answered question.
type SelectedAnswer struct {
	ID             uint `json:"id" gorm:"primaryKey"`
	AttemptID      uint `json:"attempt_id" gorm:"not null;index"`
	QuestionID     uint `json:"question_id" gorm:"not null"`
	SelectedOption int  `json:"selected_option"`
}
