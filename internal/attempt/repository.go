package attempt

import (
	"quizmaster/internal/apperr"
	"quizmaster/internal/models"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetExamWithQuestions(examID uint) (*models.Exam, error) {
	var exam models.Exam
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.id asc")
	}).First(&exam, examID).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *Repository) CreateAttempt(attempt *models.Attempt) error {
	return r.db.Create(attempt).Error
}

// GetAttemptForStudent looks up an attempt by id scoped to its owner. A
// missing row and a row owned by someone else are indistinguishable here.
func (r *Repository) GetAttemptForStudent(attemptID, studentID uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := r.db.Where("id = ? AND student_id = ?", attemptID, studentID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *Repository) GetAttemptWithAnswers(attemptID, studentID uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := r.db.Preload("Answers").Preload("Exam").
		Where("id = ? AND student_id = ?", attemptID, studentID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FinalizeSubmission is the Started->Submitted edge. The submitted flag is
// flipped with a compare-and-set so two racing submissions cannot both
// score: the loser sees zero rows affected and the whole transaction,
// answer rows included, rolls back.
func (r *Repository) FinalizeSubmission(attemptID uint, total float64, answers []models.SelectedAnswer) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Attempt{}).
			Where("id = ? AND submitted = ?", attemptID, false).
			Updates(map[string]interface{}{
				"submitted":      true,
				"marks_obtained": total,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrAlreadySubmitted
		}
		if len(answers) == 0 {
			return nil
		}
		return tx.Create(&answers).Error
	})
}

func (r *Repository) ListAttempts(studentID uint) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.Preload("Exam").
		Where("student_id = ?", studentID).
		Order("attempt_date desc").
		Find(&attempts).Error
	return attempts, err
}
