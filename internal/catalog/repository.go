package catalog

import (
	"quizmaster/internal/models"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// == Subjects ==

func (r *Repository) CreateSubject(subject *models.Subject) error {
	return r.db.Create(subject).Error
}

func (r *Repository) GetSubject(id uint) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.First(&subject, id).Error; err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *Repository) ListSubjects(search string) ([]models.Subject, error) {
	var subjects []models.Subject
	q := r.db.Order("name asc")
	if search != "" {
		q = q.Where("name LIKE ?", "%"+search+"%")
	}
	err := q.Find(&subjects).Error
	return subjects, err
}

func (r *Repository) CountSubjectsByName(name string, excludeID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Subject{}).
		Where("name = ? AND id <> ?", name, excludeID).
		Count(&count).Error
	return count, err
}

func (r *Repository) UpdateSubject(subject *models.Subject) error {
	return r.db.Save(subject).Error
}

func (r *Repository) DeleteSubject(id uint) error {
	return r.db.Select("Chapters").Delete(&models.Subject{ID: id}).Error
}

// == Chapters ==

func (r *Repository) CreateChapter(chapter *models.Chapter) error {
	return r.db.Create(chapter).Error
}

func (r *Repository) GetChapter(id uint) (*models.Chapter, error) {
	var chapter models.Chapter
	if err := r.db.First(&chapter, id).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (r *Repository) ListChapters(subjectID uint, search string) ([]models.Chapter, error) {
	var chapters []models.Chapter
	q := r.db.Order("name asc")
	if subjectID != 0 {
		q = q.Where("subject_id = ?", subjectID)
	}
	if search != "" {
		q = q.Where("name LIKE ?", "%"+search+"%")
	}
	err := q.Find(&chapters).Error
	return chapters, err
}

func (r *Repository) CountChaptersByName(subjectID uint, name string, excludeID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Chapter{}).
		Where("subject_id = ? AND name = ? AND id <> ?", subjectID, name, excludeID).
		Count(&count).Error
	return count, err
}

func (r *Repository) UpdateChapter(chapter *models.Chapter) error {
	return r.db.Save(chapter).Error
}

func (r *Repository) DeleteChapter(id uint) error {
	return r.db.Select("Exams").Delete(&models.Chapter{ID: id}).Error
}

// == Exams ==

func (r *Repository) CreateExam(exam *models.Exam) error {
	return r.db.Create(exam).Error
}

func (r *Repository) GetExam(id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := r.db.First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

type ExamFilter struct {
	ChapterID     uint
	SubjectID     uint
	PublishedOnly bool
}

func (r *Repository) ListExams(filter ExamFilter) ([]models.Exam, error) {
	var exams []models.Exam
	q := r.db.Order("exam_date asc")
	if filter.PublishedOnly {
		q = q.Where("exams.published = ?", true)
	}
	if filter.SubjectID != 0 {
		q = q.Joins("JOIN chapters ON chapters.id = exams.chapter_id").
			Where("chapters.subject_id = ?", filter.SubjectID)
	} else if filter.ChapterID != 0 {
		q = q.Where("exams.chapter_id = ?", filter.ChapterID)
	}
	err := q.Find(&exams).Error
	return exams, err
}

func (r *Repository) UpdateExam(exam *models.Exam) error {
	return r.db.Save(exam).Error
}

func (r *Repository) DeleteExam(id uint) error {
	return r.db.Select("Questions").Delete(&models.Exam{ID: id}).Error
}

// SetPublished flips the publish flag without touching other columns.
func (r *Repository) SetPublished(examID uint, published bool) error {
	return r.db.Model(&models.Exam{}).Where("id = ?", examID).
		Update("published", published).Error
}

// == Questions ==
//
// Question writes and the exam aggregate update share one transaction so a
// failure partway leaves both tables unchanged.

func (r *Repository) GetQuestion(id uint) (*models.Question, error) {
	var question models.Question
	if err := r.db.First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *Repository) ListQuestions(examID uint) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.Where("exam_id = ?", examID).Order("id asc").Find(&questions).Error
	return questions, err
}

func (r *Repository) AddQuestion(question *models.Question) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(question).Error; err != nil {
			return err
		}
		return tx.Model(&models.Exam{}).Where("id = ?", question.ExamID).
			Updates(map[string]interface{}{
				"total_questions": gorm.Expr("total_questions + 1"),
				"total_marks":     gorm.Expr("total_marks + ?", question.Marks),
			}).Error
	})
}

// UpdateQuestion adjusts TotalMarks by the marks delta; the question count
// is untouched.
func (r *Repository) UpdateQuestion(question *models.Question, marksDelta float64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(question).Error; err != nil {
			return err
		}
		if marksDelta == 0 {
			return nil
		}
		return tx.Model(&models.Exam{}).Where("id = ?", question.ExamID).
			Update("total_marks", gorm.Expr("total_marks + ?", marksDelta)).Error
	})
}

func (r *Repository) DeleteQuestion(question *models.Question) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Question{}, question.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Exam{}).Where("id = ?", question.ExamID).
			Updates(map[string]interface{}{
				"total_questions": gorm.Expr("total_questions - 1"),
				"total_marks":     gorm.Expr("total_marks - ?", question.Marks),
			}).Error
	})
}

// == Students (admin view) ==

func (r *Repository) ListStudents(search string, studentID uint) ([]models.Student, error) {
	var students []models.Student
	q := r.db.Order("name asc")
	if studentID != 0 {
		q = q.Where("id = ?", studentID)
	} else if search != "" {
		q = q.Where("name LIKE ? OR email LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	err := q.Find(&students).Error
	return students, err
}

func (r *Repository) DeleteStudent(id uint) error {
	return r.db.Select("Attempts").Delete(&models.Student{ID: id}).Error
}

// == Dashboard aggregates ==

func (r *Repository) SubjectAttemptStats(studentID uint) ([]models.SubjectStat, error) {
	var stats []models.SubjectStat
	query := `
        SELECT s.name AS subject,
               COUNT(a.id) AS count,
               COALESCE(AVG(a.marks_obtained), 0) AS average
        FROM subjects s
        JOIN chapters c ON c.subject_id = s.id
        JOIN exams e ON e.chapter_id = c.id
        JOIN attempts a ON a.exam_id = e.id`
	if studentID != 0 {
		query += ` WHERE a.student_id = ?
        GROUP BY s.name`
		return stats, r.db.Raw(query, studentID).Scan(&stats).Error
	}
	query += `
        GROUP BY s.name`
	return stats, r.db.Raw(query).Scan(&stats).Error
}

func (r *Repository) CountExams() (int64, error) {
	var count int64
	err := r.db.Model(&models.Exam{}).Count(&count).Error
	return count, err
}

func (r *Repository) CountStudents() (int64, error) {
	var count int64
	err := r.db.Model(&models.Student{}).Count(&count).Error
	return count, err
}

func (r *Repository) StudentAttemptSummary(studentID uint) (total int64, average, highest float64, err error) {
	row := r.db.Raw(`
        SELECT COUNT(id),
               COALESCE(AVG(marks_obtained), 0),
               COALESCE(MAX(marks_obtained), 0)
        FROM attempts WHERE student_id = ?`, studentID).Row()
	err = row.Scan(&total, &average, &highest)
	return total, average, highest, err
}

func (r *Repository) AttemptsOverTime(studentID uint) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.Where("student_id = ?", studentID).
		Order("attempt_date asc").Find(&attempts).Error
	return attempts, err
}
