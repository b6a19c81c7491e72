package tasks

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"quizmaster/internal/models"

	"gorm.io/gorm"
)

// Jobs holds the background job bodies. Each public method enqueues; the
// queue drives execution and retry.
type Jobs struct {
	db     *gorm.DB
	mailer Mailer
	queue  *Queue
}

func NewJobs(db *gorm.DB, mailer Mailer, queue *Queue) *Jobs {
	return &Jobs{db: db, mailer: mailer, queue: queue}
}

// ExamPublished mails every registered student about a newly published
// exam. Satisfies the catalog's notifier contract.
func (j *Jobs) ExamPublished(exam *models.Exam) {
	examName := exam.Name
	j.queue.Enqueue("exam_published", func(ctx context.Context) error {
		var students []models.Student
		if err := j.db.WithContext(ctx).Find(&students).Error; err != nil {
			return err
		}
		for _, student := range students {
			body := fmt.Sprintf("Hi %s,\n\nA new exam is available: %s.\n\nGood luck!\nQuizMaster Team",
				student.Name, examName)
			if err := j.mailer.Send([]string{student.Email}, "New exam available!", body); err != nil {
				return err
			}
		}
		return nil
	})
}

// HistoryExport builds a CSV of the student's attempts and mails it.
// Satisfies the attempt engine's exporter contract.
func (j *Jobs) HistoryExport(studentID uint) {
	j.queue.Enqueue("history_export", func(ctx context.Context) error {
		var student models.Student
		if err := j.db.WithContext(ctx).First(&student, studentID).Error; err != nil {
			return err
		}
		var attempts []models.Attempt
		err := j.db.WithContext(ctx).Preload("Exam").
			Where("student_id = ?", studentID).
			Order("attempt_date desc").
			Find(&attempts).Error
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)
		writer.Write([]string{"attempt_id", "exam_name", "marks_obtained", "total_marks", "attempt_date"})
		for _, a := range attempts {
			examName := ""
			if a.Exam != nil {
				examName = a.Exam.Name
			}
			writer.Write([]string{
				strconv.FormatUint(uint64(a.ID), 10),
				examName,
				strconv.FormatFloat(a.MarksObtained, 'f', 2, 64),
				strconv.FormatFloat(a.TotalMarks, 'f', 2, 64),
				a.AttemptDate.Format("2006-01-02 15:04:05"),
			})
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return err
		}

		body := fmt.Sprintf("Hi %s,\n\nHere is your quiz history:\n\n%s\nThanks,\nThe QuizMaster Team",
			student.Name, buf.String())
		return j.mailer.Send([]string{student.Email}, "Your quiz history export", body)
	})
}

// MonthlyReport mails a 30-day performance summary to one student.
func (j *Jobs) MonthlyReport(studentID uint) {
	j.queue.Enqueue("monthly_report", func(ctx context.Context) error {
		var student models.Student
		if err := j.db.WithContext(ctx).First(&student, studentID).Error; err != nil {
			return err
		}
		since := time.Now().AddDate(0, 0, -30)
		var attempts []models.Attempt
		err := j.db.WithContext(ctx).
			Where("student_id = ? AND attempt_date >= ?", studentID, since).
			Find(&attempts).Error
		if err != nil {
			return err
		}

		var body string
		if len(attempts) == 0 {
			body = "You have not attempted any quizzes in the last 30 days."
		} else {
			var sum float64
			for _, a := range attempts {
				sum += a.MarksObtained
			}
			body = fmt.Sprintf("Hi %s,\n\nHere is your monthly performance report:\n\n"+
				"- Total Quizzes Taken: %d\n- Average Score: %.2f\n\nKeep up the great work!\n\n"+
				"Thanks,\nThe QuizMaster Team",
				student.Name, len(attempts), sum/float64(len(attempts)))
		}
		return j.mailer.Send([]string{student.Email}, "Your Monthly Performance Report", body)
	})
}

// RunMonthlyReports fans the monthly report out to every registered
// student. Kicked by StartMonthlyReportLoop on the first of the month.
func (j *Jobs) RunMonthlyReports(ctx context.Context) error {
	var students []models.Student
	if err := j.db.WithContext(ctx).Find(&students).Error; err != nil {
		return err
	}
	for _, student := range students {
		j.MonthlyReport(student.ID)
	}
	return nil
}

// RunDailyReminders finds published exams due today and reminds every
// student who hasn't attempted them yet. Kicked by StartReminderLoop.
func (j *Jobs) RunDailyReminders(ctx context.Context) error {
	dayStart := time.Now().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var exams []models.Exam
	err := j.db.WithContext(ctx).
		Where("published = ? AND exam_date >= ? AND exam_date < ?", true, dayStart, dayEnd).
		Find(&exams).Error
	if err != nil {
		return err
	}
	if len(exams) == 0 {
		return nil
	}

	var students []models.Student
	if err := j.db.WithContext(ctx).Preload("Attempts").Find(&students).Error; err != nil {
		return err
	}

	for _, student := range students {
		attempted := make(map[uint]bool, len(student.Attempts))
		for _, a := range student.Attempts {
			attempted[a.ExamID] = true
		}
		var pending []string
		for _, exam := range exams {
			if !attempted[exam.ID] {
				pending = append(pending, exam.Name)
			}
		}
		if len(pending) == 0 {
			continue
		}
		body := fmt.Sprintf("Hi %s,\n\nThis is a reminder that the following quizzes are due today: %s.\n\nGood luck!\nQuizMaster Team",
			student.Name, strings.Join(pending, ", "))
		if err := j.mailer.Send([]string{student.Email}, "Quiz Reminder!", body); err != nil {
			return err
		}
	}
	return nil
}

// StartReminderLoop enqueues the daily reminder task on each tick until ctx
// is canceled.
func (j *Jobs) StartReminderLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.queue.Enqueue("daily_reminders", j.RunDailyReminders)
			}
		}
	}()
	log.Printf("Daily reminder loop started, interval %v", interval)
}

// StartMonthlyReportLoop checks once a day and fans the report job out on
// the first day of each month.
func (j *Jobs) StartMonthlyReportLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if now.Day() != 1 {
					continue
				}
				j.queue.Enqueue("monthly_reports", j.RunMonthlyReports)
			}
		}
	}()
	log.Printf("Monthly report loop started")
}
