package auth

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

func (r *Repository) GetStudentByEmail(email string) (*models.Student, error) {
	var student models.Student
	if err := r.db.Where("email = ?", email).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *Repository) GetStudentByID(id uint) (*models.Student, error) {
	var student models.Student
	if err := r.db.First(&student, id).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *Repository) CreateStudent(student *models.Student) error {
	return r.db.Create(student).Error
}

func (r *Repository) UpdateStudent(student *models.Student) error {
	return r.db.Save(student).Error
}

func (r *Repository) DeleteStudent(id uint) error {
	return r.db.Delete(&models.Student{}, id).Error
}

func (r *Repository) CountStudentsByEmail(email string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Student{}).Where("email = ?", email).Count(&count).Error
	return count, err
}

func (r *Repository) GetAdminByEmail(email string) (*models.Admin, error) {
	var admin models.Admin
	if err := r.db.Where("email = ?", email).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *Repository) FirstAdmin() (*models.Admin, error) {
	var admin models.Admin
	if err := r.db.First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *Repository) CreateAdmin(admin *models.Admin) error {
	return r.db.Create(admin).Error
}
