package auth

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"quizmaster/internal/apperr"
	"quizmaster/internal/models"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	repo      *Repository
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewService(repo *Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  24 * time.Hour,
	}
}

// LoginResult carries the signed token plus the student id for student
// logins (the frontend keys its routes off it).
type LoginResult struct {
	Token     string `json:"token"`
	StudentID uint   `json:"student_id,omitempty"`
}

// Login authenticates either role against its own table. Credential
// failures all surface as the same error.
func (s *Service) Login(role, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, apperr.Validationf("email and password are required")
	}

	var (
		id   uint
		hash string
	)
	switch role {
	case models.RoleAdmin:
		admin, err := s.repo.GetAdminByEmail(email)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrNotFound)
		}
		id, hash = admin.ID, admin.PasswordHash
	default:
		role = models.RoleStudent
		student, err := s.repo.GetStudentByEmail(strings.ToLower(email))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrNotFound)
		}
		id, hash = student.ID, student.PasswordHash
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrNotFound)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  id,
		"role": role,
		"exp":  time.Now().Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Token: signed}
	if role == models.RoleStudent {
		result.StudentID = id
	}
	return result, nil
}

type RegisterStudentInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DOB         string `json:"dob"`
	CollegeName string `json:"college_name"`
	Degree      string `json:"degree"`
}

func (s *Service) RegisterStudent(in RegisterStudentInput) (*models.Student, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, apperr.Validationf("name, email and password are required")
	}
	dob, err := time.Parse("2006-01-02", in.DOB)
	if err != nil {
		return nil, apperr.Validationf("dob must be YYYY-MM-DD")
	}

	email := strings.ToLower(in.Email)
	count, err := s.repo.CountStudentsByEmail(email)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: an account with this email already exists", apperr.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	student := &models.Student{
		Name:         in.Name,
		Email:        email,
		PasswordHash: string(hash),
		DOB:          dob,
		CollegeName:  in.CollegeName,
		Degree:       in.Degree,
	}
	if err := s.repo.CreateStudent(student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *Service) GetStudent(id uint) (*models.Student, error) {
	student, err := s.repo.GetStudentByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: student", apperr.ErrNotFound)
		}
		return nil, err
	}
	return student, nil
}

type UpdateStudentInput struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	DOB         *string `json:"dob"`
	CollegeName *string `json:"college_name"`
	Degree      *string `json:"degree"`
}

func (s *Service) UpdateStudent(id uint, in UpdateStudentInput) (*models.Student, error) {
	student, err := s.GetStudent(id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		student.Name = *in.Name
	}
	if in.Email != nil {
		email := strings.ToLower(*in.Email)
		if email != student.Email {
			count, err := s.repo.CountStudentsByEmail(email)
			if err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, fmt.Errorf("%w: an account with this email already exists", apperr.ErrConflict)
			}
		}
		student.Email = email
	}
	if in.DOB != nil {
		dob, err := time.Parse("2006-01-02", *in.DOB)
		if err != nil {
			return nil, apperr.Validationf("dob must be YYYY-MM-DD")
		}
		student.DOB = dob
	}
	if in.CollegeName != nil {
		student.CollegeName = *in.CollegeName
	}
	if in.Degree != nil {
		student.Degree = *in.Degree
	}
	if err := s.repo.UpdateStudent(student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *Service) DeleteStudent(id uint) error {
	if _, err := s.GetStudent(id); err != nil {
		return err
	}
	return s.repo.DeleteStudent(id)
}

// BootstrapAdmin provisions the singleton admin record at startup if no
// admin row exists yet.
func (s *Service) BootstrapAdmin(name, email, password string) error {
	if _, err := s.repo.FirstAdmin(); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if email == "" || password == "" {
		return apperr.Validationf("admin email and password must be configured")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &models.Admin{Name: name, Email: email, PasswordHash: string(hash)}
	if err := s.repo.CreateAdmin(admin); err != nil {
		return err
	}
	log.Printf("Bootstrapped admin account %s", email)
	return nil
}
