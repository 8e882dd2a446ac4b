package models

import "time"

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleFaculty Role = "FACULTY"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleFaculty
}

type Account struct {
	ID         int64
	Email      string
	PassHash   []byte
	Role       Role
	IsVerified bool
	IsActive   bool
	CreatedAt  time.Time
}

// * CanAuthenticate сообщает, может ли аккаунт получать токены
func (a Account) CanAuthenticate() bool {
	return a.IsVerified && a.IsActive
}

// Profile is stored in student_profiles or faculty_profiles depending on the
// owning account's role. Role-specific fields are empty for the other role.
type Profile struct {
	FullName    string `json:"fullName"`
	Department  string `json:"department"`
	Phone       string `json:"phone"`
	RollNumber  string `json:"rollNumber,omitempty"`
	Year        string `json:"year,omitempty"`
	EmployeeID  string `json:"employeeId,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// * MatchesRole проверяет, что профиль содержит идентификатор своей роли
func (p Profile) MatchesRole(role Role) bool {
	switch role {
	case RoleStudent:
		return p.RollNumber != "" && p.EmployeeID == ""
	case RoleFaculty:
		return p.EmployeeID != "" && p.RollNumber == ""
	}

	return false
}

type TokenKind string

const (
	TokenEmailVerification TokenKind = "email_verification"
	TokenPasswordReset     TokenKind = "password_reset"
	TokenRefresh           TokenKind = "refresh"
)

type Token struct {
	AccountID int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// * IsExpired проверяет, истек ли срок действия токена
func (t Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type User struct {
	ID         int64   `json:"id"`
	Email      string  `json:"email"`
	Role       Role    `json:"userType"`
	IsVerified bool    `json:"isVerified"`
	Profile    Profile `json:"profile"`
}

type VoiceQuery struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"userId"`
	Query       string    `json:"query"`
	QueryType   string    `json:"queryType"`
	Response    *string   `json:"response"`
	ProcessedAt time.Time `json:"processedAt"`
}

type Notice struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"authorId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type StudentSummary struct {
	AccountID  int64  `json:"id"`
	FullName   string `json:"name"`
	RollNumber string `json:"rollNumber"`
	Department string `json:"department"`
	Year       string `json:"year"`
}

const (
	PurposeVerification  = "email_verification"
	PurposePasswordReset = "password_reset"
)

// Message is the payload placed on the mail queue and read by mail_sender.
type Message struct {
	Email   string `json:"to"`
	Name    string `json:"name"`
	Link    string `json:"link"`
	Purpose string `json:"purpose"`
}
