package storage

import "errors"

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrProfileExists   = errors.New("profile identifier already registered")
	ErrProfileNotFound = errors.New("profile not found")
	ErrTokenNotFound   = errors.New("token not found")
	ErrQueryNotFound   = errors.New("voice query not found")
	ErrNoticeNotFound  = errors.New("notice not found")
)
