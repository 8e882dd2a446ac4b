// Package memory is a process-local storage driver for local runs and tests.
// It mirrors the constraints of the postgres schema: case-insensitive unique
// email, unique roll number / employee id, token rows keyed by hash.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"campus_echo/internal/models"
	"campus_echo/internal/storage"
)

type Repo struct {
	mu sync.RWMutex

	now func() time.Time

	accountSeq int64
	accounts   map[int64]models.Account
	byEmail    map[string]int64
	profiles   map[int64]models.Profile
	rolls      map[string]int64
	employees  map[string]int64

	tokens map[models.TokenKind]map[string]models.Token

	querySeq int64
	queries  map[int64]models.VoiceQuery

	noticeSeq int64
	notices   map[int64]models.Notice
}

func New() *Repo {
	return &Repo{
		now:       time.Now,
		accounts:  make(map[int64]models.Account),
		byEmail:   make(map[string]int64),
		profiles:  make(map[int64]models.Profile),
		rolls:     make(map[string]int64),
		employees: make(map[string]int64),
		tokens: map[models.TokenKind]map[string]models.Token{
			models.TokenEmailVerification: {},
			models.TokenPasswordReset:     {},
			models.TokenRefresh:           {},
		},
		queries: make(map[int64]models.VoiceQuery),
		notices: make(map[int64]models.Notice),
	}
}

func (r *Repo) SaveAccount(
	_ context.Context,
	acc models.Account,
	profile models.Profile,
	verification models.Token,
) (int64, error) {
	const op = "storage.memory.SaveAccount"

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(acc.Email)
	if _, ok := r.byEmail[key]; ok {
		return 0, storage.ErrAccountExists
	}

	switch acc.Role {
	case models.RoleStudent:
		if _, ok := r.rolls[profile.RollNumber]; ok {
			return 0, storage.ErrProfileExists
		}
	case models.RoleFaculty:
		if _, ok := r.employees[profile.EmployeeID]; ok {
			return 0, storage.ErrProfileExists
		}
	default:
		return 0, fmt.Errorf("%s: unknown role %q", op, acc.Role)
	}

	r.accountSeq++
	acc.ID = r.accountSeq
	acc.CreatedAt = r.now()

	r.accounts[acc.ID] = acc
	r.byEmail[key] = acc.ID
	r.profiles[acc.ID] = profile

	if acc.Role == models.RoleStudent {
		r.rolls[profile.RollNumber] = acc.ID
	} else {
		r.employees[profile.EmployeeID] = acc.ID
	}

	verification.AccountID = acc.ID
	r.putToken(models.TokenEmailVerification, verification)

	return acc.ID, nil
}

func (r *Repo) Account(_ context.Context, email string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return models.Account{}, storage.ErrAccountNotFound
	}

	return r.accounts[id], nil
}

func (r *Repo) AccountByID(_ context.Context, id int64) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[id]
	if !ok {
		return models.Account{}, storage.ErrAccountNotFound
	}

	return acc, nil
}

func (r *Repo) Profile(_ context.Context, accountID int64, role models.Role) (models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[accountID]
	if !ok || acc.Role != role {
		return models.Profile{}, storage.ErrProfileNotFound
	}

	p, ok := r.profiles[accountID]
	if !ok {
		return models.Profile{}, storage.ErrProfileNotFound
	}

	return p, nil
}

func (r *Repo) SetEmailVerified(_ context.Context, accountID int64, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}

	acc.IsVerified = true
	r.accounts[accountID] = acc
	delete(r.tokens[models.TokenEmailVerification], tokenHash)

	return nil
}

func (r *Repo) ResetPassword(_ context.Context, accountID int64, passHash []byte, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}

	acc.PassHash = passHash
	r.accounts[accountID] = acc

	r.deleteTokensOf(models.TokenRefresh, accountID)
	delete(r.tokens[models.TokenPasswordReset], tokenHash)

	return nil
}

// SetActive is used by tests and admin tooling; there is no HTTP route for it.
func (r *Repo) SetActive(_ context.Context, accountID int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}

	acc.IsActive = active
	r.accounts[accountID] = acc

	return nil
}

func (r *Repo) ReplaceToken(_ context.Context, kind models.TokenKind, token models.Token) error {
	const op = "storage.memory.ReplaceToken"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[kind]; !ok {
		return fmt.Errorf("%s: unknown token kind %q", op, kind)
	}
	if _, ok := r.accounts[token.AccountID]; !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	r.deleteTokensOf(kind, token.AccountID)
	r.putToken(kind, token)

	return nil
}

func (r *Repo) Token(_ context.Context, kind models.TokenKind, tokenHash string) (models.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[kind][tokenHash]
	if !ok {
		return models.Token{}, storage.ErrTokenNotFound
	}

	return t, nil
}

func (r *Repo) SaveRefreshToken(_ context.Context, token models.Token) error {
	const op = "storage.memory.SaveRefreshToken"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[token.AccountID]; !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	r.putToken(models.TokenRefresh, token)

	return nil
}

func (r *Repo) DeleteRefreshToken(_ context.Context, accountID int64, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tokens[models.TokenRefresh][tokenHash]; ok && t.AccountID == accountID {
		delete(r.tokens[models.TokenRefresh], tokenHash)
	}

	return nil
}

func (r *Repo) DeleteExpiredTokens(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64

	for _, byHash := range r.tokens {
		for hash, t := range byHash {
			if t.ExpiresAt.Before(before) {
				delete(byHash, hash)
				deleted++
			}
		}
	}

	return deleted, nil
}

func (r *Repo) SaveVoiceQuery(_ context.Context, q models.VoiceQuery) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.querySeq++
	q.ID = r.querySeq
	r.queries[q.ID] = q

	return q.ID, nil
}

func (r *Repo) UpdateVoiceQuery(_ context.Context, id int64, response, queryType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queries[id]
	if !ok {
		return storage.ErrQueryNotFound
	}

	q.Response = &response
	q.QueryType = queryType
	r.queries[id] = q

	return nil
}

func (r *Repo) VoiceQueries(_ context.Context, accountID int64, limit int) ([]models.VoiceQuery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queries := make([]models.VoiceQuery, 0, limit)
	for _, q := range r.queries {
		if q.AccountID == accountID {
			queries = append(queries, q)
		}
	}

	sort.Slice(queries, func(i, j int) bool {
		if queries[i].ProcessedAt.Equal(queries[j].ProcessedAt) {
			return queries[i].ID > queries[j].ID
		}
		return queries[i].ProcessedAt.After(queries[j].ProcessedAt)
	})

	if len(queries) > limit {
		queries = queries[:limit]
	}

	return queries, nil
}

func (r *Repo) SaveNotice(_ context.Context, n models.Notice) (models.Notice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.noticeSeq++
	n.ID = r.noticeSeq
	n.CreatedAt = r.now()
	n.UpdatedAt = n.CreatedAt
	r.notices[n.ID] = n

	return n, nil
}

func (r *Repo) UpdateNotice(_ context.Context, n models.Notice) (models.Notice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.notices[n.ID]
	if !ok || cur.AuthorID != n.AuthorID {
		return models.Notice{}, storage.ErrNoticeNotFound
	}

	cur.Title = n.Title
	cur.Body = n.Body
	cur.Category = n.Category
	cur.UpdatedAt = r.now()
	r.notices[n.ID] = cur

	return cur, nil
}

func (r *Repo) DeleteNotice(_ context.Context, id, authorID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.notices[id]
	if !ok || cur.AuthorID != authorID {
		return storage.ErrNoticeNotFound
	}

	delete(r.notices, id)

	return nil
}

func (r *Repo) Notices(_ context.Context, limit int) ([]models.Notice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notices := make([]models.Notice, 0, len(r.notices))
	for _, n := range r.notices {
		notices = append(notices, n)
	}

	sort.Slice(notices, func(i, j int) bool {
		if notices[i].CreatedAt.Equal(notices[j].CreatedAt) {
			return notices[i].ID > notices[j].ID
		}
		return notices[i].CreatedAt.After(notices[j].CreatedAt)
	})

	if len(notices) > limit {
		notices = notices[:limit]
	}

	return notices, nil
}

func (r *Repo) Students(_ context.Context, limit int) ([]models.StudentSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var students []models.StudentSummary
	for id, acc := range r.accounts {
		if acc.Role != models.RoleStudent {
			continue
		}
		p := r.profiles[id]
		students = append(students, models.StudentSummary{
			AccountID:  id,
			FullName:   p.FullName,
			RollNumber: p.RollNumber,
			Department: p.Department,
			Year:       p.Year,
		})
	}

	sort.Slice(students, func(i, j int) bool {
		return students[i].RollNumber < students[j].RollNumber
	})

	if len(students) > limit {
		students = students[:limit]
	}

	return students, nil
}

func (r *Repo) Close() {}

func (r *Repo) putToken(kind models.TokenKind, token models.Token) {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.now()
	}
	r.tokens[kind][token.TokenHash] = token
}

func (r *Repo) deleteTokensOf(kind models.TokenKind, accountID int64) {
	for hash, t := range r.tokens[kind] {
		if t.AccountID == accountID {
			delete(r.tokens[kind], hash)
		}
	}
}
