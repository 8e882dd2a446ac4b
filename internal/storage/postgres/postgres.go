package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"campus_echo/internal/config"
	"campus_echo/internal/models"
	"campus_echo/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	return Connect(ctx, dsn(cfg))
}

// * Connect создает пул соединений по строке подключения и проверяет его
func Connect(ctx context.Context, connString string) (*PostgresRepo, error) {
	const op = "storage.postgres.Connect"

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveAccount(
	ctx context.Context,
	acc models.Account,
	profile models.Profile,
	verification models.Token,
) (int64, error) {
	const op = "storage.postgres.SaveAccount"

	var id int64

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO accounts (email, password_hash, role, is_verified, is_active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id;
		`, acc.Email, acc.PassHash, string(acc.Role), acc.IsVerified, acc.IsActive).Scan(&id)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAccountExists
			}
			return err
		}

		switch acc.Role {
		case models.RoleStudent:
			_, err = tx.Exec(ctx, `
				INSERT INTO student_profiles (account_id, full_name, roll_number, department, year, phone)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, id, profile.FullName, profile.RollNumber, profile.Department, profile.Year, profile.Phone)
		case models.RoleFaculty:
			_, err = tx.Exec(ctx, `
				INSERT INTO faculty_profiles (account_id, full_name, employee_id, department, designation, phone)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, id, profile.FullName, profile.EmployeeID, profile.Department, profile.Designation, profile.Phone)
		default:
			err = fmt.Errorf("unknown role %q", acc.Role)
		}
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrProfileExists
			}
			return err
		}

		verification.AccountID = id

		return insertToken(ctx, tx, models.TokenEmailVerification, verification)
	})
	if err != nil {
		if errors.Is(err, storage.ErrAccountExists) || errors.Is(err, storage.ErrProfileExists) {
			return 0, err
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) Account(ctx context.Context, email string) (models.Account, error) {
	const query = `
		SELECT id, email, password_hash, role, is_verified, is_active, created_at
		FROM accounts
		WHERE lower(email) = lower($1);
	`

	return scanAccount(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) AccountByID(ctx context.Context, id int64) (models.Account, error) {
	const query = `
		SELECT id, email, password_hash, role, is_verified, is_active, created_at
		FROM accounts
		WHERE id = $1;
	`

	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) Profile(ctx context.Context, accountID int64, role models.Role) (models.Profile, error) {
	const op = "storage.postgres.Profile"

	var (
		p   models.Profile
		err error
	)

	switch role {
	case models.RoleStudent:
		err = r.pool.QueryRow(ctx, `
			SELECT full_name, roll_number, department, year, phone
			FROM student_profiles
			WHERE account_id = $1;
		`, accountID).Scan(&p.FullName, &p.RollNumber, &p.Department, &p.Year, &p.Phone)
	case models.RoleFaculty:
		err = r.pool.QueryRow(ctx, `
			SELECT full_name, employee_id, department, designation, phone
			FROM faculty_profiles
			WHERE account_id = $1;
		`, accountID).Scan(&p.FullName, &p.EmployeeID, &p.Department, &p.Designation, &p.Phone)
	default:
		return models.Profile{}, storage.ErrProfileNotFound
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, storage.ErrProfileNotFound
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (r *PostgresRepo) SetEmailVerified(ctx context.Context, accountID int64, tokenHash string) error {
	const op = "storage.postgres.SetEmailVerified"

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE accounts SET is_verified = TRUE WHERE id = $1`, accountID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrAccountNotFound
		}

		_, err = tx.Exec(ctx, `DELETE FROM email_verification_tokens WHERE token_hash = $1`, tokenHash)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) ResetPassword(ctx context.Context, accountID int64, passHash []byte, tokenHash string) error {
	const op = "storage.postgres.ResetPassword"

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, passHash, accountID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrAccountNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1`, accountID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE token_hash = $1`, tokenHash)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SetActive(ctx context.Context, accountID int64, active bool) error {
	const op = "storage.postgres.SetActive"

	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active = $1 WHERE id = $2`, active, accountID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAccountNotFound
	}

	return nil
}

// * ReplaceToken удаляет прежние токены аккаунта этого типа и сохраняет новый
func (r *PostgresRepo) ReplaceToken(ctx context.Context, kind models.TokenKind, token models.Token) error {
	const op = "storage.postgres.ReplaceToken"

	table, err := tokenTable(kind)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE account_id = $1`, token.AccountID); err != nil {
			return err
		}

		return insertToken(ctx, tx, kind, token)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Token(ctx context.Context, kind models.TokenKind, tokenHash string) (models.Token, error) {
	const op = "storage.postgres.Token"

	table, err := tokenTable(kind)
	if err != nil {
		return models.Token{}, fmt.Errorf("%s: %w", op, err)
	}

	var t models.Token

	err = r.pool.QueryRow(ctx, `
		SELECT account_id, token_hash, expires_at, created_at
		FROM `+table+`
		WHERE token_hash = $1;
	`, tokenHash).Scan(&t.AccountID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Token{}, storage.ErrTokenNotFound
		}
		return models.Token{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (r *PostgresRepo) SaveRefreshToken(ctx context.Context, token models.Token) error {
	const op = "storage.postgres.SaveRefreshToken"

	if err := insertToken(ctx, r.pool, models.TokenRefresh, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) DeleteRefreshToken(ctx context.Context, accountID int64, tokenHash string) error {
	const op = "storage.postgres.DeleteRefreshToken"

	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1 AND token_hash = $2`, accountID, tokenHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * DeleteExpiredTokens удаляет истекшие токены всех видов
func (r *PostgresRepo) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredTokens"

	var deleted int64

	for _, kind := range []models.TokenKind{models.TokenEmailVerification, models.TokenPasswordReset, models.TokenRefresh} {
		table, err := tokenTable(kind)
		if err != nil {
			return deleted, fmt.Errorf("%s: %w", op, err)
		}

		tag, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE expires_at < $1`, before)
		if err != nil {
			return deleted, fmt.Errorf("%s: %w", op, err)
		}

		deleted += tag.RowsAffected()
	}

	return deleted, nil
}

func (r *PostgresRepo) SaveVoiceQuery(ctx context.Context, q models.VoiceQuery) (int64, error) {
	const op = "storage.postgres.SaveVoiceQuery"

	var id int64

	err := r.pool.QueryRow(ctx, `
		INSERT INTO voice_queries (account_id, query, query_type, response, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`, q.AccountID, q.Query, q.QueryType, q.Response, q.ProcessedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) UpdateVoiceQuery(ctx context.Context, id int64, response, queryType string) error {
	const op = "storage.postgres.UpdateVoiceQuery"

	tag, err := r.pool.Exec(ctx, `UPDATE voice_queries SET response = $1, query_type = $2 WHERE id = $3`, response, queryType, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrQueryNotFound
	}

	return nil
}

func (r *PostgresRepo) VoiceQueries(ctx context.Context, accountID int64, limit int) ([]models.VoiceQuery, error) {
	const op = "storage.postgres.VoiceQueries"

	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, query, query_type, response, processed_at
		FROM voice_queries
		WHERE account_id = $1
		ORDER BY processed_at DESC, id DESC
		LIMIT $2;
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	queries := make([]models.VoiceQuery, 0, limit)

	for rows.Next() {
		var q models.VoiceQuery
		if err := rows.Scan(&q.ID, &q.AccountID, &q.Query, &q.QueryType, &q.Response, &q.ProcessedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return queries, nil
}

func (r *PostgresRepo) SaveNotice(ctx context.Context, n models.Notice) (models.Notice, error) {
	const op = "storage.postgres.SaveNotice"

	err := r.pool.QueryRow(ctx, `
		INSERT INTO notices (author_id, title, body, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at;
	`, n.AuthorID, n.Title, n.Body, n.Category).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return models.Notice{}, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (r *PostgresRepo) UpdateNotice(ctx context.Context, n models.Notice) (models.Notice, error) {
	const op = "storage.postgres.UpdateNotice"

	err := r.pool.QueryRow(ctx, `
		UPDATE notices
		SET title = $1, body = $2, category = $3, updated_at = NOW()
		WHERE id = $4 AND author_id = $5
		RETURNING created_at, updated_at;
	`, n.Title, n.Body, n.Category, n.ID, n.AuthorID).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Notice{}, storage.ErrNoticeNotFound
		}
		return models.Notice{}, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (r *PostgresRepo) DeleteNotice(ctx context.Context, id, authorID int64) error {
	const op = "storage.postgres.DeleteNotice"

	tag, err := r.pool.Exec(ctx, `DELETE FROM notices WHERE id = $1 AND author_id = $2`, id, authorID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNoticeNotFound
	}

	return nil
}

func (r *PostgresRepo) Notices(ctx context.Context, limit int) ([]models.Notice, error) {
	const op = "storage.postgres.Notices"

	rows, err := r.pool.Query(ctx, `
		SELECT id, author_id, title, body, category, created_at, updated_at
		FROM notices
		ORDER BY created_at DESC, id DESC
		LIMIT $1;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var notices []models.Notice

	for rows.Next() {
		var n models.Notice
		if err := rows.Scan(&n.ID, &n.AuthorID, &n.Title, &n.Body, &n.Category, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return notices, nil
}

func (r *PostgresRepo) Students(ctx context.Context, limit int) ([]models.StudentSummary, error) {
	const op = "storage.postgres.Students"

	rows, err := r.pool.Query(ctx, `
		SELECT account_id, full_name, roll_number, department, year
		FROM student_profiles
		ORDER BY roll_number
		LIMIT $1;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var students []models.StudentSummary

	for rows.Next() {
		var s models.StudentSummary
		if err := rows.Scan(&s.AccountID, &s.FullName, &s.RollNumber, &s.Department, &s.Year); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return students, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertToken(ctx context.Context, db execer, kind models.TokenKind, token models.Token) error {
	table, err := tokenTable(kind)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, `
		INSERT INTO `+table+` (token_hash, account_id, expires_at)
		VALUES ($1, $2, $3)
	`, token.TokenHash, token.AccountID, token.ExpiresAt)

	return err
}

func tokenTable(kind models.TokenKind) (string, error) {
	switch kind {
	case models.TokenEmailVerification:
		return "email_verification_tokens", nil
	case models.TokenPasswordReset:
		return "password_reset_tokens", nil
	case models.TokenRefresh:
		return "refresh_tokens", nil
	}

	return "", fmt.Errorf("unknown token kind %q", kind)
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var (
		a    models.Account
		role string
	)

	err := row.Scan(&a.ID, &a.Email, &a.PassHash, &role, &a.IsVerified, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrAccountNotFound
		}
		return models.Account{}, err
	}

	a.Role = models.Role(role)

	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// * dsn формирует конфигурацию базы данных.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
