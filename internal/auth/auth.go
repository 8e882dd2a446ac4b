package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"campus_echo/internal/lib/jwt"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/lib/metrics"
	"campus_echo/internal/models"
	"campus_echo/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidProfile      = errors.New("profile does not match role")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateProfile    = errors.New("roll number or employee id already registered")
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrAccountNotFound     = errors.New("account not found")
)

type AccountSaver interface {
	SaveAccount(ctx context.Context, acc models.Account, profile models.Profile, verification models.Token) (int64, error)
	SetEmailVerified(ctx context.Context, accountID int64, tokenHash string) error
	ResetPassword(ctx context.Context, accountID int64, passHash []byte, tokenHash string) error
}

type AccountProvider interface {
	Account(ctx context.Context, email string) (models.Account, error)
	AccountByID(ctx context.Context, id int64) (models.Account, error)
	Profile(ctx context.Context, accountID int64, role models.Role) (models.Profile, error)
}

type TokenStore interface {
	ReplaceToken(ctx context.Context, kind models.TokenKind, token models.Token) error
	Token(ctx context.Context, kind models.TokenKind, tokenHash string) (models.Token, error)
	SaveRefreshToken(ctx context.Context, token models.Token) error
	DeleteRefreshToken(ctx context.Context, accountID int64, tokenHash string) error
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

type AccessTokenIssuer interface {
	NewAccessToken(accountID int64, role models.Role) (string, error)
}

type MailPublisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

type Options struct {
	FrontendURL         string
	VerificationTTL     time.Duration
	ResetTTL            time.Duration
	RefreshTTL          time.Duration
	ForgotPasswordFloor time.Duration
}

type Auth struct {
	log         *slog.Logger
	usrSaver    AccountSaver
	usrProvider AccountProvider
	tokens      TokenStore
	issuer      AccessTokenIssuer
	mail        MailPublisher
	opts        Options

	now  func() time.Time
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

type Registration struct {
	Role            models.Role
	Email           string
	Password        string
	ConfirmPassword string
	Profile         models.Profile
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
}

// New builds the auth service. mail may be nil, in which case notifications
// are logged and skipped.
func New(
	log *slog.Logger,
	usrSaver AccountSaver,
	usrProvider AccountProvider,
	tokens TokenStore,
	issuer AccessTokenIssuer,
	mail MailPublisher,
	opts Options,
) *Auth {
	return &Auth{
		log:         log,
		usrSaver:    usrSaver,
		usrProvider: usrProvider,
		tokens:      tokens,
		issuer:      issuer,
		mail:        mail,
		opts:        opts,
		now:         time.Now,
		cost:        bcrypt.DefaultCost,
	}
}

// * Register создает аккаунт с профилем и отправляет письмо для подтверждения почты
func (a *Auth) Register(ctx context.Context, reg Registration) (int64, error) {
	const op = "auth.Register"

	log := a.log.With(
		slog.String("op", op),
		slog.String("role", string(reg.Role)),
	)

	if reg.Password != reg.ConfirmPassword {
		return 0, ErrPasswordMismatch
	}

	if !reg.Role.Valid() {
		return 0, ErrInvalidRole
	}

	if !reg.Profile.MatchesRole(reg.Role) {
		return 0, ErrInvalidProfile
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), a.cost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rawToken := jwt.NewOpaqueToken()

	acc := models.Account{
		Email:    normalizeEmail(reg.Email),
		PassHash: passHash,
		Role:     reg.Role,
		IsActive: true,
	}
	verification := models.Token{
		TokenHash: jwt.HashToken(rawToken),
		ExpiresAt: a.now().Add(a.opts.VerificationTTL),
	}

	id, err := a.usrSaver.SaveAccount(ctx, acc, reg.Profile, verification)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAccountExists):
			log.Warn("account already exists")
			metrics.AuthEvents.WithLabelValues("register", "duplicate_email").Inc()
			return 0, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		case errors.Is(err, storage.ErrProfileExists):
			log.Warn("profile identifier already registered")
			metrics.AuthEvents.WithLabelValues("register", "duplicate_profile").Inc()
			return 0, fmt.Errorf("%s: %w", op, ErrDuplicateProfile)
		}

		log.Error("failed to save account", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	a.notify(ctx, log, models.Message{
		Email:   acc.Email,
		Name:    reg.Profile.FullName,
		Link:    a.link("/verify-email", rawToken),
		Purpose: models.PurposeVerification,
	})

	metrics.AuthEvents.WithLabelValues("register", "ok").Inc()
	log.Info("account registered", slog.Int64("account_id", id))

	return id, nil
}

// * VerifyEmail подтверждает почту по токену из письма
func (a *Auth) VerifyEmail(ctx context.Context, rawToken string) error {
	const op = "auth.VerifyEmail"

	log := a.log.With(slog.String("op", op))

	token, err := a.lookupToken(ctx, models.TokenEmailVerification, rawToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) {
			log.Info("verification rejected", sl.Err(err))
			metrics.AuthEvents.WithLabelValues("verify_email", outcome(err)).Inc()
			return err
		}
		log.Error("failed to load verification token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.SetEmailVerified(ctx, token.AccountID, token.TokenHash); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return ErrInvalidToken
		}
		log.Error("failed to mark email verified", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.AuthEvents.WithLabelValues("verify_email", "ok").Inc()
	log.Info("email verified", slog.Int64("account_id", token.AccountID))

	return nil
}

// * ResendVerification выдает новый токен подтверждения, если аккаунт еще не подтвержден.
// Результат для вызывающего всегда одинаковый
func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	const op = "auth.ResendVerification"

	log := a.log.With(slog.String("op", op))

	acc, err := a.usrProvider.Account(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil
		}
		log.Error("failed to get account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if acc.IsVerified {
		return nil
	}

	rawToken := jwt.NewOpaqueToken()

	err = a.tokens.ReplaceToken(ctx, models.TokenEmailVerification, models.Token{
		AccountID: acc.ID,
		TokenHash: jwt.HashToken(rawToken),
		ExpiresAt: a.now().Add(a.opts.VerificationTTL),
	})
	if err != nil {
		log.Error("failed to replace verification token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.notify(ctx, log, models.Message{
		Email:   acc.Email,
		Name:    a.displayName(ctx, acc),
		Link:    a.link("/verify-email", rawToken),
		Purpose: models.PurposeVerification,
	})

	metrics.AuthEvents.WithLabelValues("resend_verification", "ok").Inc()

	return nil
}

// * Login проверяет учетные данные и возвращает access и refresh токены
func (a *Auth) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	acc, err := a.usrProvider.Account(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			_ = bcrypt.CompareHashAndPassword(a.dummy(), []byte(password))
			metrics.AuthEvents.WithLabelValues("login", "invalid_credentials").Inc()
			return LoginResult{}, ErrInvalidCredentials
		}

		log.Error("failed to get account", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(acc.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", slog.Int64("account_id", acc.ID))
		metrics.AuthEvents.WithLabelValues("login", "invalid_credentials").Inc()
		return LoginResult{}, ErrInvalidCredentials
	}

	if !acc.IsVerified {
		metrics.AuthEvents.WithLabelValues("login", "not_verified").Inc()
		return LoginResult{}, ErrEmailNotVerified
	}

	if !acc.IsActive {
		metrics.AuthEvents.WithLabelValues("login", "inactive").Inc()
		return LoginResult{}, ErrAccountInactive
	}

	accessToken, err := a.issuer.NewAccessToken(acc.ID, acc.Role)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := jwt.NewRefreshToken()
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	err = a.tokens.SaveRefreshToken(ctx, models.Token{
		AccountID: acc.ID,
		TokenHash: jwt.HashToken(refreshToken),
		ExpiresAt: a.now().Add(a.opts.RefreshTTL),
	})
	if err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	profile, err := a.usrProvider.Profile(ctx, acc.ID, acc.Role)
	if err != nil {
		log.Error("failed to get profile", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.AuthEvents.WithLabelValues("login", "ok").Inc()
	log.Info("user logged in successfully", slog.Int64("account_id", acc.ID))

	return LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userOf(acc, profile),
	}, nil
}

// * ForgotPassword выдает токен сброса пароля. Ответ и время ответа не зависят от того,
// существует ли аккаунт
func (a *Auth) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"

	log := a.log.With(slog.String("op", op))

	started := time.Now()
	defer a.padTo(ctx, started, a.opts.ForgotPasswordFloor)

	acc, err := a.usrProvider.Account(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			metrics.AuthEvents.WithLabelValues("forgot_password", "unknown_email").Inc()
			return nil
		}
		log.Error("failed to get account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	rawToken := jwt.NewOpaqueToken()

	err = a.tokens.ReplaceToken(ctx, models.TokenPasswordReset, models.Token{
		AccountID: acc.ID,
		TokenHash: jwt.HashToken(rawToken),
		ExpiresAt: a.now().Add(a.opts.ResetTTL),
	})
	if err != nil {
		// the caller must not learn that the account exists
		log.Error("failed to save reset token", sl.Err(err))
		return nil
	}

	a.notify(ctx, log, models.Message{
		Email:   acc.Email,
		Name:    a.displayName(ctx, acc),
		Link:    a.link("/reset-password", rawToken),
		Purpose: models.PurposePasswordReset,
	})

	metrics.AuthEvents.WithLabelValues("forgot_password", "ok").Inc()

	return nil
}

// * ResetPassword меняет пароль по токену сброса и отзывает все refresh токены аккаунта
func (a *Auth) ResetPassword(ctx context.Context, rawToken, newPassword, confirmPassword string) error {
	const op = "auth.ResetPassword"

	log := a.log.With(slog.String("op", op))

	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}

	token, err := a.lookupToken(ctx, models.TokenPasswordReset, rawToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) {
			log.Info("reset rejected", sl.Err(err))
			metrics.AuthEvents.WithLabelValues("reset_password", outcome(err)).Inc()
			return err
		}
		log.Error("failed to load reset token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.cost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.ResetPassword(ctx, token.AccountID, passHash, token.TokenHash); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return ErrInvalidToken
		}
		log.Error("failed to reset password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.AuthEvents.WithLabelValues("reset_password", "ok").Inc()
	log.Info("password reset", slog.Int64("account_id", token.AccountID))

	return nil
}

// * RefreshAccessToken выдает новый access token по refresh токену. Refresh токен не ротируется
func (a *Auth) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	const op = "auth.RefreshAccessToken"

	log := a.log.With(slog.String("op", op))

	if refreshToken == "" {
		return "", ErrInvalidRefreshToken
	}

	rt, err := a.tokens.Token(ctx, models.TokenRefresh, jwt.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			metrics.AuthEvents.WithLabelValues("refresh", "invalid").Inc()
			return "", ErrInvalidRefreshToken
		}
		log.Error("failed to load refresh token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if rt.IsExpired(a.now()) {
		log.Info("refresh token expired", slog.Int64("account_id", rt.AccountID))
		metrics.AuthEvents.WithLabelValues("refresh", "expired").Inc()
		return "", ErrInvalidRefreshToken
	}

	acc, err := a.usrProvider.AccountByID(ctx, rt.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return "", ErrInvalidRefreshToken
		}
		log.Error("failed to load account", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !acc.CanAuthenticate() {
		metrics.AuthEvents.WithLabelValues("refresh", "inactive").Inc()
		return "", ErrInvalidRefreshToken
	}

	accessToken, err := a.issuer.NewAccessToken(acc.ID, acc.Role)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	metrics.AuthEvents.WithLabelValues("refresh", "ok").Inc()

	return accessToken, nil
}

// * Logout удаляет refresh токен аккаунта. Повторный вызов ничего не делает
func (a *Auth) Logout(ctx context.Context, accountID int64, refreshToken string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	if refreshToken == "" {
		return nil
	}

	if err := a.tokens.DeleteRefreshToken(ctx, accountID, jwt.HashToken(refreshToken)); err != nil {
		log.Error("failed to delete refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.AuthEvents.WithLabelValues("logout", "ok").Inc()
	log.Info("logout successful", slog.Int64("account_id", accountID))

	return nil
}

func (a *Auth) GetCurrentUser(ctx context.Context, accountID int64) (models.User, error) {
	const op = "auth.GetCurrentUser"

	acc, err := a.usrProvider.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return models.User{}, ErrAccountNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	profile, err := a.usrProvider.Profile(ctx, acc.ID, acc.Role)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return userOf(acc, profile), nil
}

// * CleanupExpired удаляет истекшие токены подтверждения, сброса и обновления
func (a *Auth) CleanupExpired(ctx context.Context) (int64, error) {
	const op = "auth.CleanupExpired"

	deleted, err := a.tokens.DeleteExpiredTokens(ctx, a.now())
	if err != nil {
		return deleted, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("cleanup completed", slog.String("op", op), slog.Int64("deleted", deleted))

	return deleted, nil
}

func (a *Auth) lookupToken(ctx context.Context, kind models.TokenKind, rawToken string) (models.Token, error) {
	if rawToken == "" {
		return models.Token{}, ErrInvalidToken
	}

	token, err := a.tokens.Token(ctx, kind, jwt.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return models.Token{}, ErrInvalidToken
		}
		return models.Token{}, err
	}

	if token.IsExpired(a.now()) {
		return models.Token{}, ErrExpiredToken
	}

	return token, nil
}

// notify is best-effort: a queue failure is logged and never fails the caller.
func (a *Auth) notify(ctx context.Context, log *slog.Logger, msg models.Message) {
	if a.mail == nil {
		log.Warn("mail delivery is not configured, message dropped", slog.String("purpose", msg.Purpose))
		return
	}

	if err := a.mail.SendMessage(ctx, msg); err != nil {
		metrics.MailPublishFailures.Inc()
		log.Error("failed to queue mail", slog.String("purpose", msg.Purpose), sl.Err(err))
	}
}

func (a *Auth) displayName(ctx context.Context, acc models.Account) string {
	p, err := a.usrProvider.Profile(ctx, acc.ID, acc.Role)
	if err != nil || p.FullName == "" {
		return acc.Email
	}

	return p.FullName
}

func (a *Auth) link(path, rawToken string) string {
	return strings.TrimRight(a.opts.FrontendURL, "/") + path + "?token=" + url.QueryEscape(rawToken)
}

// dummy returns a hash of random bytes used to equalize login timing for unknown emails.
func (a *Auth) dummy() []byte {
	a.dummyOnce.Do(func() {
		secret := make([]byte, 16)
		_, _ = rand.Read(secret)

		hash, err := bcrypt.GenerateFromPassword(secret, a.cost)
		if err != nil {
			a.log.Error("failed to generate dummy hash", sl.Err(err))
			return
		}
		a.dummyHash = hash
	})

	return a.dummyHash
}

func (a *Auth) padTo(ctx context.Context, started time.Time, floor time.Duration) {
	wait := floor - time.Since(started)
	if wait <= 0 {
		return
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func userOf(acc models.Account, profile models.Profile) models.User {
	return models.User{
		ID:         acc.ID,
		Email:      acc.Email,
		Role:       acc.Role,
		IsVerified: acc.IsVerified,
		Profile:    profile,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrInvalidToken):
		return "invalid"
	}

	return "error"
}
