// Package auth はログイン、ログアウト、セッションからの主体解決を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/sponsorlink/internal/metrics"
	"github.com/hitoshi/sponsorlink/internal/model"
	"github.com/hitoshi/sponsorlink/internal/repository"
)

// DefaultSessionMaxAge はセッションの既定の有効期間（30日）。
const DefaultSessionMaxAge = 30 * 24 * time.Hour

// maxTokenAttempts はトークン衝突時にセッション作成を試行する最大回数。
const maxTokenAttempts = 3

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge time.Duration
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Session   *model.Session
	Principal *model.Principal
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = DefaultSessionMaxAge
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		metrics:     collector,
		config:      config,
		now:         time.Now,
	}
}

// Resolve はセッショントークンから認証済みの主体を解決する。
// 未ログイン、期限切れ、無効化されたユーザーはいずれもnil（エラーなし）を返す。
// 期限切れのセッションは検知した時点で削除する。
// エラーを返すのはストレージ障害の場合のみ。
func (s *Service) Resolve(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if session.IsExpired(s.now()) {
		// 一括削除と競合しても削除は冪等
		if err := s.sessionRepo.DeleteByToken(ctx, token); err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		slog.Info("session expired",
			slog.String("user_id", session.UserID),
			slog.String("session_id", session.ID),
		)
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive() {
		return nil, nil
	}

	return model.NewPrincipal(user), nil
}

// Login はメールアドレスとパスワードで認証し、新しいセッションを発行する。
// 認証に失敗した場合、メールアドレスとパスワードのどちらが誤っているかは区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.NewValidationError("email", "メールアドレスとパスワードを入力してください")
	}
	if password == "" {
		return nil, model.NewValidationError("password", "メールアドレスとパスワードを入力してください")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !verifyPassword(user, password) {
		s.metrics.RecordLogin(metrics.LoginFailure)
		slog.Info("login failed", slog.Bool("user_found", user != nil))
		return nil, model.NewAuthenticationFailedError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("user_type", string(user.UserType)),
	)

	return &LoginResult{
		Session:   session,
		Principal: model.NewPrincipal(user),
	}, nil
}

// Logout はセッションを破棄する。存在しないトークンでもエラーにしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// SweepExpiredSessions は期限切れのセッションを一括削除し、削除件数を返す。
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessionRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	s.metrics.RecordSessionsSwept(n)
	return n, nil
}

// SessionMaxAge はセッションの有効期間を返す。Cookieの有効期限に使用する。
func (s *Service) SessionMaxAge() time.Duration {
	return s.config.SessionMaxAge
}

// createSession はセッションを作成し永続化する。
// トークンが既存のものと衝突した場合は新しいトークンで再試行する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	for attempt := 1; ; attempt++ {
		token, err := generateSessionToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session token: %w", err)
		}

		now := s.now()
		session := &model.Session{
			ID:        uuid.New().String(),
			Token:     token,
			UserID:    userID,
			ExpiresAt: now.Add(s.config.SessionMaxAge),
			CreatedAt: now,
		}

		err = s.sessionRepo.Create(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt >= maxTokenAttempts {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}
}

// generateSessionToken は256bitの暗号的に安全なセッショントークンを生成する。
func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// verifyPassword はユーザーが有効でパスワードが一致する場合にtrueを返す。
// ユーザーが存在しない場合もダミーハッシュと比較し、応答時間でユーザーの存在を推測させない。
func verifyPassword(user *model.User, password string) bool {
	if user == nil || user.PasswordHash == "" {
		dummyHashOnce.Do(func() {
			dummyHash, _ = bcrypt.GenerateFromPassword([]byte("sponsorlink-dummy-password"), bcrypt.DefaultCost)
		})
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return false
	}
	return user.IsActive()
}
