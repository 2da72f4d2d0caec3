// Package auth はユーザー登録、パスワード認証、トークン発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/recipebox/internal/metrics"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/repository"
)

// tokenKeyBytes はトークンキーのバイト長。16進で40文字になる。
const tokenKeyBytes = 20

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int
}

// UserFields はユーザー作成時の任意項目。
type UserFields struct {
	Name        string
	IsStaff     bool
	IsSuperuser bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	hasher    *PasswordHasher
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	config ServiceConfig,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		hasher:    NewPasswordHasher(config.BcryptCost),
		metrics:   collector,
		now:       time.Now,
	}
}

// Hasher はサービスが使用するPasswordHasherを返す。
func (s *Service) Hasher() *PasswordHasher {
	return s.hasher
}

// NormalizeEmail はメールアドレスの前後の空白を除き、ドメイン部を小文字にする。
// ローカル部は大文字小文字を区別するためそのまま残す。
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// CreateUser はユーザーを作成する。
// パスワードが空の場合、ユーザーは作成されるが認証には使用できない。
func (s *Service) CreateUser(ctx context.Context, email, password string, fields UserFields) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, model.NewValidationError("email", model.MsgFieldRequired)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         fields.Name,
		IsActive:     true,
		IsStaff:      fields.IsStaff,
		IsSuperuser:  fields.IsSuperuser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewValidationError("email", "user with this email already exists.")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.Int64("user_id", user.ID),
		slog.Bool("is_superuser", user.IsSuperuser),
	)
	return user, nil
}

// CreateSuperuser はスタッフ権限と管理者権限を持つユーザーを作成する。
func (s *Service) CreateSuperuser(ctx context.Context, email, password string) (*model.User, error) {
	return s.CreateUser(ctx, email, password, UserFields{IsStaff: true, IsSuperuser: true})
}

// Authenticate はメールアドレスとパスワードを検証する。
// ユーザー不在、パスワード不一致、非アクティブのいずれの場合も (nil, nil) を返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.hasher.DummyCompare(password)
		return nil, nil
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, nil
	}
	if !user.IsActive {
		return nil, nil
	}

	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLogin = &now

	return user, nil
}

// IssueToken はユーザーのトークンを返す。未発行の場合は新規に発行する。
// 1ユーザーにつきトークンは1件のみ。
func (s *Service) IssueToken(ctx context.Context, user *model.User) (*model.AuthToken, error) {
	key, err := generateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}

	token, err := s.tokenRepo.GetOrCreate(ctx, &model.AuthToken{Key: key, UserID: user.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}

// ObtainToken はメールアドレスとパスワードを検証してトークンを返す。
// 認証に失敗した場合はINVALID_CREDENTIALSを返す。
func (s *Service) ObtainToken(ctx context.Context, email, password string) (*model.AuthToken, error) {
	var verr *model.APIError
	if strings.TrimSpace(email) == "" {
		verr = model.NewValidationError("email", model.MsgFieldRequired)
	}
	if password == "" {
		if verr == nil {
			verr = model.NewValidationError("password", model.MsgFieldRequired)
		} else {
			verr.WithField("password", model.MsgFieldRequired)
		}
	}
	if verr != nil {
		return nil, verr
	}

	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.metrics.RecordAuthFailure(metrics.AuthFailureInvalidCredentials)
		slog.Warn("token request rejected", slog.String("reason", metrics.AuthFailureInvalidCredentials))
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.IssueToken(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("token issued", slog.Int64("user_id", user.ID))
	return token, nil
}

// UserForToken はトークンキーに対応するアクティブなユーザーを返す。
// 該当しない場合は (nil, nil) を返す。
func (s *Service) UserForToken(ctx context.Context, key string) (*model.User, error) {
	if key == "" {
		return nil, nil
	}

	token, err := s.tokenRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	if token == nil {
		s.metrics.RecordAuthFailure(metrics.AuthFailureInvalidToken)
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordAuthFailure(metrics.AuthFailureInvalidToken)
		return nil, nil
	}
	if !user.IsActive {
		s.metrics.RecordAuthFailure(metrics.AuthFailureInactiveUser)
		return nil, nil
	}

	return user, nil
}

// generateTokenKey は暗号的に安全なトークンキーを生成する。
func generateTokenKey() (string, error) {
	b := make([]byte, tokenKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
