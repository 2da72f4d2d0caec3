// Package user は認証済みユーザー自身のプロフィール管理を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/recipebox/internal/auth"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/repository"
)

// PasswordHasher はパスワードのハッシュ化インターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// ProfileInput はプロフィール更新の入力。nilの項目は変更しない。
type ProfileInput struct {
	Email    *string
	Name     *string
	Password *string
}

// Service はプロフィール管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, hasher PasswordHasher) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
	}
}

// GetProfile はユーザーのプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile はプロフィールを更新する。
// 入力の必須チェックは呼び出し側で済んでいる前提で、指定された項目のみを反映する。
// パスワードは再ハッシュ化して保存する。
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.applyProfile(user, in); err != nil {
		return nil, err
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("プロフィールを更新しました",
		slog.Int64("user_id", userID),
		slog.Bool("password_changed", in.Password != nil),
	)
	return user, nil
}

func (s *Service) applyProfile(user *model.User, in ProfileInput) error {
	if in.Email != nil {
		user.Email = auth.NormalizeEmail(*in.Email)
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}
	return nil
}

func (s *Service) save(ctx context.Context, user *model.User) error {
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.NewValidationError("email", "user with this email already exists.")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return nil
}
