package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/recipebox/internal/model"
)

// AdminInput はスタッフによるユーザー更新の入力。nilの項目は変更しない。
type AdminInput struct {
	ProfileInput
	IsActive    *bool
	IsStaff     *bool
	IsSuperuser *bool
	LastLogin   *time.Time

	// ClearLastLogin がtrueの場合は最終ログイン日時を未設定に戻す。
	ClearLastLogin bool
}

// ListUsers は全ユーザーをID昇順で返す。
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// UpdateUser はスタッフが任意のユーザーのプロフィール・権限フラグ・最終ログイン日時を更新する。
func (s *Service) UpdateUser(ctx context.Context, userID int64, in AdminInput) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.applyProfile(user, in.ProfileInput); err != nil {
		return nil, err
	}

	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.IsStaff != nil {
		user.IsStaff = *in.IsStaff
	}
	if in.IsSuperuser != nil {
		user.IsSuperuser = *in.IsSuperuser
	}
	switch {
	case in.ClearLastLogin:
		user.LastLogin = nil
	case in.LastLogin != nil:
		at := in.LastLogin.UTC()
		user.LastLogin = &at
	}

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("ユーザーを管理者が更新しました",
		slog.Int64("user_id", userID),
		slog.Bool("is_active", user.IsActive),
		slog.Bool("is_staff", user.IsStaff),
		slog.Bool("is_superuser", user.IsSuperuser),
	)
	return user, nil
}
