package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/hitoshi/recipebox/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher はbcryptによるパスワードハッシュ化と照合を行う。
type PasswordHasher struct {
	cost      int
	dummyHash []byte
}

// NewPasswordHasher は指定コストのPasswordHasherを生成する。
// コストが範囲外の場合はbcrypt.DefaultCostを使う。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// 存在しないユーザーの照合時間を揃えるためのハッシュ
	dummy, _ := bcrypt.GenerateFromPassword([]byte("recipebox-dummy-password"), cost)
	return &PasswordHasher{cost: cost, dummyHash: dummy}
}

// Hash はパスワードをハッシュ化する。
// 空のパスワードは認証に使用できないハッシュになる。
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return unusablePassword()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", model.NewValidationError("password", "Ensure this field has no more than 72 bytes.")
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare はハッシュとパスワードが一致するかを返す。
// 使用不可のハッシュに対しては常にfalseを返す。
func (h *PasswordHasher) Compare(hash, password string) bool {
	u := model.User{PasswordHash: hash}
	if !u.HasUsablePassword() {
		h.DummyCompare(password)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyCompare は結果を捨てる照合を1回行う。
// ユーザーが存在しない場合も存在する場合と同程度の時間をかけるために使う。
func (h *PasswordHasher) DummyCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

// unusablePassword は使用不可マーカー付きのランダムな値を返す。
func unusablePassword() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate unusable password: %w", err)
	}
	return model.UnusablePasswordPrefix + hex.EncodeToString(b), nil
}
