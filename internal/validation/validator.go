// Package validation はgo-playground/validatorによるリクエスト検証を提供する。
// 検証エラーはフィールド単位のメッセージを持つ model.APIError に変換される。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/recipebox/internal/model"
)

// Validator はvalidator.Validateをラップし、エラーをAPIErrorに変換する。
// 構造体情報をキャッシュするため、アプリケーション全体で1つを共有する。
type Validator struct {
	v *validator.Validate
}

// New はJSONタグ名でエラーを報告するValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーのフィールド名にはJSONタグ名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// notblank は空白のみの文字列を拒否する
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return true
		}
		return strings.TrimSpace(field.String()) != ""
	})

	// nonul はPostgresのtext型に保存できないNUL文字を拒否する
	_ = v.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return true
		}
		return !strings.ContainsRune(field.String(), 0)
	})

	return &Validator{v: v}
}

// Validate は構造体を検証する。検証エラーは *model.APIError として返す。
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return formatError(err)
	}
	return nil
}

func formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	apiErr := model.NewValidationError("", "")
	for _, e := range validationErrs {
		apiErr.WithField(e.Field(), friendlyMessage(e))
	}
	return apiErr
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return model.MsgFieldRequired
	case "notblank":
		return model.MsgFieldBlank
	case "nonul":
		return model.MsgNullCharacters
	case "email":
		return "Enter a valid email address."
	case "url":
		return "Enter a valid URL."
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters.", e.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", e.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", e.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", e.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", e.Param())
	case "gt":
		return fmt.Sprintf("Ensure this value is greater than %s.", e.Param())
	default:
		return "Invalid value."
	}
}
