// Package validation は構造体タグによる入力検証を提供する。
// 検証エラーは model.FieldError のリストを持つ *model.APIError に変換する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// フィールド名はJSON/フォームのキー名で返す
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
	return validate
}

// Struct はvを検証し、違反があれば検証エラーを返す。
func Struct(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("入力検証に失敗: %w", err)
	}
	return model.NewValidationError(FieldErrors(verrs)...)
}

// Var は単一の値をタグで検証する。fieldはエラーに載せるフィールド名。
func Var(field string, value interface{}, tag string) *model.FieldError {
	err := instance().Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &model.FieldError{Field: field, Message: message(verrs[0])}
	}
	return &model.FieldError{Field: field, Message: "valor inválido"}
}

// FieldErrors はvalidatorのエラーをフィールド単位のエラーに変換する。
func FieldErrors(verrs validator.ValidationErrors) []model.FieldError {
	out := make([]model.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, model.FieldError{
			Field:   fieldPath(fe),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath はトップレベルの構造体名を除いたパスを返す（例: data.buyer.email）。
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// message は利用者向けのメッセージ（ポルトガル語）を返す。
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("máximo de %s caracteres", fe.Param())
		}
		return fmt.Sprintf("máximo de %s itens", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("mínimo de %s caracteres", fe.Param())
		}
		return fmt.Sprintf("mínimo de %s itens", fe.Param())
	case "uuid", "uuid4":
		return "ID inválido"
	case "email":
		return "e-mail inválido"
	case "url", "https_url":
		return "URL inválida"
	case "hexcolor":
		return "cor inválida (use #RRGGBB)"
	case "oneof":
		return "deve ser um de: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "valor inválido"
	}
}
