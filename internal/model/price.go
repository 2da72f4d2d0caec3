package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// PriceMaxDigits は価格の最大桁数（整数部+小数部）。
	PriceMaxDigits = 5
	// PriceDecimalPlaces は価格の小数部の桁数。
	PriceDecimalPlaces = 2
)

// 価格の解析エラー
var (
	ErrPriceInvalid       = errors.New("A valid number is required.")
	ErrPriceDecimalPlaces = fmt.Errorf("Ensure that there are no more than %d decimal places.", PriceDecimalPlaces)
	ErrPriceMaxDigits     = fmt.Errorf("Ensure that there are no more than %d digits in total.", PriceMaxDigits)
)

// Price は小数点以下2桁の固定小数点価格をセント単位で表す。
// JSONでは "12.50" 形式の文字列として出力し、入力は数値・文字列の両方を受け付ける。
type Price int64

// ParsePrice は10進数表記の文字列を Price に変換する。
// 小数部が2桁を超える場合、または全体が5桁を超える場合はエラーを返す。
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrPriceInvalid
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, ErrPriceInvalid
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return 0, ErrPriceInvalid
	}

	// 末尾の0は桁数に数えない（"5.500" は "5.50" と同値）
	fracPart = strings.TrimRight(fracPart, "0")
	if len(fracPart) > PriceDecimalPlaces {
		return 0, ErrPriceDecimalPlaces
	}
	intPart = strings.TrimLeft(intPart, "0")
	if len(intPart)+PriceDecimalPlaces > PriceMaxDigits {
		return 0, ErrPriceMaxDigits
	}

	for len(fracPart) < PriceDecimalPlaces {
		fracPart += "0"
	}

	cents, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return 0, ErrPriceInvalid
	}
	if negative {
		cents = -cents
	}
	return Price(cents), nil
}

// MustParsePrice はParsePriceの結果を返し、失敗時はpanicする。
// テストや定数定義用。
func MustParsePrice(s string) Price {
	p, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String は "12.50" 形式の文字列を返す。
func (p Price) String() string {
	cents := int64(p)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON は価格を文字列としてエンコードする。
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON は数値または文字列の価格をデコードする。
func (p *Price) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return ErrPriceInvalid
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrPriceInvalid
		}
		raw = s
	}
	parsed, err := ParsePrice(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value はdatabase/sqlのNUMERIC列に書き込む値を返す。
func (p Price) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan はNUMERIC列の値を読み込む。
func (p *Price) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		parsed, err := ParsePrice(string(v))
		if err != nil {
			return fmt.Errorf("failed to scan price %q: %w", v, err)
		}
		*p = parsed
	case string:
		parsed, err := ParsePrice(v)
		if err != nil {
			return fmt.Errorf("failed to scan price %q: %w", v, err)
		}
		*p = parsed
	case int64:
		*p = Price(v * 100)
	case float64:
		parsed, err := ParsePrice(strconv.FormatFloat(v, 'f', PriceDecimalPlaces, 64))
		if err != nil {
			return fmt.Errorf("failed to scan price %v: %w", v, err)
		}
		*p = parsed
	default:
		return fmt.Errorf("unsupported price type %T", src)
	}
	return nil
}
