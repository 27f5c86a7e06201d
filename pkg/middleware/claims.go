package middleware

import (
	"encoding/json"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims は検証済みトークンから復号したクレーム（ペイロード）。
// 署名とissuer、audience、有効期限の検証がすべて成功した場合にのみ生成される。
type Claims struct {
	jwt.RegisteredClaims
	// Permissions はトークンが持つ権限スコープの一覧。
	// nilの場合はpermissionsクレーム自体が存在しないことを表す。
	Permissions []string `json:"permissions,omitempty"`
	// Raw はペイロードに含まれるすべてのクレームをそのまま保持する。
	Raw map[string]any `json:"-"`
}

// UnmarshalJSON は型付きのクレームに加え、元のペイロードをRawに保持する。
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Claims(p)
	c.Raw = raw
	return nil
}

// HasPermission は権限スコープを完全一致で持っているかを返す。
func (c *Claims) HasPermission(permission string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Permissions, permission)
}

// CheckPermission は検証済みクレームが必要な権限スコープを持つことを確認する。
// permissionsクレームが存在しない場合はInvalidClaims、
// 一致する文字列がない場合はInsufficientScopeとなる。
// ワイルドカードや階層による一致は行わない。
func CheckPermission(permission string, claims *Claims) error {
	if claims == nil || claims.Permissions == nil {
		return errInvalidClaims("Permissions not included in JWT.", nil)
	}
	if !claims.HasPermission(permission) {
		return errInsufficientScope(permission)
	}
	return nil
}
