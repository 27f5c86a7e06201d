package middleware

import (
	"errors"
	"fmt"
)

// Kind は認可失敗の分類。
type Kind int

const (
	// KindMissingHeader はAuthorizationヘッダーが存在しないことを表す。
	KindMissingHeader Kind = iota + 1
	// KindMalformedHeader はAuthorizationヘッダーが "Bearer <token>" 形式でないことを表す。
	KindMalformedHeader
	// KindInvalidHeader はトークンのヘッダーが不正、鍵が見つからない、または解析できないことを表す。
	KindInvalidHeader
	// KindTokenExpired はトークンの有効期限切れを表す。
	KindTokenExpired
	// KindInvalidClaims はaudience、issuer等のクレームが期待と異なることを表す。
	KindInvalidClaims
	// KindInsufficientScope は必要な権限スコープを持たないことを表す。
	KindInsufficientScope
	// KindKeySetUnavailable は検証用の鍵セットを取得できないことを表す。
	KindKeySetUnavailable
)

// String は分類名を返す。
func (k Kind) String() string {
	switch k {
	case KindMissingHeader:
		return "MissingHeader"
	case KindMalformedHeader:
		return "MalformedHeader"
	case KindInvalidHeader:
		return "InvalidHeader"
	case KindTokenExpired:
		return "TokenExpired"
	case KindInvalidClaims:
		return "InvalidClaims"
	case KindInsufficientScope:
		return "InsufficientScope"
	case KindKeySetUnavailable:
		return "KeySetUnavailable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ErrUnauthorized はすべての認可失敗が一致する上位の分類。
// errors.Is(err, ErrUnauthorized) で認可失敗かどうかを判定できる。
var ErrUnauthorized = errors.New("unauthorized")

// 分類ごとの比較用エラー。errors.Is(err, ErrTokenExpired) のように使う。
var (
	ErrMissingHeader     = &AuthError{Kind: KindMissingHeader}
	ErrMalformedHeader   = &AuthError{Kind: KindMalformedHeader}
	ErrInvalidHeader     = &AuthError{Kind: KindInvalidHeader}
	ErrTokenExpired      = &AuthError{Kind: KindTokenExpired}
	ErrInvalidClaims     = &AuthError{Kind: KindInvalidClaims}
	ErrInsufficientScope = &AuthError{Kind: KindInsufficientScope}
	ErrKeySetUnavailable = &AuthError{Kind: KindKeySetUnavailable}
)

// AuthError は分類済みの認可失敗。
type AuthError struct {
	// Kind は失敗の分類。
	Kind Kind
	// Code は機械可読なエラーコード（例: "token_expired"）。
	Code string
	// Description は人間向けの説明。
	Description string
	// Err は原因となったエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap は原因となったエラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is は同じ分類のAuthError、またはErrUnauthorizedと一致する。
func (e *AuthError) Is(target error) bool {
	if target == ErrUnauthorized {
		return true
	}
	var t *AuthError
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func newAuthError(kind Kind, code, description string, cause error) *AuthError {
	return &AuthError{Kind: kind, Code: code, Description: description, Err: cause}
}

func errMissingHeader() *AuthError {
	return newAuthError(KindMissingHeader, "authorization_header_missing", "Authorization header is expected.", nil)
}

func errMalformedHeader(description string) *AuthError {
	return newAuthError(KindMalformedHeader, "invalid_header", description, nil)
}

func errInvalidHeader(description string, cause error) *AuthError {
	return newAuthError(KindInvalidHeader, "invalid_header", description, cause)
}

func errTokenExpired(cause error) *AuthError {
	return newAuthError(KindTokenExpired, "token_expired", "Token expired.", cause)
}

func errInvalidClaims(description string, cause error) *AuthError {
	return newAuthError(KindInvalidClaims, "invalid_claims", description, cause)
}

func errInsufficientScope(permission string) *AuthError {
	return newAuthError(KindInsufficientScope, "insufficient_scope", "Permission not found.",
		fmt.Errorf("required permission %q", permission))
}

func errKeySetUnavailable(cause error) *AuthError {
	return newAuthError(KindKeySetUnavailable, "key_set_unavailable", "Unable to fetch the key set.", cause)
}
