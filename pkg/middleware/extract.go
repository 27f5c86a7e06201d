package middleware

import (
	"net/http"
	"strings"
)

// headerAuthorization は認証情報を運ぶHTTPヘッダー名。
const headerAuthorization = "Authorization"

// schemeBearer はBearer認証のスキーム名（小文字）。
const schemeBearer = "bearer"

// ExtractBearer はAuthorizationヘッダーからBearerトークンを取り出す。
//
// ヘッダーがなければMissingHeader、空白で区切って2要素にならない場合や
// スキームが大文字小文字を区別せず "bearer" でない場合はMalformedHeaderとなる。
// トークンはデコードせずそのまま返す。
func ExtractBearer(header http.Header) (string, error) {
	values := header.Values(headerAuthorization)
	if len(values) == 0 {
		return "", errMissingHeader()
	}

	parts := strings.Split(values[0], " ")
	if len(parts) != 2 {
		return "", errMalformedHeader("Authorization header must be bearer token.")
	}
	if strings.ToLower(parts[0]) != schemeBearer {
		return "", errMalformedHeader("Authorization header must start with \"Bearer\".")
	}
	if parts[1] == "" {
		return "", errMalformedHeader("Token not found.")
	}
	return parts[1], nil
}
