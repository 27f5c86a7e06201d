package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/coffeeshop/pkg/jwks"
)

// rsaAlgorithms は受け入れ可能な署名アルゴリズム（RSA PKCS#1 v1.5）。
var rsaAlgorithms = map[string]struct{}{
	jwt.SigningMethodRS256.Alg(): {},
	jwt.SigningMethodRS384.Alg(): {},
	jwt.SigningMethodRS512.Alg(): {},
}

// verifier はBearerトークンの署名と標準クレームを検証する。
type verifier struct {
	// parser は許可アルゴリズム、issuer、audience、有効期限を検証するパーサー。
	parser *jwt.Parser
}

// newVerifier は設定から検証器を生成する。
func newVerifier(issuer, audience string, algorithms []string, leeway time.Duration) (*verifier, error) {
	if issuer == "" {
		return nil, errors.New("issuerが指定されていない")
	}
	if audience == "" {
		return nil, errors.New("audienceが指定されていない")
	}
	if len(algorithms) == 0 {
		return nil, errors.New("署名アルゴリズムが指定されていない")
	}
	for _, alg := range algorithms {
		if _, ok := rsaAlgorithms[alg]; !ok {
			return nil, fmt.Errorf("対応していない署名アルゴリズム: %q", alg)
		}
	}
	return &verifier{
		parser: jwt.NewParser(
			jwt.WithValidMethods(algorithms),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}, nil
}

// keyID は未検証のトークンヘッダーからkidを取り出す。
func (v *verifier) keyID(raw string) (string, error) {
	token, _, err := v.parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", errInvalidHeader("Unable to parse authentication token.", err)
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return "", errInvalidHeader("Authorization malformed.", nil)
	}
	return kid, nil
}

// resolveKey はkidに一致する鍵記述子を鍵セットから探す。
// 見つからずresolverが再取得に対応している場合は、一度だけ取り直して探す。
// resolverが再取得を省略した場合（キャッシュなし）は取り直さずに失敗とする。
func resolveKey(ctx context.Context, keys jwks.Resolver, set jwks.KeySet, kid string) (jwks.KeyDescriptor, error) {
	if desc, ok := set.Lookup(kid); ok {
		return desc, nil
	}
	if r, ok := keys.(jwks.Refresher); ok {
		refreshed, err := r.Refresh(ctx)
		switch {
		case errors.Is(err, jwks.ErrRefreshSkipped):
		case err != nil:
			return jwks.KeyDescriptor{}, errKeySetUnavailable(err)
		default:
			if desc, ok := refreshed.Lookup(kid); ok {
				return desc, nil
			}
		}
	}
	return jwks.KeyDescriptor{}, errInvalidHeader("Unable to find the appropriate key.", fmt.Errorf("kid %q", kid))
}

// verify は鍵記述子の公開鍵で署名を検証し、issuer、audience、有効期限を確認する。
// アルゴリズムは設定された一覧に含まれるものだけを受け入れる。
func (v *verifier) verify(raw string, desc jwks.KeyDescriptor) (*Claims, error) {
	pub, err := desc.RSAPublicKey()
	if err != nil {
		return nil, errInvalidHeader("Unable to parse authentication token.", err)
	}

	claims := &Claims{}
	_, err = v.parser.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return pub, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errTokenExpired(err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return nil, errInvalidClaims("Incorrect claims. Please, check the audience and issuer.", err)
	default:
		return nil, errInvalidHeader("Unable to parse authentication token.", err)
	}
}
