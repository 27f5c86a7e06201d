package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/coffeeshop/pkg/jwks"
	"go.uber.org/zap"
)

// contextKeyClaims は検証済みクレームをGinコンテキストに格納するキー。
const contextKeyClaims = "auth_claims"

// GateConfig はGateの検証設定。すべて埋め込み側が起動時に与える必要があり、既定値はない。
type GateConfig struct {
	// Issuer は期待するissuer（例: "https://dev-xxxx.eu.auth0.com/"）。
	Issuer string
	// Audience は期待するaudience。
	Audience string
	// Algorithms は受け入れる署名アルゴリズムの一覧（例: ["RS256"]）。
	Algorithms []string
	// Leeway は有効期限等の時刻比較で許容する時計のずれ。
	Leeway time.Duration
}

// Gate は保護されたエンドポイントの前段でBearerトークンを検証する認可ゲート。
// リクエスト間で状態を共有せず、同じトークンで何度呼び出しても結果は変わらない。
type Gate struct {
	// keys は検証に使う鍵セットの解決元。
	keys jwks.Resolver
	// verifier は署名と標準クレームの検証器。
	verifier *verifier
	// logger は失敗分類を出力するロガー。
	logger *zap.Logger
}

// NewGate は新しいGateを生成する。loggerがnilの場合はログを出力しない。
func NewGate(cfg GateConfig, keys jwks.Resolver, logger *zap.Logger) (*Gate, error) {
	if keys == nil {
		return nil, errors.New("鍵セットの解決元が指定されていない")
	}
	v, err := newVerifier(cfg.Issuer, cfg.Audience, cfg.Algorithms, cfg.Leeway)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{keys: keys, verifier: v, logger: logger}, nil
}

// Authorize はリクエストヘッダーを検証し、必要な権限を持つ場合にクレームを返す。
//
// 抽出、鍵セット解決、署名とクレームの検証、権限確認の順に行い、
// 最初に失敗した段階の*AuthErrorを返す。自動の再試行は行わない。
func (g *Gate) Authorize(ctx context.Context, header http.Header, permission string) (*Claims, error) {
	raw, err := ExtractBearer(header)
	if err != nil {
		return nil, err
	}

	set, err := g.keys.KeySet(ctx)
	if err != nil {
		return nil, errKeySetUnavailable(err)
	}

	kid, err := g.verifier.keyID(raw)
	if err != nil {
		return nil, err
	}
	desc, err := resolveKey(ctx, g.keys, set, kid)
	if err != nil {
		return nil, err
	}
	claims, err := g.verifier.verify(raw, desc)
	if err != nil {
		return nil, err
	}

	if err := CheckPermission(permission, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Require は指定した権限を要求するGinミドルウェアを返す。
// 検証に成功した場合はクレームをコンテキストに格納して後続に進む。
// 失敗した場合は分類をログに出力し、分類によらず同一の401応答を返す。
func (g *Gate) Require(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := g.Authorize(c.Request.Context(), c.Request.Header, permission)
		if err != nil {
			g.logFailure(c, permission, err)
			AbortUnauthorized(c)
			return
		}

		g.logger.Debug("認可に成功",
			zap.String("subject", claims.Subject),
			zap.String("permission", permission),
			zap.String("request_id", GetRequestID(c)),
		)
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

// logFailure は認可失敗の分類をログに出力する。
func (g *Gate) logFailure(c *gin.Context, permission string, err error) {
	fields := []zap.Field{
		zap.String("permission", permission),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", GetRequestID(c)),
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		fields = append(fields,
			zap.Stringer("kind", authErr.Kind),
			zap.String("code", authErr.Code),
			zap.String("description", authErr.Description),
		)
		if authErr.Err != nil {
			fields = append(fields, zap.NamedError("cause", authErr.Err))
		}
	} else {
		fields = append(fields, zap.Error(err))
	}
	g.logger.Warn("認可に失敗", fields...)
}

// AbortUnauthorized は401の統一エラー応答を返して処理を中断する。
// 失敗の分類はクライアントに開示しない。
func AbortUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	AbortWithError(c, http.StatusUnauthorized)
}

// GetClaims はGinコンテキストから検証済みクレームを取得する。
// Gate.Requireが事前に適用されている必要がある。
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok && claims != nil
}

// ClaimsHandler は検証済みクレームを第1引数に受け取るハンドラ。
type ClaimsHandler func(claims *Claims, c *gin.Context)

// WithClaims はClaimsHandlerをGinハンドラに変換する。
// コンテキストにクレームがない場合（Gateが適用されていない場合）は401を返し、ハンドラを呼ばない。
func WithClaims(h ClaimsHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			AbortUnauthorized(c)
			return
		}
		h(claims, c)
	}
}
