package drinks

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/coffeeshop/pkg/middleware"
	"go.uber.org/zap"
)

// 各操作に必要な権限。
const (
	PermissionGetDetail = "get:drinks-detail"
	PermissionPost      = "post:drinks"
	PermissionPatch     = "patch:drinks"
	PermissionDelete    = "delete:drinks"
)

// Server はドリンクAPIのHTTPサーバー。
// ルーター、ストア、認可ゲート、ロガーをまとめて保持する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// store はドリンクの永続化層。
	store *Store
	// gate は保護されたエンドポイントの認可ゲート。
	gate *middleware.Gate
	// logger は構造化ロガー。
	logger *zap.Logger
	// allowedOrigins はCORSで許可するオリジン。
	allowedOrigins []string
}

// Option はServerの設定を変更する関数。
type Option func(*Server)

// WithAllowedOrigins はCORSで許可するオリジンを設定する。
// 空の場合は既定のまますべてのオリジンを許可する。
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// NewServer は新しいドリンクサーバーを生成する。
func NewServer(store *Store, gate *middleware.Gate, logger *zap.Logger, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("ストアが指定されていない")
	}
	if gate == nil {
		return nil, errors.New("認可ゲートが指定されていない")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:         gin.New(),
		store:          store,
		gate:           gate,
		logger:         logger,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s, nil
}

// Handler はサーバーのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はミドルウェアとAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.HandleMethodNotAllowed = true
	s.router.Use(
		middleware.RequestID(),
		middleware.AccessLog(s.logger),
		middleware.Recovery(s.logger),
		middleware.CORS(s.allowedOrigins),
	)

	// ドリンク一覧（公開）
	s.router.GET("/drinks", s.handleList())
	// ドリンク詳細一覧
	s.router.GET("/drinks-detail", s.gate.Require(PermissionGetDetail), middleware.WithClaims(s.handleDetail))
	// ドリンク作成
	s.router.POST("/drinks", s.gate.Require(PermissionPost), middleware.WithClaims(s.handleCreate))
	// ドリンク更新
	s.router.PATCH("/drinks/:id", s.gate.Require(PermissionPatch), middleware.WithClaims(s.handleUpdate))
	// ドリンク削除
	s.router.DELETE("/drinks/:id", s.gate.Require(PermissionDelete), middleware.WithClaims(s.handleDelete))

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "coffeeshop"})
	})

	s.router.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, http.StatusNotFound)
	})
	s.router.NoMethod(func(c *gin.Context) {
		middleware.AbortWithError(c, http.StatusMethodNotAllowed)
	})
}

// createDrinkRequest はドリンク作成リクエストのJSON構造。
type createDrinkRequest struct {
	// Title はドリンク名。
	Title string `json:"title"`
	// Recipe はレシピ。オブジェクト1つでも配列でもよい。
	Recipe Recipe `json:"recipe"`
}

// updateDrinkRequest はドリンク更新リクエストのJSON構造。
// 省略したフィールドは変更しない。
type updateDrinkRequest struct {
	// Title は新しいドリンク名。
	Title *string `json:"title"`
	// Recipe は新しいレシピ。
	Recipe *Recipe `json:"recipe"`
}

// decodeBody はリクエストボディをJSONとして読み取る。
// JSONとして解釈できない場合は400、型が合わない場合は422を返す。
func decodeBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			middleware.AbortWithError(c, http.StatusBadRequest)
			return false
		}
		middleware.AbortWithError(c, http.StatusUnprocessableEntity)
		return false
	}
	return true
}

// handleList は公開用の短い表現でドリンク一覧を返すハンドラを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		drinks, err := s.store.List(c.Request.Context())
		if err != nil {
			s.internalError(c, "ドリンク一覧取得エラー", err)
			return
		}

		views := make([]View, 0, len(drinks))
		for _, d := range drinks {
			views = append(views, d.Short())
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "drinks": views})
	}
}

// handleDetail は材料名を含む詳細な表現でドリンク一覧を返す。
func (s *Server) handleDetail(_ *middleware.Claims, c *gin.Context) {
	drinks, err := s.store.List(c.Request.Context())
	if err != nil {
		s.internalError(c, "ドリンク詳細取得エラー", err)
		return
	}

	views := make([]View, 0, len(drinks))
	for _, d := range drinks {
		views = append(views, d.Long())
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "drinks": views})
}

// handleCreate はドリンクを作成する。
// 名前が空、レシピが不正、または同名のドリンクが存在する場合は422を返す。
func (s *Server) handleCreate(claims *middleware.Claims, c *gin.Context) {
	var req createDrinkRequest
	if !decodeBody(c, &req) {
		return
	}

	created, err := s.store.Create(c.Request.Context(), Drink{Title: req.Title, Recipe: req.Recipe})
	if err != nil {
		s.writeStoreError(c, "ドリンク作成エラー", err)
		return
	}

	s.logger.Info("ドリンクを作成",
		zap.Int64("id", created.ID),
		zap.String("title", created.Title),
		zap.String("subject", claims.Subject),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "drinks": []View{created.Long()}})
}

// handleUpdate は指定IDのドリンクを部分更新する。
func (s *Server) handleUpdate(claims *middleware.Claims, c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	// ボディより先に存在を確認する。存在しないIDには本文によらず404を返す。
	if _, err := s.store.Get(c.Request.Context(), id); err != nil {
		s.writeStoreError(c, "ドリンク取得エラー", err)
		return
	}

	var req updateDrinkRequest
	if !decodeBody(c, &req) {
		return
	}

	updated, err := s.store.Update(c.Request.Context(), id, Patch{Title: req.Title, Recipe: req.Recipe})
	if err != nil {
		s.writeStoreError(c, "ドリンク更新エラー", err)
		return
	}

	s.logger.Info("ドリンクを更新",
		zap.Int64("id", id),
		zap.String("subject", claims.Subject),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "drinks": []View{updated.Long()}})
}

// handleDelete は指定IDのドリンクを削除する。
func (s *Server) handleDelete(claims *middleware.Claims, c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		s.writeStoreError(c, "ドリンク削除エラー", err)
		return
	}

	s.logger.Info("ドリンクを削除",
		zap.Int64("id", id),
		zap.String("subject", claims.Subject),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "delete": id})
}

// parseID はパスパラメータのIDを読み取る。
// 正の整数でない場合は該当するドリンクがないものとして404を返す。
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.AbortWithError(c, http.StatusNotFound)
		return 0, false
	}
	return id, true
}

// writeStoreError はストアのエラーをHTTPステータスに対応付けて応答する。
func (s *Server) writeStoreError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		middleware.AbortWithError(c, http.StatusNotFound)
	case errors.Is(err, ErrInvalidDrink), errors.Is(err, ErrDuplicateTitle):
		s.logger.Debug(msg, zap.Error(err), zap.String("request_id", middleware.GetRequestID(c)))
		middleware.AbortWithError(c, http.StatusUnprocessableEntity)
	default:
		s.internalError(c, msg, err)
	}
}

// internalError はエラーをログに出力して500を返す。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg,
		zap.Error(err),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	middleware.AbortWithError(c, http.StatusInternalServerError)
}
