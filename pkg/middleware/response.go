package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// statusMessages はエラー応答に載せるステータスごとのメッセージ。
var statusMessages = map[int]string{
	http.StatusBadRequest:          "bad request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusNotFound:            "resource not found",
	http.StatusMethodNotAllowed:    "method not allowed",
	http.StatusUnprocessableEntity: "unprocessable",
	http.StatusInternalServerError: "internal server error",
}

// StatusMessage はステータスコードに対応するエラーメッセージを返す。
// 未定義のステータスはnet/httpの標準テキストを小文字で返す。
func StatusMessage(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return strings.ToLower(http.StatusText(status))
}

// ErrorBody は統一エラー応答のJSONボディを返す。
func ErrorBody(status int) gin.H {
	return gin.H{
		"success": false,
		"error":   status,
		"message": StatusMessage(status),
	}
}

// AbortWithError は統一エラー応答を返して処理を中断する。
func AbortWithError(c *gin.Context, status int) {
	c.AbortWithStatusJSON(status, ErrorBody(status))
}
