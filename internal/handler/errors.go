package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/launchboard/internal/middleware"
	"github.com/hitoshi/launchboard/internal/model"
)

// statusForKind はエラー種別をHTTPステータスに対応付ける。
// OAuthコールバックではステータスではなく失敗ルートへのリダイレクトを使う。
func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindBadRequest:
		return http.StatusBadRequest
	case model.KindInvalidSignature, model.KindInvalidToken, model.KindTokenExpired:
		return http.StatusUnauthorized
	case model.KindUserNotFound:
		return http.StatusNotFound
	case model.KindDuplicateIdentity:
		return http.StatusConflict
	case model.KindTimeout:
		return http.StatusGatewayTimeout
	case model.KindUpstreamProviderFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError はエラーを統一フォーマットで書き込む。
// 5xxの場合は原因をサーバーログに記録する。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteErrorResponse(w, status, err)
}
