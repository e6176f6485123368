package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/launchboard/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// codeはクライアントが分岐に使う判別子で、errorは表示用メッセージ。
type ErrorResponseBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON はJSONレスポンスを書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// 内部エラーの詳細はクライアントに返さない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, err error) {
	WriteJSON(w, statusCode, ErrorResponseBody{
		Error: model.PublicMessage(err),
		Code:  string(model.KindOf(err)),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteJSON(w, http.StatusInternalServerError, ErrorResponseBody{
		Error: model.MsgServerError,
		Code:  string(model.KindInternal),
	})
}
