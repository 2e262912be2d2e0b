package http

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/fwojciec/handbook"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// codes maps application error codes to HTTP status codes.
var codes = map[string]int{
	handbook.EINVALID:     http.StatusBadRequest,
	handbook.ENOTFOUND:    http.StatusBadRequest,
	handbook.ERATELIMIT:   http.StatusTooManyRequests,
	handbook.EMALFORMED:   http.StatusInternalServerError,
	handbook.EUNAVAILABLE: http.StatusInternalServerError,
	handbook.EUPSTREAM:    http.StatusInternalServerError,
	handbook.EINTERNAL:    http.StatusInternalServerError,
}

// serverMessages are shown instead of error details for 5xx responses.
var serverMessages = map[string]string{
	handbook.EMALFORMED:   "学生便覧の読み込みに失敗しました。",
	handbook.EUNAVAILABLE: "学生便覧の読み込みに失敗しました。",
	handbook.EUPSTREAM:    "AIからの応答取得に失敗しました。",
}

// ErrorStatusCode returns the HTTP status code for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

// writeError writes err as an ErrorResponse. Server side failures are logged
// and replaced by a fixed message so no internal detail reaches the client.
func (s *Server) writeError(c *gin.Context, err error) {
	code := handbook.ErrorCode(err)
	status := ErrorStatusCode(code)

	resp := ErrorResponse{Error: handbook.ErrorMessage(err)}
	switch {
	case code == handbook.ERATELIMIT:
		secs := int(math.Ceil(handbook.RetryAfter(err).Seconds()))
		resp.RetryAfter = secs
		resp.Error = fmt.Sprintf("AIの利用上限に達しました。%d秒後に再度お試しください。", secs)
		c.Header("Retry-After", strconv.Itoa(secs))
	case status >= http.StatusInternalServerError:
		s.logger.Error("request failed",
			"path", c.Request.URL.Path,
			"code", code,
			"err", err,
			"request_id", c.GetString(RequestIDHeader),
		)
		resp.Error = serverMessages[code]
		if resp.Error == "" {
			resp.Error = "内部エラーが発生しました。"
		}
	}

	c.AbortWithStatusJSON(status, resp)
}
