package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every REST reply. Status is "success" for
// 1xx-3xx, "error" for 4xx and "fail" for 5xx.
type Response struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message any    `json:"message"`
	Data    any    `json:"data"`
}

func statusOf(code int) string {
	switch code / 100 {
	case 5:
		return "fail"
	case 4:
		return "error"
	default:
		return "success"
	}
}

func respond(c *gin.Context, code int, data any) {
	c.JSON(code, Response{Code: code, Status: statusOf(code), Data: data})
}

func respondError(c *gin.Context, code int) {
	text := http.StatusText(code)
	c.JSON(code, Response{Code: code, Status: statusOf(code), Message: text, Data: text})
}

func respondFail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	c.JSON(code, Response{Code: code, Status: statusOf(code), Message: err.Error(), Data: err.Error()})
}
