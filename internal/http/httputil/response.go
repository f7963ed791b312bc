package httputil

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	cmn "github.com/balancer/backend-sub000/internal/common"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// render encodes with sonic; quote payloads carry many big decimal strings.
func render(c *gin.Context, status int, resp Response) {
	body, err := sonic.Marshal(resp)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

func Success(c *gin.Context, data interface{}) {
	render(c, http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Error(c *gin.Context, status int, err string) {
	render(c, status, Response{
		Success: false,
		Error:   err,
	})
}

// HandleError writes err, using its status when it is a *common.HttpError.
func HandleError(c *gin.Context, err error) {
	var httpErr *cmn.HttpError
	if !errors.As(err, &httpErr) {
		httpErr = cmn.HTTPErrorFromPricing(err)
	}
	render(c, httpErr.StatusCode, Response{
		Success: false,
		Error:   httpErr.Message,
		Code:    httpErr.Code,
	})
}

func BadRequest(c *gin.Context, err string) {
	Error(c, http.StatusBadRequest, err)
}

func NotFound(c *gin.Context, err string) {
	Error(c, http.StatusNotFound, err)
}

// Aliases for compatibility
func HandleSuccess(c *gin.Context, data interface{}) {
	Success(c, data)
}

func HandleBadRequest(c *gin.Context, err string) {
	BadRequest(c, err)
}

func HandleNotFound(c *gin.Context, err string) {
	NotFound(c, err)
}
