package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/careerbot/internal/errx"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// FailWithData is Fail with a machine-readable payload (e.g. the quota snapshot on 429).
func FailWithData(c *gin.Context, httpStatus int, code int, msg string, data any) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    data,
	})
}

// FailErr maps an error through errx; the business code is the status * 100.
func FailErr(c *gin.Context, err error) {
	status, msg := errx.StatusOf(err)
	Fail(c, status, status*100, msg)
}
