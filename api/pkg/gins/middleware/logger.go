package middleware

import (
	"fmt"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// Logger 将每个请求写入节点日志
func Logger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		startTime := time.Now().UTC()

		// 处理请求
		ctx.Next()

		stopTime := time.Since(startTime)
		spendTime := fmt.Sprintf("%d ms", int(math.Ceil(float64(stopTime.Nanoseconds())/1000000.0)))
		statusCode := ctx.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"Status":    statusCode,
			"SpendTime": spendTime,
			"Ip":        ctx.ClientIP(),
			"Uri":       ctx.Request.RequestURI,
			"Method":    ctx.Request.Method,
			"Agent":     ctx.Request.UserAgent(),
		})
		if len(ctx.Errors) > 0 {
			entry = entry.WithField("Errors", ctx.Errors.String())
		}

		switch {
		case statusCode >= 500:
			entry.Error("api 请求失败")
		case statusCode >= 400:
			entry.Warn("api 请求被拒绝")
		default:
			entry.Info("api 请求")
		}
	}
}
