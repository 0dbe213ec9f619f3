package middleware

import (
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/orcs/pkg/api/dto"
)

// Recovery panic恢复中间件
// 客户端断连导致的写失败只记日志；其余panic返回统一的500错误响应
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			if isBrokenConnection(r) {
				log.Printf("⚠️ 客户端连接中断: %v (%s %s)", r, c.Request.Method, c.Request.URL.Path)
				c.Abort()
				return
			}

			log.Printf("❌ panic已恢复: %v (%s %s)\n%s", r, c.Request.Method, c.Request.URL.Path, debug.Stack())
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
				http.StatusInternalServerError,
				"服务内部错误",
			))
		}()
		c.Next()
	}
}

// isBrokenConnection 判断panic是否由客户端断连引起
func isBrokenConnection(r interface{}) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr.Err, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
