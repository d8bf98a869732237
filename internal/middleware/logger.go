package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorLogger logs failed requests and recovers from panics. Clients only
// receive a generic message; details go to the log.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				logRequestError(c, start, "panic", err.Error(), debug.Stack())

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_SERVER_ERROR",
						"message": "Internal Server Error",
					},
				})
				return
			}

			if len(c.Errors) == 0 {
				if c.Writer.Status() >= http.StatusInternalServerError {
					logRequestError(c, start, "http_error", fmt.Sprintf("status=%d", c.Writer.Status()), nil)
				}
				return
			}

			for _, err := range c.Errors {
				logRequestError(c, start, fmt.Sprintf("%v", err.Type), err.Error(), nil)
				if err.Meta != nil {
					log.Printf("request_error_meta request_id=%s meta=%+v", requestID(c), err.Meta)
				}
			}
		}()

		c.Next()
	}
}

func logRequestError(c *gin.Context, start time.Time, errType string, message string, stack []byte) {
	log.Printf(
		"request_error type=%s status=%d method=%s path=%s query=%s client_ip=%s user_id=%s role=%s request_id=%s latency=%s error=%q stack=%s",
		errType,
		c.Writer.Status(),
		c.Request.Method,
		c.Request.URL.Path,
		c.Request.URL.RawQuery,
		c.ClientIP(),
		c.GetString(CtxUserID),
		c.GetString(CtxRole),
		requestID(c),
		time.Since(start),
		message,
		string(stack),
	)
}

func requestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = c.GetHeader("X-Request-Id")
	}
	return requestID
}
