package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/amrclient"
	"github.com/taoyao-code/amr-console/internal/command"
	"github.com/taoyao-code/amr-console/internal/protocol/amr"
	"github.com/taoyao-code/amr-console/internal/robot"
)

// errorStatus 错误到 HTTP 状态码的映射
func errorStatus(err error) int {
	var re *robot.RemoteError
	switch {
	case errors.Is(err, command.ErrInvalidArgument),
		errors.Is(err, robot.ErrInvalidHost),
		errors.Is(err, amrclient.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, robot.ErrHostNotSet):
		return http.StatusConflict
	case errors.Is(err, robot.ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, robot.ErrJogThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, amr.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, amr.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &re),
		amr.KindOf(err) != 0,
		errors.Is(err, amrclient.ErrCircuitOpen),
		errors.Is(err, amrclient.ErrTooManyTrials):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	var re *robot.RemoteError
	switch {
	case errors.As(err, &re):
		return "remote_error"
	case amr.KindOf(err) != 0:
		return amr.KindOf(err).String()
	}
	switch errorStatus(err) {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusConflict:
		return "host_not_set"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "throttled"
	case http.StatusBadGateway:
		return "bad_gateway"
	default:
		return "internal"
	}
}

// respondError 统一错误响应
func (h *RobotHandler) respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	body := gin.H{"error": errorCode(err), "message": err.Error()}
	var re *robot.RemoteError
	if errors.As(err, &re) {
		body["ret_code"] = re.Code
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("robot request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": msg})
}
