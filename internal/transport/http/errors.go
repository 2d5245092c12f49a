package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/pool"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	domain.ErrRelayNotFound: MsgRelayNotFound,
	domain.ErrRelayExists:   "中继已存在",
	pool.ErrQueueFull:       "Webhook 投递队列已满",
	pool.ErrPoolClosed:      "服务正在关闭",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidJSON    = "JSON格式错误"
	MsgInvalidLimit   = "limit 必须是非负整数"

	// 中继相关
	MsgRelayNotFound     = "中继不存在"
	MsgRelayCreateFailed = "创建中继失败"
	MsgRelayListFailed   = "获取中继列表失败"
	MsgRelayGetFailed    = "获取中继详情失败"
	MsgRelayUpdateFailed = "更新中继失败"
	MsgRelayDeleteFailed = "删除中继失败"

	// 评估相关
	MsgSimulateFailed = "模拟评估失败"
	MsgInboundFailed  = "入站处理失败"
	MsgLogListFailed  = "获取评估日志失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)

// respondError 根据错误类型写入响应，fallback 为未知错误时的提示
func respondError(c *gin.Context, err error, fallback string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		BadRequest(c, ve.Error())
	case errors.Is(err, domain.ErrRelayNotFound):
		NotFound(c, GetErrorMessage(err))
	case errors.Is(err, domain.ErrRelayExists):
		Conflict(c, GetErrorMessage(err))
	case errors.Is(err, pool.ErrPoolClosed):
		Error(c, http.StatusServiceUnavailable, GetErrorMessage(err))
	default:
		_ = c.Error(err)
		InternalError(c, fallback)
	}
}
