package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"mailrelay/backend/internal/domain"
)

// ========== Evaluation Handlers ==========

// simulate godoc
// @Summary 模拟评估
// @Description 对全部中继评估一封邮件，命中的中继写入评估日志
// @Tags Evaluation
// @Accept json
// @Produce json
// @Param message body domain.InboundMessage true "入站邮件"
// @Success 200 {object} Response{data=[]domain.EvaluationResult}
// @Failure 400 {object} Response
// @Failure 429 {object} Response
// @Router /v1/relays/simulate [post]
func (h *Handler) simulate(c *gin.Context) {
	var msg domain.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	results, err := h.simulation.Simulate(c.Request.Context(), msg)
	if err != nil {
		respondError(c, err, MsgSimulateFailed)
		return
	}

	Success(c, results)
}

// inbound godoc
// @Summary 入站处理
// @Description 与模拟评估相同，另外为命中的中继异步投递 Webhook
// @Tags Evaluation
// @Accept json
// @Produce json
// @Param message body domain.InboundMessage true "入站邮件"
// @Success 200 {object} Response{data=service.ProcessResult}
// @Failure 400 {object} Response
// @Router /v1/inbound [post]
func (h *Handler) inbound(c *gin.Context) {
	var msg domain.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	result, err := h.simulation.Process(c.Request.Context(), msg)
	if err != nil {
		respondError(c, err, MsgInboundFailed)
		return
	}

	Success(c, result)
}

// listLogs godoc
// @Summary 评估日志
// @Description 按时间倒序返回，limit=0 返回全部，省略时使用默认条数
// @Tags Evaluation
// @Produce json
// @Param limit query int false "返回条数"
// @Success 200 {object} Response{data=[]domain.LogEntry}
// @Failure 400 {object} Response
// @Router /v1/logs [get]
func (h *Handler) listLogs(c *gin.Context) {
	limit := h.logListLimit
	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			BadRequest(c, MsgInvalidLimit)
			return
		}
		limit = n
	}

	entries, err := h.logs.List(limit)
	if err != nil {
		respondError(c, err, MsgLogListFailed)
		return
	}

	Success(c, entries)
}
