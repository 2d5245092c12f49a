package httptransport

import (
	"github.com/gin-gonic/gin"

	"mailrelay/backend/internal/domain"
)

// ========== Relay Handlers ==========

// createRelay godoc
// @Summary 创建中继
// @Tags Relays
// @Accept json
// @Produce json
// @Param relay body domain.CreateRelayInput true "中继定义"
// @Success 201 {object} Response{data=domain.Relay}
// @Failure 400 {object} Response
// @Router /v1/relays [post]
func (h *Handler) createRelay(c *gin.Context) {
	var input domain.CreateRelayInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	relay, err := h.relays.Create(input)
	if err != nil {
		respondError(c, err, MsgRelayCreateFailed)
		return
	}

	Created(c, relay)
}

// listRelays godoc
// @Summary 列出中继（按创建顺序）
// @Tags Relays
// @Produce json
// @Success 200 {object} Response{data=[]domain.Relay}
// @Router /v1/relays [get]
func (h *Handler) listRelays(c *gin.Context) {
	relays, err := h.relays.List()
	if err != nil {
		respondError(c, err, MsgRelayListFailed)
		return
	}

	Success(c, relays)
}

// getRelay godoc
// @Summary 获取中继
// @Tags Relays
// @Produce json
// @Param id path string true "中继 ID"
// @Success 200 {object} Response{data=domain.Relay}
// @Failure 404 {object} Response
// @Router /v1/relays/{id} [get]
func (h *Handler) getRelay(c *gin.Context) {
	relay, err := h.relays.Get(c.Param("id"))
	if err != nil {
		respondError(c, err, MsgRelayGetFailed)
		return
	}

	Success(c, relay)
}

// updateRelay godoc
// @Summary 局部更新中继
// @Description 只修改请求中出现的字段
// @Tags Relays
// @Accept json
// @Produce json
// @Param id path string true "中继 ID"
// @Param relay body domain.UpdateRelayInput true "更新内容"
// @Success 200 {object} Response{data=domain.Relay}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/relays/{id} [patch]
func (h *Handler) updateRelay(c *gin.Context) {
	var input domain.UpdateRelayInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	relay, err := h.relays.Update(c.Param("id"), input)
	if err != nil {
		respondError(c, err, MsgRelayUpdateFailed)
		return
	}

	Success(c, relay)
}

// deleteRelay godoc
// @Summary 删除中继
// @Tags Relays
// @Param id path string true "中继 ID"
// @Success 204
// @Failure 404 {object} Response
// @Router /v1/relays/{id} [delete]
func (h *Handler) deleteRelay(c *gin.Context) {
	existed, err := h.relays.Delete(c.Param("id"))
	if err != nil {
		respondError(c, err, MsgRelayDeleteFailed)
		return
	}
	if !existed {
		NotFound(c, MsgRelayNotFound)
		return
	}

	NoContent(c)
}
