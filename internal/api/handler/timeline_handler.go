package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/pkg/response"
)

func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}

func (h *Handler) fetchTimeline(c *gin.Context, feedKind, ownerID string) {
	page, size := pageParams(c)
	snaps, err := h.timeline.Fetch(c.Request.Context(), feedKind, ownerID, page, size)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{
		"feed_kind": feedKind,
		"owner_id":  ownerID,
		"page":      page,
		"size":      size,
		"statuses":  snaps,
	})
}

// HomeTimeline 主页时间线
// @Summary 主页时间线分页
// @Tags 时间线
// @Param account_id path string true "账号ID"
// @Param page query int false "页码"
// @Param size query int false "每页条数"
// @Success 200 {object} response.Response
// @Router /api/v1/timelines/home/{account_id} [get]
func (h *Handler) HomeTimeline(c *gin.Context) {
	h.fetchTimeline(c, model.FeedKindHome, c.Param("account_id"))
}

// ListTimeline 列表时间线
// @Summary 列表时间线分页
// @Tags 时间线
// @Param list_id path string true "列表ID"
// @Param page query int false "页码"
// @Param size query int false "每页条数"
// @Success 200 {object} response.Response
// @Router /api/v1/timelines/list/{list_id} [get]
func (h *Handler) ListTimeline(c *gin.Context) {
	h.fetchTimeline(c, model.FeedKindList, c.Param("list_id"))
}

// AntennaTimeline 天线时间线
// @Summary 天线专属时间线分页
// @Tags 时间线
// @Param antenna_id path string true "天线ID"
// @Param page query int false "页码"
// @Param size query int false "每页条数"
// @Success 200 {object} response.Response
// @Router /api/v1/timelines/antenna/{antenna_id} [get]
func (h *Handler) AntennaTimeline(c *gin.Context) {
	h.fetchTimeline(c, model.FeedKindAntenna, c.Param("antenna_id"))
}

// TagTimeline 标签订阅时间线
// @Summary 标签订阅时间线分页
// @Tags 时间线
// @Param account_id path string true "账号ID"
// @Param page query int false "页码"
// @Param size query int false "每页条数"
// @Success 200 {object} response.Response
// @Router /api/v1/timelines/tag/{account_id} [get]
func (h *Handler) TagTimeline(c *gin.Context) {
	h.fetchTimeline(c, model.FeedKindTag, c.Param("account_id"))
}
