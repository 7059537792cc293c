package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
	"github.com/oyasumi-space/antenna-fanout/internal/service"
	"github.com/oyasumi-space/antenna-fanout/pkg/response"
)

type createStatusRequest struct {
	AccountID     string   `json:"account_id" binding:"required"`
	Text          string   `json:"text" binding:"required"`
	Visibility    string   `json:"visibility" binding:"required,visibility"`
	Searchability string   `json:"searchability"`
	Tags          []string `json:"tags"`
	Mentions      []string `json:"mentions"`
	HasMedia      bool     `json:"has_media"`
	InReplyToID   string   `json:"in_reply_to_id"`
	ReblogOfID    string   `json:"reblog_of_id"`
	QuoteOfID     string   `json:"quote_of_id"`
	// RemoteURI 远端来源对象的规范标识；同一对象可能经多条入站通道
	// 并发到达，带锁串行化创建投递
	RemoteURI string `json:"remote_uri"`
}

// CreateStatus 发贴并触发扇出
// @Summary 发贴（同步路径到任务入队为止）
// @Tags 贴文
// @Accept json
// @Produce json
// @Param request body createStatusRequest true "贴文"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/statuses [post]
func (h *Handler) CreateStatus(c *gin.Context) {
	var req createStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	in := service.PublishInput{
		AccountID:         req.AccountID,
		Text:              req.Text,
		Visibility:        model.Visibility(req.Visibility),
		Searchability:     model.Searchability(req.Searchability),
		TagNames:          req.Tags,
		MentionAccountIDs: req.Mentions,
		HasMedia:          req.HasMedia,
		InReplyToID:       req.InReplyToID,
		ReblogOfID:        req.ReblogOfID,
		QuoteOfID:         req.QuoteOfID,
	}

	var status *model.Status
	create := func(ctx context.Context) error {
		var err error
		status, err = h.publisher.Publish(ctx, in)
		if err != nil {
			return err
		}
		return h.fanout.FanOut(ctx, status, service.FanOutOptions{})
	}

	var err error
	if req.RemoteURI != "" {
		err = h.locker.WithLock(c.Request.Context(), "status:"+req.RemoteURI, create)
	} else {
		err = create(c.Request.Context())
	}
	if err != nil {
		if errors.Is(err, service.ErrRaceCondition) {
			response.Conflict(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"id": status.ID, "visibility": status.Visibility, "searchability": status.Searchability})
}

type editStatusRequest struct {
	Text     string `json:"text" binding:"required"`
	HasMedia bool   `json:"has_media"`
}

// EditStatus 编辑贴文并重投
// @Summary 编辑贴文（刷新快照，身份不变）
// @Tags 贴文
// @Accept json
// @Produce json
// @Param id path string true "贴文ID"
// @Param request body editStatusRequest true "编辑内容"
// @Success 200 {object} response.Response
// @Router /api/v1/statuses/{id} [put]
func (h *Handler) EditStatus(c *gin.Context) {
	var req editStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	status, err := h.publisher.Edit(c.Request.Context(), c.Param("id"), req.Text, req.HasMedia)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if err := h.fanout.FanOut(c.Request.Context(), status, service.FanOutOptions{Update: true}); err != nil {
		if errors.Is(err, service.ErrRaceCondition) {
			response.Conflict(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"id": status.ID})
}

// GetStatus 读取贴文
// @Summary 读取贴文
// @Tags 贴文
// @Param id path string true "贴文ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/statuses/{id} [get]
func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.statusRepo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusNotFound):
			response.NotFound(c, "status not found")
		case errors.Is(err, repository.ErrStatusNotReady):
			response.Conflict(c, "status not ready")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Success(c, status)
}
