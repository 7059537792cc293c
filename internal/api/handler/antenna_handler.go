package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/pkg/response"
)

type antennaRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Title     string `json:"title" binding:"required,max=255"`

	InsertFeeds bool   `json:"insert_feeds"`
	ListID      string `json:"list_id"`

	WithMediaOnly bool `json:"with_media_only"`
	IgnoreReblog  bool `json:"ignore_reblog"`
	STL           bool `json:"stl"`
	LTL           bool `json:"ltl"`

	AccountIDs        []string `json:"accounts"`
	ExcludeAccountIDs []string `json:"exclude_accounts"`
	Domains           []string `json:"domains"`
	ExcludeDomains    []string `json:"exclude_domains"`
	TagIDs            []string `json:"tags"`
	ExcludeTagIDs     []string `json:"exclude_tags"`
	Keywords          []string `json:"keywords"`
	ExcludeKeywords   []string `json:"exclude_keywords"`

	ExpiresAt *time.Time `json:"expires_at"`
}

func (req *antennaRequest) apply(a *model.Antenna) {
	a.AccountID = req.AccountID
	a.Title = req.Title
	a.InsertFeeds = req.InsertFeeds
	a.ListID = req.ListID
	a.WithMediaOnly = req.WithMediaOnly
	a.IgnoreReblog = req.IgnoreReblog
	a.STL = req.STL
	a.LTL = req.LTL
	a.AccountIDs = req.AccountIDs
	a.ExcludeAccountIDs = req.ExcludeAccountIDs
	a.Domains = req.Domains
	a.ExcludeDomains = req.ExcludeDomains
	a.TagIDs = req.TagIDs
	a.ExcludeTagIDs = req.ExcludeTagIDs
	a.Keywords = req.Keywords
	a.ExcludeKeywords = req.ExcludeKeywords
	a.ExpiresAt = req.ExpiresAt
	a.AnyAccounts = len(req.AccountIDs) == 0
	a.AnyDomains = len(req.Domains) == 0
	a.AnyTags = len(req.TagIDs) == 0
}

// CreateAntenna 创建天线
// @Summary 创建天线规则
// @Tags 天线
// @Accept json
// @Produce json
// @Param request body antennaRequest true "规则"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/antennas [post]
func (h *Handler) CreateAntenna(c *gin.Context) {
	var req antennaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	a := &model.Antenna{Available: true}
	req.apply(a)
	if err := h.antennaRepo.Create(c.Request.Context(), a); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, a)
}

// GetAntenna 查询天线
// @Summary 查询单条天线
// @Tags 天线
// @Param id path string true "天线ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/antennas/{id} [get]
func (h *Handler) GetAntenna(c *gin.Context) {
	a, err := h.antennaRepo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "antenna not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, a)
}

// UpdateAntenna 更新天线
// @Summary 更新天线规则（整体替换过滤字段）
// @Tags 天线
// @Accept json
// @Produce json
// @Param id path string true "天线ID"
// @Param request body antennaRequest true "规则"
// @Success 200 {object} response.Response
// @Router /api/v1/antennas/{id} [put]
func (h *Handler) UpdateAntenna(c *gin.Context) {
	var req antennaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	a, err := h.antennaRepo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "antenna not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	if a.AccountID != req.AccountID {
		response.BadRequest(c, "antenna owner mismatch")
		return
	}
	req.apply(a)
	if err := h.antennaRepo.Update(c.Request.Context(), a); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, a)
}

// DeleteAntenna 删除天线
// @Summary 删除天线（仅限本人）
// @Tags 天线
// @Param id path string true "天线ID"
// @Param account_id query string true "账号ID"
// @Success 200 {object} response.Response
// @Router /api/v1/antennas/{id} [delete]
func (h *Handler) DeleteAntenna(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.BadRequest(c, "account_id is required")
		return
	}
	if err := h.antennaRepo.Delete(c.Request.Context(), c.Param("id"), accountID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// ListAntennas 列出账号天线
// @Summary 列出账号名下的全部天线
// @Tags 天线
// @Param id path string true "账号ID"
// @Success 200 {object} response.Response
// @Router /api/v1/accounts/{id}/antennas [get]
func (h *Handler) ListAntennas(c *gin.Context) {
	list, err := h.antennaRepo.ListByAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, list)
}
