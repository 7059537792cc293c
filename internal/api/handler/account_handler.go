package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
	"github.com/oyasumi-space/antenna-fanout/pkg/response"
)

type registerRequest struct {
	Username     string `json:"username" binding:"required,max=255"`
	Domain       string `json:"domain"` // 为空则注册本地账号
	Email        string `json:"email"`
	Password     string `json:"password"`
	Silenced     bool   `json:"silenced"`
	Subscribable *bool  `json:"subscribable"`
}

// Register 注册账号
// @Summary 注册账号（本地账号需密码，远端账号只记录镜像）
// @Tags 账号
// @Accept json
// @Produce json
// @Param request body registerRequest true "账号信息"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/accounts [post]
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	account := &model.Account{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Domain:       req.Domain,
		Email:        req.Email,
		Silenced:     req.Silenced,
		Subscribable: true,
		LastActiveAt: time.Now(),
	}
	if req.Subscribable != nil {
		account.Subscribable = *req.Subscribable
	}
	if account.Local() {
		if req.Password == "" {
			response.BadRequest(c, "password is required for local accounts")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		account.PasswordHash = string(hash)
	}
	if err := h.accountRepo.Create(c.Request.Context(), account); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"id": account.ID})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录换取令牌
// @Summary 登录（颁发 24h 有效的 JWT）
// @Tags 账号
// @Accept json
// @Produce json
// @Param request body loginRequest true "凭证"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/accounts/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	account, err := h.accountRepo.GetByAcct(c.Request.Context(), req.Username, "")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Unauthorized(c, "invalid credentials")
			return
		}
		response.InternalError(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		response.Unauthorized(c, "invalid credentials")
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   account.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
	})
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	_ = h.accountRepo.Touch(c.Request.Context(), account.ID, now)
	response.Success(c, gin.H{"token": signed, "account_id": account.ID})
}

// GetAccount 查询账号
// @Summary 查询账号
// @Tags 账号
// @Param id path string true "账号ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/accounts/{id} [get]
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.accountRepo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	account.PasswordHash = ""
	response.Success(c, account)
}
