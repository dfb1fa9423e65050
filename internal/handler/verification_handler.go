package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/simurgh/internal/pkg/response"
	"github.com/xxxsen/simurgh/internal/service"
)

type VerificationHandler struct {
	verifications *service.VerificationService
}

func NewVerificationHandler(verifications *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications}
}

type issueRequest struct {
	Username    string `json:"username"`
	ClientUTCDt int64  `json:"client_utc_dt"`
}

type checkRequest struct {
	Reference    string `json:"reference"`
	ClientSecret string `json:"client_secret"`
	ClientUTCDt  int64  `json:"client_utc_dt"`
}

func (h *VerificationHandler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		badRequest(c, "username required")
		return
	}
	res, err := h.verifications.Issue(c.Request.Context(), username, req.ClientUTCDt)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *VerificationHandler) Check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if req.Reference == "" || req.ClientSecret == "" {
		badRequest(c, "reference and client_secret required")
		return
	}
	if err := h.verifications.Check(c.Request.Context(), req.Reference, req.ClientSecret, req.ClientUTCDt); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}
