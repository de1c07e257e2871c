package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"formautofill/models"
	"formautofill/store"
	"formautofill/utils"
)

type DomainController struct {
	domains *store.DomainMappingStore
}

func NewDomainController(domains *store.DomainMappingStore) *DomainController {
	return &DomainController{domains: domains}
}

type MappingRequest struct {
	FieldMappings map[string]string `json:"fieldMappings" binding:"required"`
}

type LearnRequest struct {
	Selector string `json:"selector" binding:"required"`
	Path     string `json:"path" binding:"required"`
}

func (c *DomainController) Get(ctx *gin.Context) {
	m, err := c.domains.Get(ctx.Request.Context(), ctx.Param("domain"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if m == nil {
		utils.NotFoundError(ctx, "No mapping for domain")
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Mapping retrieved", m)
}

// Put replaces the selector to profile path overrides of a domain.
func (c *DomainController) Put(ctx *gin.Context) {
	var req MappingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, err)
		return
	}
	m := &models.DomainMapping{
		Domain:        ctx.Param("domain"),
		FieldMappings: req.FieldMappings,
		LastUsed:      time.Now().UnixMilli(),
	}
	if err := c.domains.Save(ctx.Request.Context(), m); err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Mapping saved", m)
}

// Learn adds one override to a domain's mapping.
func (c *DomainController) Learn(ctx *gin.Context) {
	var req LearnRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, err)
		return
	}
	m, err := c.domains.Learn(ctx.Request.Context(), ctx.Param("domain"), req.Selector, req.Path)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Mapping learned", m)
}

func (c *DomainController) Delete(ctx *gin.Context) {
	if err := c.domains.Delete(ctx.Request.Context(), ctx.Param("domain")); err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Mapping deleted", nil)
}
