package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibe-engine/vibe-engine/pkg/billing"
)

func (s *Server) billingUsageHandler(c *gin.Context) {
	rows, totalSpend, budgetLimit, err := s.meter.Usage(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	out := UsageResponse{TotalSpend: totalSpend, BudgetLimit: budgetLimit}
	for _, r := range rows {
		out.Rows = append(out.Rows, UsageRowResponse{
			Date: r.Date, Model: r.Model, InputTokens: r.InputTokens,
			OutputTokens: r.OutputTokens, CostUSD: r.CostUSD, JobCount: r.JobCount,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) billingExportHandler(c *gin.Context) {
	rows, err := s.meter.Export(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	filename := fmt.Sprintf("usage-%s.csv", c.Param("tenantId"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	if err := billing.WriteCSV(c.Writer, rows); err != nil {
		respondStoreError(c, err)
	}
}

func (s *Server) billingSetBudgetHandler(c *gin.Context) {
	var req SetBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	budget, err := s.meter.SetBudget(c.Request.Context(), c.Param("tenantId"), req.LimitUSD)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant_id": budget.TenantID, "limit_usd": budget.LimitUSD})
}
