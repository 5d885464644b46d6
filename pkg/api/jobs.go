package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
)

func (s *Server) createJobHandler(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	tenant := tenantID(c)

	// A project_id always names a project; confirm it exists and is
	// owned by this tenant before admitting the job (spec §6).
	if req.ProjectID != "" {
		if _, err := s.store.GetProject(ctx, tenant, req.ProjectID); err != nil {
			respondStoreError(c, err)
			return
		}
	}

	// Budget gate at the creation boundary: an exhausted or zero-budget
	// tenant's job must never enter the queue (spec §4.8, §6, §7, §8).
	admitted, err := s.meter.CanAdmit(ctx, tenant)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !admitted {
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "budget exhausted"})
		return
	}

	j, err := s.store.CreateJob(ctx, jobstore.Job{
		TenantID: tenant, ProjectID: req.ProjectID, RepositoryURL: req.RepositoryURL,
		Prompt: req.Prompt, SourceBranch: req.SourceBranch, DestinationBranch: req.DestinationBranch,
		LLMModel: req.LLMModel,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, jobResponse(j))
}

func (s *Server) getJobHandler(c *gin.Context) {
	j, err := s.store.GetJob(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobResponse(j))
}

func (s *Server) listJobsHandler(c *gin.Context) {
	jobs, err := s.store.ListJobs(c.Request.Context(), tenantID(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobResponses(jobs))
}
