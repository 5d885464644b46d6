package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
)

func (s *Server) createProjectHandler(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := s.store.CreateProject(c.Request.Context(), jobstore.Project{
		TenantID: tenantID(c), Name: req.Name, RemoteURL: req.RemoteURL, LocalPath: req.LocalPath,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, projectResponse(p))
}

func (s *Server) getProjectHandler(c *gin.Context) {
	p, err := s.store.GetProject(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, projectResponse(p))
}

func (s *Server) listProjectsHandler(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context(), tenantID(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	out := make([]ProjectResponse, 0, len(projects))
	for i := range projects {
		out = append(out, projectResponse(&projects[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteProjectHandler(c *gin.Context) {
	if err := s.store.DeleteProject(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listProjectJobsHandler(c *gin.Context) {
	jobs, err := s.store.ListJobsByProject(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobResponses(jobs))
}
