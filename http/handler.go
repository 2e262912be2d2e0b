package http

import (
	"net/http"

	"github.com/fwojciec/handbook"
	"github.com/gin-gonic/gin"
)

// facultiesResponse lists the configured handbooks for the form dropdowns.
type facultiesResponse struct {
	Faculties []*handbook.Descriptor `json:"faculties"`
}

func (s *Server) handleChat(c *gin.Context) {
	var q handbook.Question
	if err := c.ShouldBindJSON(&q); err != nil {
		s.writeError(c, handbook.Errorf(handbook.EINVALID, "invalid request body"))
		return
	}

	answer, err := s.asker.Ask(c.Request.Context(), &q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) handleFaculties(c *gin.Context) {
	c.JSON(http.StatusOK, facultiesResponse{Faculties: s.catalog.Documents()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
