package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenBatchCore/internal/orchestrator"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	status := s.lm.GetCurrentStatus()
	c.JSON(http.StatusOK, status)
}

// POST /api/v1/system/reset
func (s *Server) resetSystem(c *gin.Context) {
	if err := s.lm.Coordinator().ResetSystemState(); err != nil {
		if errors.Is(err, orchestrator.ErrOperationInProgress) {
			c.JSON(http.StatusConflict, types.NewErrorResponse("SYSTEM_409", "An operation is in progress", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("SYSTEM_500", "Failed to reset system state", err.Error()))
		return
	}

	subject, _ := c.Get("subject")
	s.logger.Info("System state reset via API", zap.Any("subject", subject))

	c.JSON(http.StatusOK, gin.H{
		"message": "System state reset",
	})
}
