package rest

import (
	"net/http"

	"github.com/KevinKickass/OpenBatchCore/internal/types"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/status/registers
func (s *Server) getRegisters(c *gin.Context) {
	snap, err := s.lm.Tracker().Read()
	if err != nil {
		c.JSON(http.StatusBadGateway, types.NewErrorResponse("STATUS_502", "Failed to read controller registers", err.Error()))
		return
	}

	c.JSON(http.StatusOK, snap)
}

// GET /api/v1/batches?source=plc
func (s *Server) getBatches(c *gin.Context) {
	if c.Query("source") == "plc" {
		slots, err := s.lm.Coordinator().LiveBatches()
		if err != nil {
			c.JSON(http.StatusBadGateway, types.NewErrorResponse("BATCH_502", "Failed to read batch slots from controller", err.Error()))
			return
		}

		c.JSON(http.StatusOK, gin.H{"source": "plc", "slots": slots})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source": "cache",
		"slots":  s.lm.Coordinator().LastKnownBatches(),
	})
}

// GET /api/v1/operations
func (s *Server) getOperations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"operations": s.lm.Coordinator().History(),
	})
}
