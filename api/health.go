package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CircuitState reports whether calls to a remote dependency short-circuit.
type CircuitState interface {
	InventoryOpen() bool
}

func RegisterHealth(router gin.IRouter, circuit CircuitState) {
	router.GET("/health", func(c *gin.Context) {
		resp := gin.H{"status": "UP"}
		if circuit != nil {
			state := "CLOSED"
			if circuit.InventoryOpen() {
				state = "OPEN"
				resp["status"] = "DEGRADED"
			}
			resp["inventory_circuit"] = state
		}
		c.JSON(http.StatusOK, resp)
	})
}
