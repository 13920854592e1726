package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/e2b-dev/infra/packages/memdev/pkg/memdev"
)

func (a *APIStore) PostControl(c *gin.Context) {
	var body ControlRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		a.sendAPIStoreError(c, http.StatusBadRequest, fmt.Sprintf("invalid body for control: %s", err))

		return
	}

	err := a.host.Control(memdev.ControlCode(*body.Code))
	if err != nil {
		a.sendDeviceError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

func (a *APIStore) GetDevice(c *gin.Context) {
	c.JSON(http.StatusOK, a.host.Info())
}

func (a *APIStore) GetHealth(c *gin.Context) {
	c.String(http.StatusOK, "Health check successful")
}
