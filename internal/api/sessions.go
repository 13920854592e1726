package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/memdev/internal/logger"
	"github.com/e2b-dev/infra/packages/memdev/pkg/memdev"
)

type readQuery struct {
	Length *int64 `form:"length" binding:"required,min=0"`
}

func (a *APIStore) PostSessions(c *gin.Context) {
	id, offset := a.host.Open()

	c.JSON(http.StatusCreated, &Session{ID: id, Offset: offset})
}

func (a *APIStore) GetSession(c *gin.Context) {
	id := c.Param("id")

	offset, err := a.host.Offset(id)
	if err != nil {
		a.sendDeviceError(c, err)

		return
	}

	c.JSON(http.StatusOK, &Session{ID: id, Offset: offset})
}

func (a *APIStore) DeleteSession(c *gin.Context) {
	err := a.host.Close(c.Param("id"))
	if err != nil {
		a.sendDeviceError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// GetSessionData streams up to length bytes from the session cursor. The body length is the
// number of bytes transferred; an empty body means the cursor is at the end of the device.
func (a *APIStore) GetSessionData(c *gin.Context) {
	id := c.Param("id")

	var query readQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		a.sendAPIStoreError(c, http.StatusBadRequest, fmt.Sprintf("invalid length: %s", err))

		return
	}

	w := &octetStream{ResponseWriter: c.Writer}

	_, err := a.host.Read(id, w, *query.Length)
	if err != nil {
		if c.Writer.Written() {
			a.logger.Warn("read aborted after response started", logger.WithSessionID(id), zap.Error(err))
			c.Abort()

			return
		}

		a.sendDeviceError(c, err)

		return
	}

	// Nothing was transferred at the end of the device.
	w.start()
}

func (a *APIStore) PutSessionData(c *gin.Context) {
	id := c.Param("id")

	length := c.Request.ContentLength
	if length < 0 {
		a.sendAPIStoreError(c, http.StatusLengthRequired, "Content-Length is required")

		return
	}

	t, err := a.host.Write(id, c.Request.Body, length)
	if err != nil {
		a.sendDeviceError(c, err)

		return
	}

	c.JSON(http.StatusOK, &WriteResult{Written: t.Count, Offset: t.To()})
}

// octetStream sends the binary response headers only once the device hands over data,
// so errors found before the transfer are still reported as JSON.
type octetStream struct {
	gin.ResponseWriter
}

func (w *octetStream) start() {
	if w.Written() {
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.WriteHeaderNow()
}

func (w *octetStream) Write(p []byte) (int, error) {
	w.start()

	return w.ResponseWriter.Write(p)
}

func (a *APIStore) PostSessionSeek(c *gin.Context) {
	id := c.Param("id")

	var body SeekRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		a.sendAPIStoreError(c, http.StatusBadRequest, fmt.Sprintf("invalid body for seek: %s", err))

		return
	}

	whence, err := memdev.ParseWhence(body.Whence)
	if err != nil {
		a.sendDeviceError(c, err)

		return
	}

	offset, err := a.host.Seek(id, body.Delta, whence)
	if err != nil {
		a.sendDeviceError(c, err)

		return
	}

	c.JSON(http.StatusOK, &SeekResult{Offset: offset})
}
