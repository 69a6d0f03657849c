// Package http is the JSON API over the room engine. Handlers parse and
// validate the request shape; all room semantics live in the app service.
package http

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fileroom/fileroom/internal/app"
	"github.com/fileroom/fileroom/internal/domain"
)

type Controller struct {
	Service *app.Service
}

func roomParam(c *gin.Context) domain.RoomCode {
	return domain.RoomCode(strings.ToUpper(c.Param("room")))
}

// NewRoom hands the caller a fresh room code. The room itself springs into
// existence on first join or data query.
func (ctl *Controller) NewRoom(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"room_code": domain.NewRoomCode()})
}

func (ctl *Controller) Join(c *gin.Context) {
	room := roomParam(c)
	res := ctl.Service.Join(room, domain.UserID(c.Query("user_id")), c.Query("user_name"))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"user_id":   res.UserID,
		"user_name": res.Name,
		"existing":  !res.IsNew,
	})
}

func (ctl *Controller) SendMessage(c *gin.Context) {
	room := roomParam(c)
	userID := domain.UserID(c.Query("user_id"))

	var (
		id  domain.MessageID
		err error
	)
	if c.DefaultQuery("message_type", "text") == "location" {
		id, err = ctl.Service.SendLocation(room, userID, floatQuery(c, "latitude"), floatQuery(c, "longitude"))
	} else {
		id, err = ctl.Service.SendText(room, userID, c.Query("text"))
	}
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message_id": id})
}

func (ctl *Controller) Upload(c *gin.Context) {
	room := roomParam(c)
	userID := domain.UserID(c.Query("user_id"))
	kind := domain.MessageKind(c.DefaultQuery("message_type", "file"))

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "bad multipart form"})
		return
	}

	var files []app.Upload
	var closers []func() error
	defer func() {
		for _, close := range closers {
			_ = close()
		}
	}()
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("file", fh.Filename).Msg("open upload part")
			continue
		}
		closers = append(closers, f.Close)
		files = append(files, app.Upload{Name: fh.Filename, Size: fh.Size, Content: f})
	}

	res, err := ctl.Service.UploadFiles(c.Request.Context(), room, userID, kind, files)
	if err != nil {
		abortWith(c, err)
		return
	}
	accepted := res.Accepted
	if accepted == nil {
		accepted = []app.AcceptedFile{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   res.Count,
		"files":   accepted,
	})
}

func (ctl *Controller) DeleteMessage(c *gin.Context) {
	id := domain.MessageID(c.Param("id"))
	if err := ctl.Service.DeleteMessage(c.Request.Context(), id); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ctl *Controller) RoomData(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.Service.Data(roomParam(c), time.Now()))
}

func (ctl *Controller) ClearRoom(c *gin.Context) {
	count, err := ctl.Service.ClearRoom(c.Request.Context(), roomParam(c))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

func (ctl *Controller) Download(c *gin.Context) {
	meta, rc, err := ctl.Service.Download(c.Request.Context(), domain.MessageID(c.Param("id")))
	if err != nil {
		abortWith(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", `attachment; filename="`+meta.Name+`"`)
	c.DataFromReader(http.StatusOK, meta.Size, "application/octet-stream", rc, nil)
}

func (ctl *Controller) Heartbeat(c *gin.Context) {
	ok := ctl.Service.Heartbeat(domain.UserID(c.Param("user")))
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (ctl *Controller) Manifest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":             "FileRoom",
		"short_name":       "FileRoom",
		"start_url":        "/",
		"display":          "standalone",
		"background_color": "#ffffff",
		"theme_color":      "#2563eb",
	})
}

func floatQuery(c *gin.Context, name string) *float64 {
	raw, ok := c.GetQuery(name)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// abortWith maps domain errors onto HTTP outcomes: absent -> 404, bad
// input -> 400, expired -> 410, everything else -> 500.
func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyText),
		errors.Is(err, domain.ErrMissingCoords),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrNotFileMessage):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrGone):
		status = http.StatusGone
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("request failed")
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}
