package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facedesk/internal/web/static"
)

func mountStatic(r *gin.Engine) {
	r.StaticFS("/assets", static.FileSystem())
	r.GET("/", func(c *gin.Context) {
		page, err := static.Index()
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "page unavailable")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	})
}
