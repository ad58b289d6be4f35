package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"facedesk/internal/backend"
	"facedesk/internal/registration"
)

const maxImageBytes = 10 << 20

func (s *Server) registrationView(c *gin.Context) {
	c.JSON(http.StatusOK, s.Registration.Snapshot())
}

func (s *Server) registrationFields(c *gin.Context) {
	var f registration.Fields
	if err := c.ShouldBindJSON(&f); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	s.Registration.SetFields(f)
	c.JSON(http.StatusOK, s.Registration.Snapshot())
}

// addRegistrationImage accepts one photo, either as the multipart field
// "image" or as the raw request body.
func (s *Server) addRegistrationImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)

	var data []byte
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Failed to read file")
			return
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Failed to read file")
			return
		}
	} else {
		var rerr error
		data, rerr = io.ReadAll(c.Request.Body)
		if rerr != nil {
			errorJSON(c, http.StatusRequestEntityTooLarge, "Failed to read file")
			return
		}
	}

	if err := s.Registration.AddImage(data); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, registration.ErrTooManyImages) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": s.Registration.Snapshot().Error, "registration": s.Registration.Snapshot()})
		return
	}
	c.JSON(http.StatusCreated, s.Registration.Snapshot())
}

func imageIndex(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "image index must be a number")
		return 0, false
	}
	return i, true
}

func (s *Server) registrationImage(c *gin.Context) {
	i, ok := imageIndex(c)
	if !ok {
		return
	}
	img, found := s.Registration.Image(i)
	if !found {
		errorJSON(c, http.StatusNotFound, registration.ErrNoSuchImage.Error())
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

func (s *Server) removeRegistrationImage(c *gin.Context) {
	i, ok := imageIndex(c)
	if !ok {
		return
	}
	if err := s.Registration.RemoveImage(i); err != nil {
		errorJSON(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.Registration.Snapshot())
}

func (s *Server) submitRegistration(c *gin.Context) {
	_, err := s.Registration.Register(c.Request.Context())
	view := s.Registration.Snapshot()
	if err == nil {
		c.JSON(http.StatusCreated, view)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registration.ErrIncomplete):
		status = http.StatusBadRequest
	case errors.Is(err, registration.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, backend.ErrRegistrationFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": view.Error, "registration": view})
}

func (s *Server) resetRegistration(c *gin.Context) {
	s.Registration.Reset()
	c.JSON(http.StatusOK, s.Registration.Snapshot())
}
