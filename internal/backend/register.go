package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"facedesk/internal/model"
)

// Image is one reference photo in a registration upload.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Registration is the multipart payload posted to /register_employee.
type Registration struct {
	Name       string
	Department string
	Email      string
	Images     []Image
}

// RegisterEmployee uploads a new identity with its reference images.
// A non-2xx response, or a 2xx response with success=false, yields
// ErrRegistrationFailed.
func (c *Client) RegisterEmployee(ctx context.Context, reg Registration) (*model.RegistrationResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	_ = w.WriteField("name", reg.Name)
	_ = w.WriteField("department", reg.Department)
	_ = w.WriteField("email", reg.Email)

	for _, img := range reg.Images {
		part, err := w.CreatePart(imageHeader("images", img))
		if err != nil {
			return nil, fmt.Errorf("%w: create image part: %v", ErrRegistrationFailed, err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, fmt.Errorf("%w: write image part: %v", ErrRegistrationFailed, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart: %v", ErrRegistrationFailed, err)
	}

	resp, err := c.send(ctx, "register_employee", http.MethodPost, "/register_employee", w.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	var out model.RegistrationResult
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRegistrationFailed, err)
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "backend rejected registration"
		}
		return &out, fmt.Errorf("%w: %s", ErrRegistrationFailed, msg)
	}
	return &out, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func imageHeader(field string, img Image) textproto.MIMEHeader {
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(img.Filename)))
	h.Set("Content-Type", contentType)
	return h
}
