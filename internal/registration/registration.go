// Package registration stages a new identity's details and reference photos
// and uploads them to the backend.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"facedesk/internal/backend"
	"facedesk/internal/metrics"
	"facedesk/internal/model"
)

// RequiredImages is the number of reference photos an enrolment needs.
const RequiredImages = 3

var (
	ErrTooManyImages = errors.New("you can only upload 3 images")
	ErrNotImage      = errors.New("please select only image files")
	ErrNoSuchImage   = errors.New("no staged image at that position")
	ErrIncomplete    = errors.New("registration incomplete")
	ErrBusy          = errors.New("a registration is already being submitted")
)

// Fields are the text inputs of the registration form.
type Fields struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Email      string `json:"email"`
}

// Complete reports whether every field is non-empty.
func (f Fields) Complete() bool {
	return f.Name != "" && f.Department != "" && f.Email != ""
}

// StagedImage is a photo accepted into the draft.
type StagedImage struct {
	ContentType string
	Data        []byte
}

// Draft is the form state. The zero value is an empty draft.
type Draft struct {
	Fields Fields
	Images []StagedImage
}

// AddImage stages one photo after sniffing its content type.
func (d *Draft) AddImage(data []byte) error {
	if len(d.Images) >= RequiredImages {
		return ErrTooManyImages
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return fmt.Errorf("%w: got %s", ErrNotImage, mt.String())
	}
	d.Images = append(d.Images, StagedImage{ContentType: mt.String(), Data: data})
	return nil
}

// RemoveImage drops the photo at index i, keeping the others in order.
func (d *Draft) RemoveImage(i int) error {
	if i < 0 || i >= len(d.Images) {
		return ErrNoSuchImage
	}
	d.Images = append(d.Images[:i:i], d.Images[i+1:]...)
	return nil
}

// Ready reports whether the draft can be submitted.
func (d *Draft) Ready() bool {
	return d.Fields.Complete() && len(d.Images) == RequiredImages
}

// Check returns why the draft cannot be submitted, or nil.
func (d *Draft) Check() error {
	if !d.Fields.Complete() {
		return fmt.Errorf("%w: please fill all fields", ErrIncomplete)
	}
	if len(d.Images) != RequiredImages {
		return fmt.Errorf("%w: please upload exactly %d images", ErrIncomplete, RequiredImages)
	}
	return nil
}

var whitespace = regexp.MustCompile(`\s+`)

// PartName is the upload filename of the i-th photo for name.
func PartName(name string, i int) string {
	return fmt.Sprintf("%s_%d.jpg", whitespace.ReplaceAllString(name, "_"), i)
}

// Payload builds the upload for the draft.
func (d *Draft) Payload() backend.Registration {
	reg := backend.Registration{
		Name:       d.Fields.Name,
		Department: d.Fields.Department,
		Email:      d.Fields.Email,
		Images:     make([]backend.Image, 0, len(d.Images)),
	}
	for i, img := range d.Images {
		reg.Images = append(reg.Images, backend.Image{
			Filename:    PartName(d.Fields.Name, i),
			ContentType: img.ContentType,
			Data:        img.Data,
		})
	}
	return reg
}

// Uploader posts a registration to the backend.
type Uploader interface {
	RegisterEmployee(ctx context.Context, reg backend.Registration) (*model.RegistrationResult, error)
}

// Workflow is the registration form shared by the kiosk's handlers.
type Workflow struct {
	uploader Uploader
	logger   *slog.Logger

	mu         sync.Mutex
	draft      Draft
	processing bool
	errMsg     string
	result     *model.RegistrationResult
}

// NewWorkflow creates an empty registration form.
func NewWorkflow(uploader Uploader, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{uploader: uploader, logger: logger}
}

// SetFields replaces the text inputs.
func (w *Workflow) SetFields(f Fields) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Fields = f
}

// AddImage stages a photo. Any previous error is cleared first.
func (w *Workflow) AddImage(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errMsg = ""
	if err := w.draft.AddImage(data); err != nil {
		w.errMsg = userMessage(err)
		return err
	}
	return nil
}

// RemoveImage drops a staged photo.
func (w *Workflow) RemoveImage(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.RemoveImage(i)
}

// Image returns a copy of the staged photo at i.
func (w *Workflow) Image(i int) (StagedImage, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= len(w.draft.Images) {
		return StagedImage{}, false
	}
	img := w.draft.Images[i]
	img.Data = append([]byte(nil), img.Data...)
	return img, true
}

// Reset empties the form.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft = Draft{}
	w.errMsg = ""
	w.result = nil
}

// Register uploads the draft. It returns ErrIncomplete without calling the
// backend unless every field is set and exactly three photos are staged.
// On success the form is cleared; on failure it is kept for correction.
func (w *Workflow) Register(ctx context.Context) (*model.RegistrationResult, error) {
	w.mu.Lock()
	if w.processing {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	if err := w.draft.Check(); err != nil {
		w.errMsg = userMessage(err)
		w.mu.Unlock()
		metrics.Registrations.WithLabelValues("incomplete").Inc()
		return nil, err
	}
	w.processing = true
	w.errMsg = ""
	w.result = nil
	payload := w.draft.Payload()
	w.mu.Unlock()

	res, err := w.uploader.RegisterEmployee(ctx, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.processing = false
	w.result = res
	if err != nil {
		metrics.Registrations.WithLabelValues("failed").Inc()
		w.errMsg = userMessage(err)
		w.logger.Warn("registration failed", slog.String("email", payload.Email), slog.Any("error", err))
		return res, err
	}
	metrics.Registrations.WithLabelValues("ok").Inc()
	w.draft = Draft{}
	w.logger.Info("identity registered", slog.String("email", payload.Email))
	return res, nil
}

// ImageInfo describes a staged photo without its bytes.
type ImageInfo struct {
	Index       int    `json:"index"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// View is a consistent read of the form.
type View struct {
	Fields     Fields                    `json:"fields"`
	Images     []ImageInfo               `json:"images"`
	Required   int                       `json:"required"`
	Ready      bool                      `json:"ready"`
	Processing bool                      `json:"processing"`
	Error      string                    `json:"error,omitempty"`
	Result     *model.RegistrationResult `json:"result,omitempty"`
}

// Snapshot returns the current form state.
func (w *Workflow) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		Fields:     w.draft.Fields,
		Images:     make([]ImageInfo, len(w.draft.Images)),
		Required:   RequiredImages,
		Ready:      w.draft.Ready() && !w.processing,
		Processing: w.processing,
		Error:      w.errMsg,
		Result:     w.result,
	}
	for i, img := range w.draft.Images {
		v.Images[i] = ImageInfo{Index: i, ContentType: img.ContentType, Size: len(img.Data)}
	}
	return v
}

func userMessage(err error) string {
	var msg string
	switch {
	case errors.Is(err, ErrIncomplete):
		msg = strings.TrimPrefix(err.Error(), ErrIncomplete.Error()+": ")
	case errors.Is(err, ErrNotImage):
		msg = ErrNotImage.Error()
	default:
		msg = err.Error()
	}
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
