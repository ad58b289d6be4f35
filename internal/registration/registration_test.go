package registration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facedesk/internal/backend"
	"facedesk/internal/model"
	"facedesk/internal/testutil"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
)

type fakeUploader struct {
	calls int
	got   backend.Registration
	res   *model.RegistrationResult
	err   error
}

func (f *fakeUploader) RegisterEmployee(_ context.Context, reg backend.Registration) (*model.RegistrationResult, error) {
	f.calls++
	f.got = reg
	return f.res, f.err
}

func TestAddImageLimitsAndSniffing(t *testing.T) {
	var d Draft
	require.NoError(t, d.AddImage(pngBytes))
	require.NoError(t, d.AddImage(jpegBytes))

	err := d.AddImage([]byte("hello, plain text"))
	require.ErrorIs(t, err, ErrNotImage)
	assert.Len(t, d.Images, 2)

	require.NoError(t, d.AddImage(pngBytes))
	assert.ErrorIs(t, d.AddImage(pngBytes), ErrTooManyImages)
	assert.Len(t, d.Images, 3)

	assert.Equal(t, "image/png", d.Images[0].ContentType)
	assert.Equal(t, "image/jpeg", d.Images[1].ContentType)
}

func TestRemoveImageKeepsOrder(t *testing.T) {
	var d Draft
	require.NoError(t, d.AddImage(pngBytes))
	require.NoError(t, d.AddImage(jpegBytes))
	require.NoError(t, d.AddImage(pngBytes))

	require.NoError(t, d.RemoveImage(0))
	require.Len(t, d.Images, 2)
	assert.Equal(t, "image/jpeg", d.Images[0].ContentType)

	assert.ErrorIs(t, d.RemoveImage(5), ErrNoSuchImage)
	assert.ErrorIs(t, d.RemoveImage(-1), ErrNoSuchImage)
}

func TestPartName(t *testing.T) {
	assert.Equal(t, "Ada_Lovelace_0.jpg", PartName("Ada Lovelace", 0))
	assert.Equal(t, "Ada_King_Lovelace_2.jpg", PartName("Ada \t King  Lovelace", 2))
	assert.Equal(t, "Turing_1.jpg", PartName("Turing", 1))
}

func TestRegisterFailsFastUnlessComplete(t *testing.T) {
	full := Fields{Name: "Ada Lovelace", Department: "R&D", Email: "ada@example.com"}

	for mask := 0; mask < 8; mask++ {
		for count := 0; count <= 4; count++ {
			f := Fields{}
			if mask&1 != 0 {
				f.Name = full.Name
			}
			if mask&2 != 0 {
				f.Department = full.Department
			}
			if mask&4 != 0 {
				f.Email = full.Email
			}
			up := &fakeUploader{res: &model.RegistrationResult{Success: true}}
			w := NewWorkflow(up, testutil.NopLogger())
			w.SetFields(f)
			for i := 0; i < count; i++ {
				w.draft.Images = append(w.draft.Images, StagedImage{ContentType: "image/png", Data: pngBytes})
			}

			_, err := w.Register(context.Background())
			name := fmt.Sprintf("fields=%03b images=%d", mask, count)
			if mask == 7 && count == 3 {
				assert.NoError(t, err, name)
				assert.Equal(t, 1, up.calls, name)
				continue
			}
			assert.ErrorIs(t, err, ErrIncomplete, name)
			assert.Zero(t, up.calls, name)
			assert.NotEmpty(t, w.Snapshot().Error, name)
		}
	}
}

func TestRegisterSuccessResetsForm(t *testing.T) {
	up := &fakeUploader{res: &model.RegistrationResult{
		Success:  true,
		Employee: &model.Identity{ID: "9", Name: "Ada Lovelace"},
		Message:  "Employee registered successfully",
	}}
	w := NewWorkflow(up, testutil.NopLogger())
	w.SetFields(Fields{Name: "Ada Lovelace", Department: "R&D", Email: "ada@example.com"})
	for i := 0; i < 3; i++ {
		require.NoError(t, w.AddImage(pngBytes))
	}
	assert.True(t, w.Snapshot().Ready)

	res, err := w.Register(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, up.got.Images, 3)
	assert.Equal(t, "Ada_Lovelace_1.jpg", up.got.Images[1].Filename)
	assert.Equal(t, "ada@example.com", up.got.Email)

	v := w.Snapshot()
	assert.Equal(t, Fields{}, v.Fields)
	assert.Empty(t, v.Images)
	assert.Empty(t, v.Error)
	require.NotNil(t, v.Result)
	assert.Equal(t, "Employee registered successfully", v.Result.Message)
}

func TestRegisterFailureRetainsDraft(t *testing.T) {
	up := &fakeUploader{err: fmt.Errorf("%w: duplicate email", backend.ErrRegistrationFailed)}
	w := NewWorkflow(up, testutil.NopLogger())
	w.SetFields(Fields{Name: "Ada", Department: "R&D", Email: "ada@example.com"})
	for i := 0; i < 3; i++ {
		require.NoError(t, w.AddImage(jpegBytes))
	}

	_, err := w.Register(context.Background())
	require.ErrorIs(t, err, backend.ErrRegistrationFailed)

	v := w.Snapshot()
	assert.Equal(t, "Ada", v.Fields.Name)
	assert.Len(t, v.Images, 3)
	assert.Equal(t, "Registration failed: duplicate email", v.Error)
	assert.True(t, v.Ready)
}

func TestAddImageSurfacesMessages(t *testing.T) {
	w := NewWorkflow(&fakeUploader{}, testutil.NopLogger())
	assert.ErrorIs(t, w.AddImage([]byte("%PDF-1.4")), ErrNotImage)
	assert.Equal(t, "Please select only image files", w.Snapshot().Error)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.AddImage(pngBytes))
	}
	assert.Empty(t, w.Snapshot().Error)
	assert.True(t, errors.Is(w.AddImage(pngBytes), ErrTooManyImages))
	assert.Equal(t, "You can only upload 3 images", w.Snapshot().Error)

	img, ok := w.Image(2)
	require.True(t, ok)
	assert.Equal(t, pngBytes, img.Data)
	_, ok = w.Image(3)
	assert.False(t, ok)
}
