package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumbarong/lumbarong-api/models"
	"github.com/lumbarong/lumbarong-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	require.Len(t, form.File["file"], 1)
	return form.File["file"][0]
}

func TestMediaService_UploadWithMockStorage(t *testing.T) {
	storage := NewMockStorage()
	media := NewMediaService(storage)

	uploaded, err := media.Upload(context.Background(), testFileHeader(t, "receipt.jpg", []byte("jpeg")))
	require.NoError(t, err)
	assert.Equal(t, "uploads/mock_receipt.jpg", uploaded.Key)
	assert.Equal(t, utils.MediaImage, uploaded.Kind)
	assert.Contains(t, uploaded.URL, "mock=true")
	assert.True(t, storage.FileExists(uploaded.Key))

	require.NoError(t, media.Delete(context.Background(), uploaded.Key))
	assert.False(t, storage.FileExists(uploaded.Key))
}

func TestMediaService_RejectsUnsupportedFiles(t *testing.T) {
	storage := NewMockStorage()
	media := NewMediaService(storage)

	_, err := media.Upload(context.Background(), testFileHeader(t, "notes.txt", []byte("hi")))
	require.Error(t, err)
	var uploadErr *utils.FileUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "INVALID_FILE_FORMAT", uploadErr.Code)
}

func TestMediaService_URL(t *testing.T) {
	storage := NewMockStorage()
	storage.Store("media/a.png", []byte("x"))
	media := NewMediaService(storage)

	url, err := media.URL(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, url)

	url, err = media.URL(context.Background(), "media/a.png")
	require.NoError(t, err)
	assert.Contains(t, url, "media/a.png")

	_, err = media.URL(context.Background(), "media/missing.png")
	assert.Error(t, err)
}

func TestLocalStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	storage := NewLocalStorage(dir)
	assert.Equal(t, dir, storage.Dir())

	key, err := storage.Put(context.Background(), testFileHeader(t, "proof.mp4", []byte("video")))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, key))

	url, err := storage.URL(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/uploads/"+key, url)

	require.NoError(t, storage.Delete(context.Background(), key))
	_, err = os.Stat(filepath.Join(dir, key))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, storage.Delete(context.Background(), key), "deleting twice is fine")
}

func TestMediaServiceGlobals(t *testing.T) {
	original := GetMediaService()
	defer SetMediaService(original)

	service := InitMediaService(NewMockStorage())
	assert.Same(t, service, GetMediaService())
}

func TestDBNotificationSink(t *testing.T) {
	db := setupTestDB(t)
	sink := NewDBNotificationSink(db)
	orderID := uint(12)

	require.NoError(t, sink.Notify(context.Background(), 3, &orderID, "Your order #12 is now Shipped."))
	require.NoError(t, sink.Notify(context.Background(), 3, nil, "Welcome"))

	var notifications []models.Notification
	require.NoError(t, db.Where("recipient_id = ?", 3).Order("id").Find(&notifications).Error)
	require.Len(t, notifications, 2)
	require.NotNil(t, notifications[0].OrderID)
	assert.Equal(t, orderID, *notifications[0].OrderID)
	assert.False(t, notifications[0].IsRead)
	assert.Nil(t, notifications[1].OrderID)
}
