package utils

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestFileHeader creates a mock multipart.FileHeader for testing
func createTestFileHeader(filename string, size int64, content []byte) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, _ := writer.CreatePart(h)
	part.Write(content)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, _ := reader.ReadForm(int64(len(content)) + 1024)

	if len(form.File["file"]) > 0 {
		fileHeader := form.File["file"][0]
		// Override size for testing purposes
		fileHeader.Size = size
		return fileHeader
	}

	return nil
}

func TestValidateMediaFile_Images(t *testing.T) {
	for _, name := range []string{"receipt.png", "receipt.jpg", "receipt.jpeg", "review.webp", "RECEIPT.PNG"} {
		t.Run(name, func(t *testing.T) {
			content := []byte("fake image content")
			fileHeader := createTestFileHeader(name, int64(len(content)), content)
			require.NotNil(t, fileHeader)

			kind, err := ValidateMediaFile(fileHeader)
			require.NoError(t, err)
			assert.Equal(t, MediaImage, kind)
		})
	}
}

func TestValidateMediaFile_Videos(t *testing.T) {
	for _, name := range []string{"proof.mp4", "proof.webm", "proof.mov"} {
		t.Run(name, func(t *testing.T) {
			content := []byte("fake video content")
			fileHeader := createTestFileHeader(name, 20*1024*1024, content)
			require.NotNil(t, fileHeader)

			kind, err := ValidateMediaFile(fileHeader)
			require.NoError(t, err, "Videos up to 50MB should be accepted")
			assert.Equal(t, MediaVideo, kind)
		})
	}
}

func TestValidateMediaFile_ImageTooLarge(t *testing.T) {
	content := []byte("fake png content")
	fileHeader := createTestFileHeader("large.png", 11*1024*1024, content)
	require.NotNil(t, fileHeader)

	_, err := ValidateMediaFile(fileHeader)
	require.Error(t, err)

	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok, "Error should be of type FileUploadError")
	assert.Equal(t, "FILE_TOO_LARGE", fileErr.Code)
	assert.Contains(t, fileErr.Message, "10 MB")
}

func TestValidateMediaFile_VideoTooLarge(t *testing.T) {
	content := []byte("fake mp4 content")
	fileHeader := createTestFileHeader("proof.mp4", 51*1024*1024, content)
	require.NotNil(t, fileHeader)

	_, err := ValidateMediaFile(fileHeader)
	require.Error(t, err)

	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok)
	assert.Equal(t, "FILE_TOO_LARGE", fileErr.Code)
	assert.Contains(t, fileErr.Message, "50 MB")
}

func TestValidateMediaFile_InvalidFormat(t *testing.T) {
	for _, name := range []string{"anim.gif", "doc.pdf", "testfile"} {
		t.Run(name, func(t *testing.T) {
			content := []byte("fake content")
			fileHeader := createTestFileHeader(name, int64(len(content)), content)
			require.NotNil(t, fileHeader)

			_, err := ValidateMediaFile(fileHeader)
			require.Error(t, err)

			fileErr, ok := err.(*FileUploadError)
			require.True(t, ok, "Error should be of type FileUploadError")
			assert.Equal(t, "INVALID_FILE_FORMAT", fileErr.Code)
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor(".JPG"))
	assert.Equal(t, "video/quicktime", ContentTypeFor(".mov"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor(".exe"))
}

func TestSaveUploadedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	content := []byte("receipt bytes")
	fileHeader := createTestFileHeader("Receipt.PNG", int64(len(content)), content)
	require.NotNil(t, fileHeader)

	first, err := SaveUploadedFile(fileHeader, dir)
	require.NoError(t, err)
	second, err := SaveUploadedFile(fileHeader, dir)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "Each upload should get a unique name")
	assert.True(t, strings.HasSuffix(first, ".png"))

	saved, err := os.ReadFile(filepath.Join(dir, first))
	require.NoError(t, err)
	assert.Equal(t, content, saved)
}

func TestMediaURL(t *testing.T) {
	assert.Equal(t, "", MediaURL(""))
	assert.Equal(t, "/api/v1/uploads/abc.png", MediaURL("abc.png"))
}

func TestFileUploadError_Error(t *testing.T) {
	err := &FileUploadError{
		Code:    "TEST_CODE",
		Message: "Test error message",
	}

	assert.Equal(t, "Test error message", err.Error())
}
