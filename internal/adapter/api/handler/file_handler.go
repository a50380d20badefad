package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"servisku/internal/infrastructure/storage"
	"servisku/pkg/errors"
	"servisku/pkg/response"
)

const maxUploadBytes = 5 << 20 // 5 MB

type FileHandler struct {
	storageClient *storage.CloudStorageClient
}

func NewFileHandler(storageClient *storage.CloudStorageClient) *FileHandler {
	return &FileHandler{
		storageClient: storageClient,
	}
}

// UploadFile stores an image and returns its URL. Media messages carry
// only the returned URL; the chat core never stores raw bytes.
func (h *FileHandler) UploadFile(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.Validation("File is required", err))
	}

	if fileHeader.Size > maxUploadBytes {
		return response.Error(c, errors.Validation("File exceeds the 5 MB limit", nil))
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return response.Error(c, errors.Validation("Only image uploads are supported", nil))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to open uploaded file", err))
	}
	defer src.Close()

	url, err := h.storageClient.UploadFile(c.Request().Context(), src, contentType, "chat-media")
	if err != nil {
		return response.Error(c, errors.Internal("Failed to store file", err))
	}

	return response.Created(c, map[string]string{"url": url})
}
