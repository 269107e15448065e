package handler

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"parley/internal/domain/entity"
	"parley/internal/infrastructure/storage"
	"parley/pkg/errors"
	"parley/pkg/response"
)

// 25 MB, matching the largest attachment clients may send.
const maxUploadSize = 25 << 20

type UploadHandler struct {
	storageClient *storage.CloudStorageClient
}

func NewUploadHandler(storageClient *storage.CloudStorageClient) *UploadHandler {
	return &UploadHandler{
		storageClient: storageClient,
	}
}

// Upload stores a file and returns an attachment descriptor the client can
// embed in a later send call. Nothing is tied to a message yet.
func (h *UploadHandler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("A file field is required", err))
	}
	if fileHeader.Size > maxUploadSize {
		return response.Error(c, errors.BadRequest("File exceeds the 25 MB limit", nil))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to read uploaded file", err))
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	url, err := h.storageClient.UploadFile(c.Request().Context(), file, contentType)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to store file", err))
	}

	kind := entity.AttachmentKindFile
	if strings.HasPrefix(contentType, "image/") {
		kind = entity.AttachmentKindImage
	}

	return response.Created(c, entity.Attachment{
		ID:   uuid.New().String(),
		Kind: kind,
		Name: fileHeader.Filename,
		URL:  url,
		Size: fileHeader.Size,
	})
}
