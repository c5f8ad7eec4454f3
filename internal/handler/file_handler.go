package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notebridge/notebridge-api/internal/service"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
	"github.com/notebridge/notebridge-api/pkg/response"
)

// FileHandler exposes profile picture and lesson image uploads.
type FileHandler struct {
	files *service.FileService
}

// NewFileHandler constructs a new FileHandler.
func NewFileHandler(files *service.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// UploadProfilePicture godoc
// @Summary Upload profile picture
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Success 200 {object} response.Envelope
// @Router /users/me/picture [post]
func (h *FileHandler) UploadProfilePicture(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filename, contentType, data, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	url, err := h.files.UploadProfilePicture(c.Request.Context(), claims.UserID, filename, contentType, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"profile_picture_url": url}, nil)
}

// DeleteProfilePicture godoc
// @Summary Remove profile picture
// @Tags Files
// @Produce json
// @Success 204 "No Content"
// @Router /users/me/picture [delete]
func (h *FileHandler) DeleteProfilePicture(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.files.DeleteProfilePicture(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadLessonImage godoc
// @Summary Upload lesson image
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Lesson ID"
// @Param file formData file true "Image"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /lessons/{id}/image [post]
func (h *FileHandler) UploadLessonImage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filename, contentType, data, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	url, err := h.files.UploadLessonImage(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), filename, contentType, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"image_url": url}, nil)
}

// DeleteLessonImage godoc
// @Summary Remove lesson image
// @Tags Files
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 204 "No Content"
// @Router /lessons/{id}/image [delete]
func (h *FileHandler) DeleteLessonImage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.files.DeleteLessonImage(c.Request.Context(), claims.UserID, claims.Role, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func readUpload(c *gin.Context) (filename, contentType string, data []byte, err error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", "", nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return "", "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	defer src.Close()

	data, err = io.ReadAll(src)
	if err != nil {
		return "", "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file")
	}
	return fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data, nil
}
