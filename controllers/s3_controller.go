package controllers

import (
	"net/http"

	"peerlearn_server/apperrors"
	"peerlearn_server/helpers"
	"peerlearn_server/services"
)

// S3Controller issues presigned URLs for profile pictures.
type S3Controller struct {
	MediaService *services.MediaService
}

// NewS3Controller initializes the S3 controller. A nil service disables the endpoints.
func NewS3Controller(media *services.MediaService) *S3Controller {
	return &S3Controller{MediaService: media}
}

type presignUploadRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

type presignReadRequest struct {
	Key string `json:"key"`
}

func (c *S3Controller) available(w http.ResponseWriter) bool {
	if c.MediaService == nil {
		helpers.WriteError(w, apperrors.Wrap(apperrors.CodeStorageUnavailable, "media storage is not configured", nil))
		return false
	}
	return true
}

// GeneratePresignedURL generates a presigned URL for S3 uploads
func (c *S3Controller) GeneratePresignedURL(w http.ResponseWriter, r *http.Request) {
	if !c.available(w) {
		return
	}
	var payload presignUploadRequest
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, err)
		return
	}

	url, fileName, err := c.MediaService.UploadURL(r.Context(), payload.FileName, payload.FileType)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url, "fileName": fileName})
}

// GetPresignedReadURL generates a presigned URL for reading S3 objects
func (c *S3Controller) GetPresignedReadURL(w http.ResponseWriter, r *http.Request) {
	if !c.available(w) {
		return
	}
	var payload presignReadRequest
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, err)
		return
	}

	url, err := c.MediaService.ReadURL(r.Context(), payload.Key)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}
