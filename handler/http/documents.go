package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"legisbot/src/infrastructure/job"
	"legisbot/src/infrastructure/log"
	"legisbot/src/storage/minioctrl"
)

// UploadDocuments godoc
// @Summary Upload legislative PDFs for ingestion
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "PDF files"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat/upload-context [post]
func (h *Handler) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		sendError(c, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		sendError(c, http.StatusBadRequest, fmt.Errorf("no files uploaded"))
		return
	}

	objects := make([]job.IngestionObject, 0, len(files))
	for _, header := range files {
		if filepath.Ext(header.Filename) != ".pdf" {
			sendError(c, http.StatusBadRequest, fmt.Errorf("only PDF files are allowed: %s", header.Filename))
			return
		}

		file, err := header.Open()
		if err != nil {
			sendError(c, http.StatusInternalServerError, fmt.Errorf("failed to open upload: %w", err))
			return
		}

		fileBytes, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			sendError(c, http.StatusInternalServerError, fmt.Errorf("failed to read upload: %w", err))
			return
		}

		if count, err := h.documentService.CountByFilename(c.Request.Context(), header.Filename); err == nil && count > 0 {
			log.Info("document name already ingested, re-upload will duplicate fragments", "filename", header.Filename)
		}

		objectName := fmt.Sprintf("%s.pdf", uuid.New().String())
		if err := h.minioService.PutObject(c.Request.Context(), minioctrl.UploadsBucket, objectName, fileBytes, "application/pdf"); err != nil {
			sendError(c, http.StatusInternalServerError, fmt.Errorf("failed to store upload: %w", err))
			return
		}

		objects = append(objects, job.IngestionObject{
			Bucket:   minioctrl.UploadsBucket,
			Key:      objectName,
			Filename: header.Filename,
		})
	}

	payload, err := json.Marshal(job.IngestionPayload{
		UploaderID: currentUserID(c),
		Objects:    objects,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	created, err := h.jobService.EnqueueJob(c.Request.Context(), job.TaskTypeIngestion, payload)
	if err != nil {
		sendError(c, http.StatusInternalServerError, fmt.Errorf("failed to enqueue ingestion: %w", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":   created.ID,
		"accepted": len(objects),
	})
}

// ListDocuments godoc
// @Summary List ingested documents
// @Tags documents
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	limit := 10
	offset := 0

	if limitParam := c.Query("limit"); limitParam != "" {
		if _, err := fmt.Sscanf(limitParam, "%d", &limit); err != nil {
			sendError(c, http.StatusBadRequest, fmt.Errorf("invalid limit parameter"))
			return
		}
	}

	if offsetParam := c.Query("offset"); offsetParam != "" {
		if _, err := fmt.Sscanf(offsetParam, "%d", &offset); err != nil {
			sendError(c, http.StatusBadRequest, fmt.Errorf("invalid offset parameter"))
			return
		}
	}

	documents, err := h.documentService.List(c.Request.Context(), limit, offset)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": documents,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
		},
	})
}
