package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/service"
	"github.com/noah-isme/grievance-api/pkg/config"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
	"github.com/noah-isme/grievance-api/pkg/storage"
)

// GrievanceHandler serves the student-facing grievance endpoints.
type GrievanceHandler struct {
	service *service.GrievanceService
	uploads *storage.LocalStorage
	cfg     config.UploadsConfig
}

// NewGrievanceHandler creates a new handler.
func NewGrievanceHandler(svc *service.GrievanceService, uploads *storage.LocalStorage, cfg config.UploadsConfig) *GrievanceHandler {
	return &GrievanceHandler{service: svc, uploads: uploads, cfg: cfg}
}

// Submit godoc
// @Summary File a new grievance
// @Description Multipart form with category, description and an optional attachment
// @Tags Grievances
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param category formData string true "Category"
// @Param description formData string true "Description"
// @Param attachment formData file false "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grievances [post]
func (h *GrievanceHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SubmitGrievanceRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "category and description are required"))
		return
	}

	var attachmentPath *string
	if file, err := c.FormFile("attachment"); err == nil && file != nil {
		stored, err := h.storeAttachment(file)
		if err != nil {
			response.Error(c, err)
			return
		}
		attachmentPath = stored
	}

	g, err := h.service.Submit(c.Request.Context(), claims.UserID, req, attachmentPath)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"message": "Grievance submitted successfully", "id": g.ID})
}

func (h *GrievanceHandler) storeAttachment(file *multipart.FileHeader) (*string, error) {
	if h.uploads == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attachments are not enabled")
	}
	if h.cfg.MaxFileSizeBytes > 0 && file.Size > h.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attachment exceeds the maximum allowed size")
	}
	if len(h.cfg.AllowedMIMEs) > 0 {
		contentType := file.Header.Get("Content-Type")
		allowed := false
		for _, mime := range h.cfg.AllowedMIMEs {
			if mime == contentType {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, appErrors.Clone(appErrors.ErrValidation, "attachment type is not allowed")
		}
	}

	src, err := file.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attachment")
	}
	defer src.Close() //nolint:errcheck

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), uuid.NewString()[:8], filepath.Ext(file.Filename))
	if _, err := h.uploads.SaveStream(name, src); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}
	path := "/uploads/" + name
	return &path, nil
}

// ListMine godoc
// @Summary List the caller's grievances
// @Tags Grievances
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grievances/my [get]
func (h *GrievanceHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grievances, err := h.service.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grievances)
}

// History godoc
// @Summary View a grievance's status history
// @Description Students may only view history for grievances they own
// @Tags Grievances
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/history/{id} [get]
func (h *GrievanceHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	history, err := h.service.GetHistory(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, history)
}
