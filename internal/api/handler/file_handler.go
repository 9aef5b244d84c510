package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/upload-gateway/internal/api/metrics"
	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

const uploadField = "file"

// FileHandler handles upload, listing, download and deletion of files.
// Routes are mounted behind the Auth and RBAC middleware.
type FileHandler struct {
	service ports.FileService
}

func NewFileHandler(service ports.FileService) *FileHandler {
	return &FileHandler{service: service}
}

type uploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type deleteResponse struct {
	Message string `json:"message"`
}

// Upload handles POST /upload with a single multipart file field "file".
//
// @Summary      Upload a file
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string  false  "Idempotency key to prevent duplicate uploads"
// @Param        file             formData  file    true   "File to upload"
// @Success      201              {object}  uploadResponse
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      413              {object}  errorResponse
// @Failure      500              {object}  errorResponse
// @Router       /upload [post]
func (h *FileHandler) Upload(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile(uploadField)
	if err != nil {
		return formFileError(err)
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload")
	}
	defer src.Close()

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stored, err := h.service.Upload(c.Request().Context(), ports.UploadInput{
		Object: domain.Object{
			Name:        fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Body:        src,
			UploadedBy:  identity.Username,
		},
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("upload", "error").Inc()
		return err
	}

	metrics.FileOperationsTotal.WithLabelValues("upload", "ok").Inc()
	metrics.UploadSizeBytes.Observe(float64(stored.Size))
	return c.JSON(http.StatusCreated, uploadResponse{ID: stored.ID, URL: stored.URL})
}

// List handles GET /files, optionally filtered by ?prefix=.
//
// @Summary      List stored files
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        prefix  query     string  false  "Only ids starting with prefix"
// @Success      200     {array}   domain.StoredObject
// @Failure      401     {object}  errorResponse
// @Failure      500     {object}  errorResponse
// @Router       /files [get]
func (h *FileHandler) List(c echo.Context) error {
	objects, err := h.service.List(c.Request().Context(), c.QueryParam("prefix"))
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("list", "error").Inc()
		return err
	}
	if objects == nil {
		objects = []domain.StoredObject{}
	}

	metrics.FileOperationsTotal.WithLabelValues("list", "ok").Inc()
	return c.JSON(http.StatusOK, objects)
}

// Download handles GET /files/:id and streams the stored bytes.
//
// @Summary      Download a file
// @Tags         files
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        id   path      string  true  "File id"
// @Success      200
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /files/{id} [get]
func (h *FileHandler) Download(c echo.Context) error {
	rc, obj, err := h.service.Open(c.Request().Context(), c.Param("id"))
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("download", result(err)).Inc()
		return err
	}
	defer rc.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := obj.Name
	if name == "" {
		name = obj.ID
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if obj.Size > 0 {
		c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	}

	metrics.FileOperationsTotal.WithLabelValues("download", "ok").Inc()
	return c.Stream(http.StatusOK, contentType, rc)
}

// Delete handles DELETE /files/:id. Admin only.
//
// @Summary      Delete a file
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "File id"
// @Success      200  {object}  deleteResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /files/{id} [delete]
func (h *FileHandler) Delete(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), c.Param("id"), identity.Username); err != nil {
		metrics.FileOperationsTotal.WithLabelValues("delete", result(err)).Inc()
		return err
	}

	metrics.FileOperationsTotal.WithLabelValues("delete", "ok").Inc()
	return c.JSON(http.StatusOK, deleteResponse{Message: "File deleted successfully"})
}

// formFileError keeps body-limit errors raised while the multipart body is
// read; only a missing file field or an empty body count as "no file".
func formFileError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, io.EOF):
		return domain.ErrEmptyObject
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body")
	}
}

func result(err error) string {
	if errors.Is(err, domain.ErrObjectNotFound) {
		return "not_found"
	}
	return "error"
}
