package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gestaozabele/galeria/internal/asset"
	"github.com/gestaozabele/galeria/internal/media"
)

const pictureField = "picture"

type imageResponse struct {
	*asset.View
	ThumbnailStatus string `json:"thumbnail_status"`
	ThumbnailError  string `json:"thumbnail_error,omitempty"`
}

type thumbnailResponse struct {
	Status string `json:"status"`
	Key    string `json:"key,omitempty"`
	Error  string `json:"error,omitempty"`
}

// UploadImage recebe multipart com o campo picture, grava e deriva a miniatura.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.Media.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		WriteError(w, r, http.StatusBadRequest, "VALIDATION", "formulário inválido", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	header, err := getFirstFile(r.MultipartForm, pictureField)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "VALIDATION", "campo picture obrigatório", nil)
		return
	}

	data, contentType, err := readMultipartFile(header, limit)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	if len(data) == 0 {
		WriteError(w, r, http.StatusBadRequest, "VALIDATION", "arquivo vazio", nil)
		return
	}

	result, err := h.images.Upload(r.Context(), asset.UploadInput{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, newImageResponse(result.View, result.Status))
}

// ListImages lista imagens com paginação por limit/offset.
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntQuery(r, "limit", asset.DefaultListLimit)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "VALIDATION", "limit inválido", nil)
		return
	}
	offset, err := parseIntQuery(r, "offset", 0)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "VALIDATION", "offset inválido", nil)
		return
	}

	views, err := h.images.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"items":  views,
		"limit":  limit,
		"offset": offset,
	})
}

// GetImage devolve a imagem com a URL resolvida (miniatura ou original).
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	view, err := h.images.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// RederiveImage dispara nova derivação explícita.
func (h *Handler) RederiveImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	status, err := h.images.Rederive(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := thumbnailResponse{Status: status.Kind.String(), Key: status.Key}
	if status.Kind == media.Failed {
		resp.Error = status.Reason
	}
	WriteJSON(w, http.StatusOK, resp)
}

func newImageResponse(view *asset.View, status media.Status) imageResponse {
	resp := imageResponse{View: view, ThumbnailStatus: status.Kind.String()}
	if status.Kind == media.Failed {
		resp.ThumbnailError = status.Reason
	}
	return resp
}

func getFirstFile(form *multipart.Form, field string) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, errors.New("arquivo ausente")
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, errors.New("arquivo ausente")
	}
	return files[0], nil
}

// readMultipartFile lê até limit bytes; arquivo maior é rejeitado.
func readMultipartFile(header *multipart.FileHeader, limit int64) ([]byte, string, error) {
	file, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("falha ao abrir arquivo: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, limit+1)); err != nil {
		return nil, "", fmt.Errorf("falha ao ler arquivo: %w", err)
	}
	if int64(buf.Len()) > limit {
		return nil, "", fmt.Errorf("arquivo excede %d bytes", limit)
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(buf.Bytes())
	}
	return buf.Bytes(), contentType, nil
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return uuid.Nil, errors.New("empty")
	}
	return uuid.Parse(value)
}

func parseIntQuery(r *http.Request, name string, def int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.New("inválido")
	}
	return n, nil
}
