package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/example/beezap/internal/common"
	"github.com/example/beezap/internal/delivery"
	"github.com/example/beezap/internal/whatsapp"
)

var errBadDestination = errors.New(`"destination" must be a relative path inside the upload directory`)

func (h *Handler) sendFile(w http.ResponseWriter, r *http.Request) {
	const route = "file"
	ctx, span := h.tracer.Start(r.Context(), "send-file")
	defer span.End()
	defer observe(route, time.Now())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.respondErr(ctx, w, route, http.StatusBadRequest, "invalid multipart body", "", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	number := r.FormValue("number")
	file, header, err := r.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		h.respondErr(ctx, w, route, http.StatusBadRequest, "invalid file field", "", err)
		return
	}
	if number == "" || file == nil {
		h.respondErr(ctx, w, route, http.StatusBadRequest, `Parameters "number" and "file" are required.`, "", nil)
		return
	}
	defer file.Close()

	dir, err := h.destinationDir(r.FormValue("destination"))
	if err != nil {
		h.respondErr(ctx, w, route, http.StatusBadRequest, err.Error(), "", err)
		return
	}
	m, ok := h.messenger(ctx, w, route)
	if !ok {
		return
	}

	name := uploadName(header.Filename)
	path, err := storeUpload(dir, name, file)
	if err != nil {
		h.respondErr(ctx, w, route, http.StatusInternalServerError, "Error storing file", "", err)
		return
	}
	defer h.removeUpload(ctx, path)

	data, err := os.ReadFile(path)
	if err != nil {
		h.respondErr(ctx, w, route, http.StatusInternalServerError, "Error reading stored file", "", err)
		return
	}
	media := whatsapp.Media{Data: data, MimeType: mimetype.Detect(data).String(), FileName: name}

	chat := whatsapp.ResolveChatID(number)
	err = m.SendMedia(ctx, chat, media, r.FormValue("caption"))
	h.record(ctx, chat, delivery.KindFile, "", err)
	if err != nil {
		h.respondErr(ctx, w, route, http.StatusInternalServerError, "Error sending file", "", err)
		return
	}

	common.WithContext(ctx, h.logger).Info().Str("number", number).Str("file", name).Msg("file sent")
	h.respondJSON(w, route, http.StatusOK, map[string]string{"message": "File sent successfully"})
}

// destinationDir resolves the optional per-request sub-directory. It may not
// escape the upload root.
func (h *Handler) destinationDir(destination string) (string, error) {
	dir := h.uploadDir
	if destination != "" {
		if !filepath.IsLocal(destination) {
			return "", errBadDestination
		}
		dir = filepath.Join(dir, destination)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	return dir, nil
}

func uploadName(original string) string {
	name := filepath.Base(filepath.Clean("/" + original))
	if name == "/" || name == "." || name == "" {
		return "upload"
	}
	return name
}

// storeUpload writes src under a unique name so concurrent uploads of the
// same file name do not clobber each other.
func storeUpload(dir, name string, src io.Reader) (string, error) {
	path := filepath.Join(dir, uuid.NewString()+"-"+name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (h *Handler) removeUpload(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		common.WithContext(ctx, h.logger).Warn().Err(err).Str("path", path).Msg("failed to remove upload")
	}
}
