package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var allowedAssetExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".svg":  true,
	".webp": true,
}

// handleUploadAsset stores one branding asset (logo, banner) under the
// assets directory. Uploaded names are never trusted; files are stored
// under a generated name with the validated extension.
func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_file", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(filepath.Base(header.Filename)))
	if !allowedAssetExts[ext] {
		respondError(w, http.StatusBadRequest, "unsupported_type", fmt.Sprintf("extension %q is not allowed", ext))
		return
	}

	if err := os.MkdirAll(s.cfg.AssetsDir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.cfg.AssetsDir, name))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"filename": name,
		"url":      "/assets/" + name,
	})
}
