package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/docbase-tech/docbase/core"
	"github.com/docbase-tech/docbase/core/access"
	"github.com/docbase-tech/docbase/core/logger"
	"github.com/docbase-tech/docbase/store"
)

// maxUploadSize bounds a single file upload.
const maxUploadSize = 8 << 20

var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"pdf": true, "txt": true, "csv": true, "json": true, "zip": true,
}

func (b *Backend) uploadFileHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	if !key.HasWrite() {
		sendError(w, http.StatusForbidden, "API key does not have write permission")
		return
	}
	if b.blobs == nil {
		sendError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+4096)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		sendError(w, http.StatusBadRequest, "file size exceeds the maximum limit")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		sendError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		sendError(w, http.StatusBadRequest, "file size exceeds the maximum limit")
		return
	}
	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !allowedExtensions[extension] {
		sendError(w, http.StatusBadRequest, "file type not allowed")
		return
	}

	base := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	fileName := fmt.Sprintf("%s_%d.%s", base, time.Now().Unix(), extension)
	blobKey := fmt.Sprintf("%d/%s", key.ProjectID, fileName)

	size, err := b.blobs.Save(blobKey, file)
	if err != nil {
		internalError(w, r, 4901, err)
		return
	}

	record, err := b.store.CreateFile(r.Context(), store.File{
		ProjectID:  key.ProjectID,
		FileName:   fileName,
		FilePath:   blobKey,
		FileSize:   size,
		FileType:   header.Header.Get("Content-Type"),
		UploadedBy: key.UserID,
	})
	if err != nil {
		// do not leave an orphaned blob behind
		if deleteErr := b.blobs.Delete(blobKey); deleteErr != nil {
			logger.FromContext(r.Context()).WithError(deleteErr).Warnf("Warning 4902: cannot delete blob '%s'", blobKey)
		}
		internalError(w, r, 4903, err)
		return
	}

	b.record(r, &key.UserID, string(core.OperationUpload), "file", fmt.Sprintf("%d", record.ID), map[string]interface{}{"file_name": fileName, "file_size": size})
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "file uploaded successfully",
		"file":    record,
	})
}

func (b *Backend) filesHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	page, limit := pageParams(r, 100)

	files, total, err := b.store.Files(r.Context(), key.ProjectID, page, limit)
	if err != nil {
		internalError(w, r, 4904, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"files":      files,
		"pagination": paginate(total, page, limit),
	})
}

func (b *Backend) fileHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	fileID, ok := pathID(r, "file")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	file, found, err := b.store.File(r.Context(), key.ProjectID, fileID)
	if err != nil {
		internalError(w, r, 4905, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "file not found or access denied")
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"file": file,
	})
}

func (b *Backend) downloadFileHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	fileID, ok := pathID(r, "file")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid file id")
		return
	}
	if b.blobs == nil {
		sendError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}

	file, found, err := b.store.File(r.Context(), key.ProjectID, fileID)
	if err != nil {
		internalError(w, r, 4906, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "file not found or access denied")
		return
	}

	reader, err := b.blobs.Open(file.FilePath)
	if err != nil {
		sendError(w, http.StatusNotFound, "file not found on server")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", file.FileType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.FileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", file.FileSize))
	if _, err := io.Copy(w, reader); err != nil {
		logger.FromContext(r.Context()).WithError(err).Warnf("Warning 4907: download of '%s' aborted", file.FilePath)
	}

	b.record(r, &key.UserID, string(core.OperationDownload), "file", fmt.Sprintf("%d", fileID), nil)
}

func (b *Backend) deleteFileHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	if !key.HasWrite() {
		sendError(w, http.StatusForbidden, "API key does not have write permission")
		return
	}
	fileID, ok := pathID(r, "file")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	file, found, err := b.store.File(r.Context(), key.ProjectID, fileID)
	if err != nil {
		internalError(w, r, 4908, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "file not found or access denied")
		return
	}

	// the row is authoritative, a failed blob removal only leaves garbage
	if b.blobs != nil {
		if err := b.blobs.Delete(file.FilePath); err != nil {
			logger.FromContext(r.Context()).WithError(err).Warnf("Warning 4909: cannot delete blob '%s'", file.FilePath)
		}
	}
	if _, err := b.store.DeleteFile(r.Context(), key.ProjectID, fileID); err != nil {
		internalError(w, r, 4910, err)
		return
	}

	b.record(r, &key.UserID, string(core.OperationDelete), "file", fmt.Sprintf("%d", fileID), nil)
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "file deleted successfully",
	})
}
