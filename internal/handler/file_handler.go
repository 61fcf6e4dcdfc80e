package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fmdrive/internal/auth"
	"fmdrive/internal/domain"
	"fmdrive/internal/service"
)

// maxUploadMemory — порог буферизации multipart-формы в памяти
const maxUploadMemory = 32 << 20

type FileHandler struct {
	verifier          *auth.Verifier
	fileService       *service.FileService
	permissionService *service.PermissionService
}

func NewFileHandler(verifier *auth.Verifier, fileService *service.FileService, permissionService *service.PermissionService) *FileHandler {
	return &FileHandler{
		verifier:          verifier,
		fileService:       fileService,
		permissionService: permissionService,
	}
}

// UploadFiles принимает multipart-форму с файлами. Поле folder_id
// задает целевую папку; поля paths (по одному на файл) включают
// режим загрузки с относительными путями.
func (h *FileHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	var folderID *int64
	if v := r.FormValue("folder_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid folder ID", http.StatusBadRequest)
			return
		}
		folderID = &id
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		http.Error(w, "No files provided", http.StatusBadRequest)
		return
	}

	paths := r.MultipartForm.Value["paths"]
	withPaths := len(paths) == len(fileHeaders)

	uploads := make([]domain.FileUpload, 0, len(fileHeaders))
	for i, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open %s", fh.Filename), http.StatusBadRequest)
			return
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read %s", fh.Filename), http.StatusBadRequest)
			return
		}

		upload := domain.FileUpload{
			Name:     fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Size:     int64(len(data)),
			Data:     data,
		}
		if withPaths {
			upload.RelativePath = paths[i]
		}
		uploads = append(uploads, upload)
	}

	var files []*domain.File
	if withPaths {
		files, err = h.fileService.UploadWithPaths(r.Context(), user.ID, folderID, uploads)
	} else {
		files, err = h.fileService.Upload(r.Context(), user.ID, folderID, uploads)
	}
	if err != nil {
		writeError(w, err, "Failed to upload files")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"files": files})
}

// DownloadFile отдает содержимое файла. Помимо владельца скачивать
// может пользователь с правом download.
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, fileUUID.String(), domain.ResourceTypeFile, domain.ActionDownload) {
		return
	}

	file, obj, err := h.fileService.Download(r.Context(), fileUUID)
	if err != nil {
		writeError(w, err, "Failed to download file")
		return
	}
	defer obj.Close()

	contentType := obj.ContentType()
	if contentType == "" {
		contentType = file.MIMEType
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	if obj.ContentLength() > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength(), 10))
	}

	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("Error streaming file %s: %v", fileUUID, err)
	}
}

func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, fileUUID.String(), domain.ResourceTypeFile, domain.ActionRead) {
		return
	}

	file, err := h.fileService.GetFile(r.Context(), fileUUID)
	if err != nil {
		writeError(w, err, "Failed to get file")
		return
	}

	writeJSON(w, http.StatusOK, file)
}

type renameFileRequest struct {
	Name string `json:"name"`
}

func (h *FileHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, fileUUID.String(), domain.ResourceTypeFile, domain.ActionRead) {
		return
	}

	var req renameFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.RenameFile(r.Context(), fileUUID, req.Name)
	if err != nil {
		writeError(w, err, "Failed to rename file")
		return
	}

	writeJSON(w, http.StatusOK, file)
}

type moveFileRequest struct {
	NewFolderID *int64 `json:"new_folder_id,omitempty"`
}

func (h *FileHandler) MoveFile(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, fileUUID.String(), domain.ResourceTypeFile, domain.ActionRead) {
		return
	}

	var req moveFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.MoveFile(r.Context(), fileUUID, req.NewFolderID)
	if err != nil {
		writeError(w, err, "Failed to move file")
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, fileUUID.String(), domain.ResourceTypeFile, domain.ActionRead) {
		return
	}

	if err := h.fileService.DeleteFile(r.Context(), fileUUID); err != nil {
		writeError(w, err, "Failed to delete file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
