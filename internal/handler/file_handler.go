package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"filedesk/internal/auth"
	"filedesk/internal/domain"
	"filedesk/internal/service"
	"filedesk/internal/storage"
)

type FileHandler struct {
	fileService  *service.FileService
	taskService  *service.TaskService
	batchService *service.BatchService
	logger       *zap.Logger
}

func NewFileHandler(
	fileService *service.FileService,
	taskService *service.TaskService,
	batchService *service.BatchService,
	logger *zap.Logger,
) *FileHandler {
	return &FileHandler{
		fileService:  fileService,
		taskService:  taskService,
		batchService: batchService,
		logger:       logger,
	}
}

// List отдаёт содержимое папки: записи из базы, синтезированные
// каталоги и автоматически зарегистрированные файлы.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	folder := r.URL.Query().Get("path")
	if folder == "" {
		folder = "/"
	}

	entries, err := h.fileService.List(r.Context(), user, folder, time.Now().UTC())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Upload принимает multipart-форму: file, folder, overwrite и
// необязательные поля назначения.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	// Тело ограничено чуть больше лимита содержимого, чтобы перелив
	// диагностировался сервисом, а не обрывом соединения.
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, h.logger, domain.ErrPayloadTooLarge)
			return
		}
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	folder := r.FormValue("folder")
	if folder == "" {
		folder = "/"
	}
	overwrite := r.FormValue("overwrite") == "true"

	rec, err := h.fileService.Upload(r.Context(), user, folder, header.Filename, file, overwrite)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Назначение в той же форме — необязательное.
	if assigneeStr := r.FormValue("assigned_to_id"); assigneeStr != "" {
		assigneeID, err := strconv.ParseInt(assigneeStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid assigned_to_id", http.StatusBadRequest)
			return
		}

		var instruction *string
		if v := r.FormValue("instruction"); v != "" {
			instruction = &v
		}
		var dueDate *time.Time
		if v := r.FormValue("due_date"); v != "" {
			t, err := parseDate(v)
			if err != nil {
				http.Error(w, "Invalid due_date", http.StatusBadRequest)
				return
			}
			dueDate = &t
		}

		rec, err = h.taskService.Assign(r.Context(), user, rec.ID, assigneeID, instruction, dueDate)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, rec)
}

// Download отдаёт содержимое файла как вложение.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	rec, rc, size, err := h.fileService.Download(r.Context(), user, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer rc.Close()

	serveContent(w, rec.Filename, size, rc, true)
}

// DownloadByPath отдаёт файл по адресу path=/Папка/имя.pdf.
func (h *FileHandler) DownloadByPath(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	p := r.URL.Query().Get("path")
	if p == "" {
		http.Error(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	folder, filename := splitFilePath(p)
	rc, size, err := h.fileService.DownloadByPath(r.Context(), user, folder, filename)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer rc.Close()

	serveContent(w, filename, size, rc, true)
}

// Preview отдаёт содержимое для просмотра в браузере, без вложения.
func (h *FileHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	rec, rc, size, err := h.fileService.Open(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer rc.Close()

	serveContent(w, rec.Filename, size, rc, false)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	if err := h.fileService.Delete(r.Context(), user, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *FileHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	entry, err := h.fileService.Details(r.Context(), id, time.Now().UTC())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type renameRequest struct {
	NewName string `json:"new_name"`
}

func (h *FileHandler) Rename(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewName == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.fileService.Rename(r.Context(), user, id, req.NewName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type moveRequest struct {
	Destination string `json:"destination"`
}

func (h *FileHandler) Move(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.fileService.Move(r.Context(), user, id, req.Destination)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Search — расширенный поиск по метаданным.
func (h *FileHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	filter, err := parseSearchFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := h.fileService.Search(r.Context(), user, filter, time.Now().UTC())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *FileHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.taskService.SetStatus(r.Context(), user, id, req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type instructionRequest struct {
	Instruction string `json:"instruction"`
}

func (h *FileHandler) SetInstruction(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	var req instructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.taskService.SetInstruction(r.Context(), user, id, req.Instruction)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type assignRequest struct {
	AssignedToID int64   `json:"assigned_to_id"`
	Instruction  *string `json:"instruction,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
}

func (h *FileHandler) Assign(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssignedToID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		t, err := parseDate(*req.DueDate)
		if err != nil {
			http.Error(w, "Invalid due_date", http.StatusBadRequest)
			return
		}
		dueDate = &t
	}

	rec, err := h.taskService.Assign(r.Context(), user, id, req.AssignedToID, req.Instruction, dueDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Assigned — задачи текущего пользователя.
func (h *FileHandler) Assigned(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	entries, err := h.taskService.AssignedTo(r.Context(), user.ID, time.Now().UTC())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// AllAssigned — все назначенные файлы (обзор администратора).
func (h *FileHandler) AllAssigned(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	entries, err := h.taskService.AllAssigned(r.Context(), user, time.Now().UTC())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *FileHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	versions, err := h.fileService.Versions(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *FileHandler) DownloadVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}
	versionID, err := pathID(r, "versionID")
	if err != nil {
		http.Error(w, "Invalid version id", http.StatusBadRequest)
		return
	}

	v, rc, err := h.fileService.DownloadVersion(r.Context(), id, versionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer rc.Close()

	serveContent(w, v.Filename, v.Size, rc, true)
}

func (h *FileHandler) Restore(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid file id", http.StatusBadRequest)
		return
	}
	versionID, err := pathID(r, "versionID")
	if err != nil {
		http.Error(w, "Invalid version id", http.StatusBadRequest)
		return
	}

	rec, err := h.fileService.Restore(r.Context(), user, id, versionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type createDirRequest struct {
	Path string `json:"path"`
}

func (h *FileHandler) CreateDir(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req createDirRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.fileService.CreateDirectory(r.Context(), user, req.Path); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "path": storage.NormalizeFolder(req.Path)})
}

func (h *FileHandler) DeleteDir(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	dirPath := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(dirPath); err == nil {
		dirPath = unescaped
	}
	recursive := r.URL.Query().Get("recursive") == "true"

	if err := h.fileService.DeleteDirectory(r.Context(), user, dirPath, recursive); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// DownloadDir стримит каталог одним zip-архивом.
func (h *FileHandler) DownloadDir(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	dir := r.URL.Query().Get("path")
	if dir == "" {
		http.Error(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	name := path.Base(storage.NormalizeFolder(dir))
	if name == "/" || name == "." {
		name = "archive"
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))

	if err := h.batchService.DownloadDirZip(r.Context(), user, dir, w); err != nil {
		// Заголовки могли уже уйти; статус менять поздно.
		h.logger.Error("directory archive failed", zap.String("dir", dir), zap.Error(err))
	}
}

type batchIDsRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *FileHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req batchIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.batchService.Delete(r.Context(), user, req.IDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *FileHandler) BatchDownload(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req batchIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="files.zip"`)

	if err := h.batchService.DownloadZip(r.Context(), user, req.IDs, w); err != nil {
		h.logger.Error("batch archive failed", zap.Error(err))
	}
}

type batchAssignRequest struct {
	IDs          []int64 `json:"ids"`
	AssignedToID int64   `json:"assigned_to_id"`
	Instruction  *string `json:"instruction,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
}

func (h *FileHandler) BatchAssign(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req batchAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssignedToID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		t, err := parseDate(*req.DueDate)
		if err != nil {
			http.Error(w, "Invalid due_date", http.StatusBadRequest)
			return
		}
		dueDate = &t
	}

	result, err := h.batchService.Assign(r.Context(), user, req.IDs, req.AssignedToID, req.Instruction, dueDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchMoveRequest struct {
	IDs         []int64 `json:"ids"`
	Destination string  `json:"destination"`
}

func (h *FileHandler) BatchMove(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req batchMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.batchService.Move(r.Context(), user, req.IDs, req.Destination)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Sync регистрирует файлы, найденные на диске без записей в базе.
func (h *FileHandler) Sync(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	registered, err := h.fileService.Sync(r.Context(), user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"registered": registered})
}

// Вспомогательные разборы запроса.

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// splitFilePath делит "/Папка/имя.pdf" на папку и имя файла.
func splitFilePath(p string) (folder, filename string) {
	p = storage.NormalizeFolder(p)
	idx := strings.LastIndex(p, "/")
	folder = p[:idx]
	if folder == "" {
		folder = "/"
	}
	return folder, p[idx+1:]
}

// parseDate принимает RFC3339 и короткую форму YYYY-MM-DD.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func parseSearchFilter(q url.Values) (domain.SearchFilter, error) {
	filter := domain.SearchFilter{
		Query:    q.Get("query"),
		Folder:   q.Get("folder"),
		FileType: q.Get("file_type"),
		Status:   q.Get("status"),
	}

	if v := q.Get("date_from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid date_from")
		}
		filter.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid date_to")
		}
		filter.DateTo = &t
	}
	if v := q.Get("uploader_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid uploader_id")
		}
		filter.UploaderID = &id
	}
	if v := q.Get("assigned_to_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid assigned_to_id")
		}
		filter.AssignedToID = &id
	}
	if v := q.Get("has_due_date"); v != "" {
		has := v == "true"
		filter.HasDueDate = &has
	}
	filter.OverdueOnly = q.Get("overdue_only") == "true"

	if v := q.Get("skip"); v != "" {
		filter.Skip, _ = strconv.Atoi(v)
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	return filter, nil
}

// serveContent выставляет заголовки и стримит тело файла.
func serveContent(w http.ResponseWriter, filename string, size int64, body io.Reader, attachment bool) {
	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}

	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))

	// Обрыв соединения клиентом здесь не ошибка сервера.
	_, _ = io.Copy(w, body)
}
