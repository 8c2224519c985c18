package webapp

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"survey-manager/internal/domain/model"
	"survey-manager/internal/platform/hash"
	"survey-manager/internal/services/importparse"
	"survey-manager/internal/services/surveyreport"
)

// 上传限制：blob 进 SQLite，单文件放开到 64MB 已经足够覆盖现场照片和仪器导出。
const maxUploadBytes = 64 << 20

func (s *Server) handleMeasurementRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/measurements/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	measurementID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || measurementID <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid measurement id: %s", parts[0]))
		return
	}
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}
	restParts := []string{}
	if len(parts) > 2 {
		restParts = parts[2:]
	}

	switch action {
	case "":
		s.handleMeasurement(w, r, measurementID)
	case "imports":
		// /api/measurements/{id}/imports/{project|set}
		s.handleMeasurementImports(w, r, measurementID, restParts)
	case "images":
		s.handleArtifactCollection(w, r, model.ArtifactMeasurementImage, measurementID, restParts)
	case "graphs":
		s.handleArtifactCollection(w, r, model.ArtifactMeasurementGraph, measurementID, restParts)
	case "files":
		s.handleArtifactCollection(w, r, model.ArtifactSiteFile, measurementID, restParts)
	case "report":
		s.handleMeasurementReport(w, r, measurementID, restParts)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleMeasurement(w http.ResponseWriter, r *http.Request, measurementID int64) {
	switch r.Method {
	case http.MethodGet:
		full, err := s.store.GetMeasurementFull(r.Context(), measurementID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if full == nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("measurement not found: %d", measurementID))
			return
		}
		writeJSON(w, http.StatusOK, full)
	case http.MethodPut:
		type updateMeasurementRequest struct {
			Title string `json:"title"`
			Note  string `json:"note,omitempty"`
		}
		var req updateMeasurementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("title is required"))
			return
		}
		found, err := s.store.UpdateMeasurement(r.Context(), measurementID, title, strings.TrimSpace(req.Note))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("measurement not found: %d", measurementID))
			return
		}
		m, err := s.store.GetMeasurement(r.Context(), measurementID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"measurement": m})
	case http.MethodDelete:
		found, err := s.store.DeleteMeasurement(r.Context(), measurementID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("measurement not found: %d", measurementID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": measurementID})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleMeasurementImports 处理仪器导出文本的导入/查看/删除：
// - POST   上传文本文件（multipart 字段 file），服务端负责编码识别与解析
// - GET    返回导入记录（?raw=1 时附带原始文本）
// - DELETE 删除导入记录（重新导入会整体替换，删除主要用于“导错文件”场景）
func (s *Server) handleMeasurementImports(w http.ResponseWriter, r *http.Request, measurementID int64, parts []string) {
	if len(parts) < 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	kind := model.ImportKind(strings.TrimSpace(parts[0]))
	if kind != model.ImportProject && kind != model.ImportSet {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid import kind: %s", parts[0]))
		return
	}

	switch r.Method {
	case http.MethodPost:
		filename, _, data, err := readUpload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		text := importparse.DecodeText(data)
		var metaJSON []byte
		if kind == model.ImportProject {
			meta := importparse.ParseProject(text)
			metaJSON, err = json.Marshal(meta)
		} else {
			meta := importparse.ParseSet(text)
			metaJSON, err = json.Marshal(meta)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("marshal meta: %w", err))
			return
		}

		f := model.ImportFile{
			MeasurementID: measurementID,
			Kind:          kind,
			Filename:      filename,
			RawText:       text,
			MetaJSON:      metaJSON,
			ImportedAt:    time.Now().Unix(),
		}
		if err := s.store.SaveImport(r.Context(), f); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		stored, err := s.store.GetImport(r.Context(), measurementID, kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"import": importView(stored, false),
		})
	case http.MethodGet:
		stored, err := s.store.GetImport(r.Context(), measurementID, kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if stored == nil {
			writeJSON(w, http.StatusOK, map[string]any{"import": nil})
			return
		}
		includeRaw := parseBool(r.URL.Query().Get("raw"), false)
		writeJSON(w, http.StatusOK, map[string]any{"import": importView(stored, includeRaw)})
	case http.MethodDelete:
		found, err := s.store.DeleteImport(r.Context(), measurementID, kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("import not found: %s", kind))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// importView 把导入记录转为 API 视图：meta_json 内联为 JSON 对象，原始文本按需返回。
func importView(f *model.ImportFile, includeRaw bool) map[string]any {
	out := map[string]any{
		"id":          f.ID,
		"kind":        f.Kind,
		"filename":    f.Filename,
		"imported_at": f.ImportedAt,
	}
	var meta any
	if err := json.Unmarshal(f.MetaJSON, &meta); err == nil {
		out["meta"] = meta
	} else {
		out["meta"] = nil
		out["meta_error"] = err.Error()
	}
	if includeRaw {
		out["raw_text"] = f.RawText
	}
	return out
}

// handleArtifactCollection 是附件族接口的统一入口，覆盖勘测照片与测量的图片/图表/文件：
//
// - GET    /.../{collection}                    列出附件索引（不含 blob）
// - POST   /.../{collection}                    上传（multipart 字段 file，可选 note）
// - GET    /.../{collection}/{id}/download      下载原始内容
// - DELETE /.../{collection}/{id}               删除
func (s *Server) handleArtifactCollection(w http.ResponseWriter, r *http.Request, kind model.ArtifactKind, ownerID int64, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			rows, err := s.store.ListArtifacts(r.Context(), kind, ownerID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"artifacts": rows})
		case http.MethodPost:
			s.handleArtifactUpload(w, r, kind, ownerID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	artifactID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || artifactID <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid artifact id: %s", parts[0]))
		return
	}
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodDelete:
			found, err := s.store.DeleteArtifact(r.Context(), kind, artifactID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if !found {
				writeError(w, http.StatusNotFound, fmt.Errorf("artifact not found: %d", artifactID))
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "download":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		a, err := s.store.GetArtifact(r.Context(), kind, artifactID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if a == nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("artifact not found: %d", artifactID))
			return
		}
		serveBlob(w, a.Filename, a.MimeType, a.Blob)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleArtifactUpload(w http.ResponseWriter, r *http.Request, kind model.ArtifactKind, ownerID int64) {
	filename, mimeType, data, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	a := model.Artifact{
		ArtifactInfo: model.ArtifactInfo{
			OwnerID:    ownerID,
			Kind:       kind,
			Filename:   filename,
			MimeType:   mimeType,
			SizeBytes:  int64(len(data)),
			SHA256:     hash.Bytes(data),
			Annotation: strings.TrimSpace(r.FormValue("note")),
			ImportedAt: time.Now().Unix(),
		},
		Blob: data,
	}
	id, err := s.store.SaveArtifact(r.Context(), a)
	if err != nil {
		// 外键失败通常意味着归属对象不存在
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.ID = id
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "artifact": a.ArtifactInfo})
}

// handleMeasurementReport 同步生成单测量 PDF 报告：
// - POST /api/measurements/{id}/report           返回产物信息（路径 + sha256）
// - GET  /api/measurements/{id}/report/download  现场生成并直接下载 PDF
// 大库/多附件场景建议走 /api/jobs/report 后台任务。
func (s *Server) handleMeasurementReport(w http.ResponseWriter, r *http.Request, measurementID int64, parts []string) {
	download := len(parts) > 0 && parts[0] == "download"

	if download {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		res, err := surveyreport.Generate(r.Context(), s.store, surveyreport.Options{
			MeasurementID: measurementID,
			DBPath:        s.opts.DBPath,
			Thresholds:    s.bundles.Thresholds,
			Profile:       strings.TrimSpace(r.URL.Query().Get("profile")),
			Checklist:     &s.bundles.Checklist,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(res.PDFPath)))
		http.ServeFile(w, r, res.PDFPath)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	type reqBody struct {
		Operator string `json:"operator,omitempty"`
		Note     string `json:"note,omitempty"`
		Profile  string `json:"profile,omitempty"`
	}
	var req reqBody
	_ = json.NewDecoder(r.Body).Decode(&req) // 允许空 body

	res, err := surveyreport.Generate(r.Context(), s.store, surveyreport.Options{
		MeasurementID: measurementID,
		DBPath:        s.opts.DBPath,
		Operator:      strings.TrimSpace(req.Operator),
		Note:          strings.TrimSpace(req.Note),
		Thresholds:    s.bundles.Thresholds,
		Profile:       strings.TrimSpace(req.Profile),
		Checklist:     &s.bundles.Checklist,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"pdf_path":     res.PDFPath,
		"pdf_sha256":   res.PDFSHA256,
		"warnings":     res.Warnings,
		"generated_at": res.GeneratedAt,
	})
}

// readUpload 读取 multipart 上传的 file 字段，返回清洗后的文件名、MIME 类型与内容。
func readUpload(r *http.Request) (filename string, mimeType string, data []byte, err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "", nil, fmt.Errorf("parse multipart: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return "", "", nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return "", "", nil, fmt.Errorf("file too large (max %d bytes)", maxUploadBytes)
	}

	filename = strings.TrimSpace(filepath.Base(header.Filename))
	if filename == "" || filename == "." {
		filename = "upload.bin"
	}
	mimeType = strings.TrimSpace(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
			mimeType = byExt
		}
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return filename, mimeType, data, nil
}
