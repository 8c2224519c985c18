package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"survey-manager/internal/domain/model"
	"survey-manager/internal/services/analysis"
	"survey-manager/internal/services/surveyexport"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "webapp",
		"time":    time.Now().Unix(),
	})
}

// handleChecklist 返回检查单模板（前端按 stage/step 渲染填写界面）。
func (s *Server) handleChecklist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checklist": s.bundles.Checklist,
		"sha256":    s.bundles.ChecklistSHA256,
	})
}

func (s *Server) handleSurveys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parseInt(r.URL.Query().Get("limit"), 50)
		offset := parseInt(r.URL.Query().Get("offset"), 0)

		rows, err := s.store.ListSurveyOverviews(r.Context(), limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"surveys": rows})
	case http.MethodPost:
		// UI 侧“先建勘测再填单”的低门槛入口：只要求 name，code/description 可为空。
		type createSurveyRequest struct {
			Name        string `json:"name"`
			Code        string `json:"code,omitempty"`
			Description string `json:"description,omitempty"`
		}

		var req createSurveyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}
		survey, err := s.store.CreateSurvey(r.Context(), name, strings.TrimSpace(req.Code), strings.TrimSpace(req.Description))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"survey": survey})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSurveyRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/surveys/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	surveyID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || surveyID <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid survey id: %s", parts[0]))
		return
	}
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "":
		s.handleSurvey(w, r, surveyID)
	case "status":
		s.handleSurveyStatus(w, r, surveyID)
	case "answers":
		s.handleSurveyAnswers(w, r, surveyID)
	case "measurements":
		s.handleSurveyMeasurements(w, r, surveyID)
	case "images":
		// /api/surveys/{id}/images[/{image_id}[/download]]
		restParts := []string{}
		if len(parts) > 2 {
			restParts = parts[2:]
		}
		s.handleArtifactCollection(w, r, model.ArtifactSiteImage, surveyID, restParts)
	case "analysis":
		s.handleSurveyAnalysis(w, r, surveyID)
	case "export":
		s.handleSurveyExport(w, r, surveyID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleSurvey(w http.ResponseWriter, r *http.Request, surveyID int64) {
	switch r.Method {
	case http.MethodGet:
		ov, err := s.store.GetSurveyOverview(r.Context(), surveyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if ov == nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("survey not found: %d", surveyID))
			return
		}
		writeJSON(w, http.StatusOK, ov)
	case http.MethodPut:
		type updateSurveyRequest struct {
			Name        string `json:"name"`
			Code        string `json:"code,omitempty"`
			Description string `json:"description,omitempty"`
			Status      string `json:"status"`
		}
		var req updateSurveyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}
		found, err := s.store.UpdateSurvey(r.Context(), surveyID,
			strings.TrimSpace(req.Name),
			strings.TrimSpace(req.Code),
			strings.TrimSpace(req.Description),
			model.SurveyStatus(strings.TrimSpace(req.Status)),
		)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("survey not found: %d", surveyID))
			return
		}
		survey, err := s.store.GetSurvey(r.Context(), surveyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"survey": survey})
	case http.MethodDelete:
		found, err := s.store.DeleteSurvey(r.Context(), surveyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("survey not found: %d", surveyID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": surveyID})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSurveyStatus(w http.ResponseWriter, r *http.Request, surveyID int64) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	type statusRequest struct {
		Status string `json:"status"`
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	status := model.SurveyStatus(strings.TrimSpace(req.Status))
	found, err := s.store.UpdateSurveyStatus(r.Context(), surveyID, status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("survey not found: %d", surveyID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": status})
}

// handleSurveyAnswers 读/写预检检查单答案。
//
// - GET  返回当前勘测的全部答案
// - POST 保存答案（单条或批量，批量在一个事务内落库）
func (s *Server) handleSurveyAnswers(w http.ResponseWriter, r *http.Request, surveyID int64) {
	switch r.Method {
	case http.MethodGet:
		rows, err := s.store.ListPreflightAnswers(r.Context(), surveyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"answers": rows})
	case http.MethodPost:
		type answerPayload struct {
			StepCode string `json:"step_code"`
			Value    string `json:"value,omitempty"`
			Checked  bool   `json:"checked"`
			Notes    string `json:"notes,omitempty"`
		}
		type saveAnswersRequest struct {
			Answers []answerPayload `json:"answers"`
			// MarkMeasurements 表示“最后一阶段已完成”，顺带把勘测推进到 measurements。
			MarkMeasurements bool `json:"mark_measurements,omitempty"`
		}
		var req saveAnswersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if len(req.Answers) == 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("answers is empty"))
			return
		}

		answers := make([]model.PreflightAnswer, 0, len(req.Answers))
		for _, a := range req.Answers {
			code := strings.TrimSpace(a.StepCode)
			if code == "" {
				writeError(w, http.StatusBadRequest, fmt.Errorf("step_code is required"))
				return
			}
			answers = append(answers, model.PreflightAnswer{
				SurveyID: surveyID,
				StepCode: code,
				Value:    strings.TrimSpace(a.Value),
				Checked:  a.Checked,
				Notes:    strings.TrimSpace(a.Notes),
			})
		}
		if err := s.store.SavePreflightAnswers(r.Context(), surveyID, answers); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		target := model.StatusPreflight
		if req.MarkMeasurements {
			target = model.StatusMeasurements
		}
		// 填写答案只往前推状态，不回退：completed 的勘测补填答案不应退回 preflight。
		survey, err := s.store.GetSurvey(r.Context(), surveyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if survey == nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("survey not found: %d", surveyID))
			return
		}
		status := survey.Status
		if statusRank(target) > statusRank(status) {
			if _, err := s.store.UpdateSurveyStatus(r.Context(), surveyID, target); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			status = target
		}

		rows, err := s.store.ListPreflightAnswers(r.Context(), surveyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "answers": rows, "status": status})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSurveyMeasurements(w http.ResponseWriter, r *http.Request, surveyID int64) {
	switch r.Method {
	case http.MethodGet:
		full := parseBool(r.URL.Query().Get("full"), false)
		if full {
			rows, err := s.store.ListMeasurementsFull(r.Context(), surveyID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"measurements": rows})
			return
		}
		rows, err := s.store.ListMeasurements(r.Context(), surveyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"measurements": rows})
	case http.MethodPost:
		type createMeasurementRequest struct {
			Title string `json:"title"`
			Note  string `json:"note,omitempty"`
		}
		var req createMeasurementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("title is required"))
			return
		}
		m, err := s.store.CreateMeasurement(r.Context(), surveyID, title, strings.TrimSpace(req.Note))
		if err != nil {
			// 外键失败通常意味着勘测不存在
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"measurement": m})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleSurveyAnalysis 计算勘测的质量汇总：
// - ?profile=laboratory|field|recon 选择阈值档位（缺省用配置的默认档位）
// - ?ids=1,2,3 只统计选中的测量会话（缺省统计全部）
func (s *Server) handleSurveyAnalysis(w http.ResponseWriter, r *http.Request, surveyID int64) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var selected []int64
	if raw := strings.TrimSpace(r.URL.Query().Get("ids")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid measurement id: %s", part))
				return
			}
			selected = append(selected, id)
		}
	}

	svc := analysis.NewService(s.store, s.bundles.Thresholds)
	res, err := svc.SurveySummary(r.Context(), surveyID, selected, strings.TrimSpace(r.URL.Query().Get("profile")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSurveyExport 生成勘测交接包（ZIP）并返回产物信息。
// 打包在请求内同步完成；附件多的任务耗时可能到秒级，前端需给出等待提示。
func (s *Server) handleSurveyExport(w http.ResponseWriter, r *http.Request, surveyID int64) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	type reqBody struct {
		Note string `json:"note,omitempty"`
	}
	var req reqBody
	_ = json.NewDecoder(r.Body).Decode(&req) // 允许空 body

	res, err := surveyexport.Generate(r.Context(), s.store, surveyexport.Options{
		SurveyID:      surveyID,
		DBPath:        s.opts.DBPath,
		ChecklistPath: s.opts.ChecklistPath,
		ThresholdPath: s.opts.ThresholdPath,
		Note:          strings.TrimSpace(req.Note),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"zip_path":   res.ZipPath,
		"zip_sha256": res.ZipSHA256,
		"warnings":   res.Warnings,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// statusRank 给勘测状态定序，未知状态排最前。
func statusRank(s model.SurveyStatus) int {
	switch s {
	case model.StatusPreflight:
		return 1
	case model.StatusMeasurements:
		return 2
	case model.StatusCompleted:
		return 3
	default:
		return 0
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
	})
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return def
	}
	switch s {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
