package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"survey-manager/internal/platform/id"
	"survey-manager/internal/services/surveyreport"
)

type jobManager struct {
	mu   sync.Mutex
	jobs map[string]*reportJob
}

func newJobManager() *jobManager {
	return &jobManager{jobs: make(map[string]*reportJob)}
}

type reportJob struct {
	JobID      string `json:"job_id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"` // running|success|failed
	CreatedAt  int64  `json:"created_at"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`

	// Stage/Progress/Logs 是给前端“控制台”用的轻量字段：
	// 报告生成是串行流程（读库 -> 渲染 -> 落盘），进度只求可感知，不求精细。
	Stage    string       `json:"stage,omitempty"`    // render|finished
	Progress int          `json:"progress,omitempty"` // 0-100
	Logs     []jobLogLine `json:"logs,omitempty"`

	MeasurementID int64 `json:"measurement_id,omitempty"`
	SurveyID      int64 `json:"survey_id,omitempty"`

	Report  *surveyreport.Result   `json:"report,omitempty"`
	Reports []*surveyreport.Result `json:"reports,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

type jobLogLine struct {
	Time    int64  `json:"time"`
	Message string `json:"message"`
}

func (m *jobManager) put(job *reportJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job
}

func (m *jobManager) getCopy(jobID string) (reportJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j == nil {
		return reportJob{}, false
	}
	cpy := *j
	// 深拷贝 slice，避免解锁后后台 goroutine append 导致 data race。
	if len(cpy.Logs) > 0 {
		tmp := make([]jobLogLine, len(cpy.Logs))
		copy(tmp, cpy.Logs)
		cpy.Logs = tmp
	}
	return cpy, true
}

func (m *jobManager) listCopies() []reportJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]reportJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j == nil {
			continue
		}
		cpy := *j
		if len(cpy.Logs) > 0 {
			tmp := make([]jobLogLine, len(cpy.Logs))
			copy(tmp, cpy.Logs)
			cpy.Logs = tmp
		}
		out = append(out, cpy)
	}
	return out
}

type reportJobRequest struct {
	MeasurementID int64  `json:"measurement_id"`
	Operator      string `json:"operator,omitempty"`
	Note          string `json:"note,omitempty"`
	Profile       string `json:"profile,omitempty"`
}

// handleJobReport 把 PDF 报告生成放到后台任务里执行：
// 附件多、set 行多时渲染可能要几秒，UI 通过轮询 /api/jobs/{id} 获取进度与结果。
func (s *Server) handleJobReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req reportJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.MeasurementID <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("measurement_id is required"))
		return
	}

	operator := strings.TrimSpace(req.Operator)
	if operator == "" {
		operator = "system"
	}

	jobID := id.New("job")
	now := time.Now().Unix()
	job := &reportJob{
		JobID:         jobID,
		Kind:          "measurement_report",
		Status:        "running",
		CreatedAt:     now,
		StartedAt:     now,
		Stage:         "render",
		Progress:      1,
		MeasurementID: req.MeasurementID,
		Logs: []jobLogLine{{
			Time:    now,
			Message: "job created",
		}},
	}
	s.jobs.put(job)

	// 先返回一份拷贝，避免后台 goroutine 修改同一对象导致数据竞争。
	resp := *job

	go func() {
		ctx := context.Background()

		res, err := surveyreport.Generate(ctx, s.store, surveyreport.Options{
			MeasurementID: req.MeasurementID,
			DBPath:        s.opts.DBPath,
			Operator:      operator,
			Note:          strings.TrimSpace(req.Note),
			Thresholds:    s.bundles.Thresholds,
			Profile:       strings.TrimSpace(req.Profile),
			Checklist:     &s.bundles.Checklist,
		})

		s.jobs.mu.Lock()
		defer s.jobs.mu.Unlock()
		job.Stage = "finished"
		job.Progress = 100
		job.FinishedAt = time.Now().Unix()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			job.Logs = append(job.Logs, jobLogLine{Time: time.Now().Unix(), Message: "report failed: " + err.Error()})
			return
		}
		job.Status = "success"
		job.Report = res
		job.Logs = append(job.Logs, jobLogLine{Time: time.Now().Unix(), Message: "report generated: " + res.PDFPath})
	}()

	writeJSON(w, http.StatusOK, resp)
}

type surveyReportJobRequest struct {
	SurveyID int64  `json:"survey_id"`
	Operator string `json:"operator,omitempty"`
	Note     string `json:"note,omitempty"`
	Profile  string `json:"profile,omitempty"`
}

// handleJobSurveyReport 为任务下的每个测量会话各生成一份 PDF 报告。
// 单个会话渲染失败只记日志不中断，剩余会话继续；全部失败才把任务标为 failed。
func (s *Server) handleJobSurveyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req surveyReportJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.SurveyID <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("survey_id is required"))
		return
	}

	survey, err := s.store.GetSurvey(r.Context(), req.SurveyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if survey == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("survey not found: %d", req.SurveyID))
		return
	}

	operator := strings.TrimSpace(req.Operator)
	if operator == "" {
		operator = "system"
	}

	jobID := id.New("job")
	now := time.Now().Unix()
	job := &reportJob{
		JobID:     jobID,
		Kind:      "survey_report",
		Status:    "running",
		CreatedAt: now,
		StartedAt: now,
		Stage:     "render",
		Progress:  1,
		SurveyID:  req.SurveyID,
		Logs: []jobLogLine{{
			Time:    now,
			Message: "job created",
		}},
	}
	s.jobs.put(job)

	resp := *job

	go func() {
		ctx := context.Background()

		log := func(msg string) {
			s.jobs.mu.Lock()
			job.Logs = append(job.Logs, jobLogLine{Time: time.Now().Unix(), Message: msg})
			s.jobs.mu.Unlock()
		}
		finish := func(status, errMsg string) {
			s.jobs.mu.Lock()
			job.Stage = "finished"
			job.Progress = 100
			job.FinishedAt = time.Now().Unix()
			job.Status = status
			job.Error = errMsg
			s.jobs.mu.Unlock()
		}

		measurements, err := s.store.ListMeasurements(ctx, req.SurveyID)
		if err != nil {
			log("list measurements failed: " + err.Error())
			finish("failed", err.Error())
			return
		}
		if len(measurements) == 0 {
			log("survey has no measurements")
			finish("success", "")
			return
		}

		failed := 0
		for i, m := range measurements {
			res, err := surveyreport.Generate(ctx, s.store, surveyreport.Options{
				MeasurementID: m.ID,
				DBPath:        s.opts.DBPath,
				Operator:      operator,
				Note:          strings.TrimSpace(req.Note),
				Thresholds:    s.bundles.Thresholds,
				Profile:       strings.TrimSpace(req.Profile),
				Checklist:     &s.bundles.Checklist,
			})

			s.jobs.mu.Lock()
			job.Progress = (i + 1) * 100 / len(measurements)
			if err != nil {
				failed++
				job.Logs = append(job.Logs, jobLogLine{
					Time:    time.Now().Unix(),
					Message: fmt.Sprintf("measurement %d failed: %v", m.ID, err),
				})
			} else {
				job.Reports = append(job.Reports, res)
				job.Logs = append(job.Logs, jobLogLine{
					Time:    time.Now().Unix(),
					Message: fmt.Sprintf("measurement %d report generated: %s", m.ID, res.PDFPath),
				})
			}
			s.jobs.mu.Unlock()
		}

		if failed == len(measurements) {
			finish("failed", fmt.Sprintf("all %d measurement reports failed", failed))
			return
		}
		finish("success", "")
	}()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		// 简单返回全部 job（单机场景，后续可加 limit/排序）
		writeJSON(w, http.StatusOK, map[string]any{
			"jobs": s.jobs.listCopies(),
		})
		return
	}

	job, ok := s.jobs.getCopy(rest)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("job not found: %s", rest))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
