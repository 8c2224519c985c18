// Package analysis 汇总一个任务下多次测量的质量指标：
// 按阈值梯给单次测量打分，并对选中的测量集合算统计量与加权平均。
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"survey-manager/internal/adapters/store/sqlite"
	"survey-manager/internal/domain/model"
	"survey-manager/internal/services/importparse"
)

// Service 读取落库的 project 元数据并产出分析结果。
type Service struct {
	store      *sqlite.Store
	thresholds model.ThresholdBundle
}

func NewService(store *sqlite.Store, thresholds model.ThresholdBundle) *Service {
	return &Service{store: store, thresholds: thresholds}
}

// MeasurementSummary 是单次测量的质量摘要，数值来自 project 导入的解析结果。
// 指针为 nil 表示该测量未导入 project 或文件缺少相应字段。
type MeasurementSummary struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	CreatedAt      int64              `json:"created_at"`
	Gravity        *float64           `json:"gravity"`
	TU             *float64           `json:"tu"`
	PSS            *float64           `json:"pss"`
	SSOV           *float64           `json:"ssov"`
	DropsAccepted  *float64           `json:"drops_accepted"`
	DropsRejected  *float64           `json:"drops_rejected"`
	AcceptedPct    *float64           `json:"accepted_pct"`
	PSSStatus      model.MetricStatus `json:"pss_status,omitempty"`
	SSOVStatus     model.MetricStatus `json:"ssov_status,omitempty"`
	TUStatus       model.MetricStatus `json:"tu_status,omitempty"`
	AcceptedStatus model.MetricStatus `json:"accepted_status,omitempty"`
}

// Stats 是一组数值的描述统计；空集合时 Count 为 0，其余字段为 nil。
type Stats struct {
	Count int      `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Mean  *float64 `json:"mean"`
	Stdev *float64 `json:"stdev"`
}

// SurveyAnalysis 是任务级的分析结果。
// Measurements 覆盖任务下全部测量；统计量只针对 selected 指定的子集，
// selected 为空时统计全部。
type SurveyAnalysis struct {
	Profile         string               `json:"profile"`
	Measurements    []MeasurementSummary `json:"measurements"`
	Gravity         Stats                `json:"gravity"`
	GravityWeighted *float64             `json:"gravity_weighted"`
	TU              Stats                `json:"tu"`
	Drops           Stats                `json:"drops"`
	AcceptedPct     Stats                `json:"accepted_pct"`
}

// SurveySummary 计算任务下测量集合的质量摘要与统计量。
// profile 为空时使用阈值配置的默认档位。
func (s *Service) SurveySummary(ctx context.Context, surveyID int64, selectedIDs []int64, profile string) (*SurveyAnalysis, error) {
	if profile == "" {
		profile = s.thresholds.Default
	}
	ladders, ok := s.thresholds.Profiles[profile]
	if !ok {
		return nil, fmt.Errorf("unknown threshold profile %q", profile)
	}

	measurements, err := s.store.ListMeasurements(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	summaries := make([]MeasurementSummary, 0, len(measurements))
	for _, m := range measurements {
		sum, err := s.summarize(ctx, m, ladders)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}

	selected := summaries
	if len(selectedIDs) > 0 {
		wanted := make(map[int64]struct{}, len(selectedIDs))
		for _, id := range selectedIDs {
			wanted[id] = struct{}{}
		}
		selected = selected[:0:0]
		for _, sum := range summaries {
			if _, ok := wanted[sum.ID]; ok {
				selected = append(selected, sum)
			}
		}
	}

	out := &SurveyAnalysis{
		Profile:      profile,
		Measurements: summaries,
		Gravity:      calcStats(collect(selected, func(m MeasurementSummary) *float64 { return m.Gravity })),
		TU:           calcStats(collect(selected, func(m MeasurementSummary) *float64 { return m.TU })),
		Drops:        calcStats(collect(selected, func(m MeasurementSummary) *float64 { return m.DropsAccepted })),
		AcceptedPct:  calcStats(collect(selected, func(m MeasurementSummary) *float64 { return m.AcceptedPct })),
	}
	out.GravityWeighted = weightedMean(selected)
	return out, nil
}

// summarize 读取单次测量的 project 元数据并打阈值分级。
func (s *Service) summarize(ctx context.Context, m model.Measurement, ladders model.ThresholdProfile) (MeasurementSummary, error) {
	sum := MeasurementSummary{ID: m.ID, Title: m.Title, CreatedAt: m.CreatedAt}

	imp, err := s.store.GetImport(ctx, m.ID, model.ImportProject)
	if err != nil {
		return sum, err
	}
	if imp == nil {
		return sum, nil
	}

	var meta model.ProjectMeta
	if err := json.Unmarshal(imp.MetaJSON, &meta); err != nil {
		// 元数据损坏时按未导入处理，不拖垮整个分析。
		return sum, nil
	}

	sum.Gravity = meta.QM.Gravity
	sum.TU = meta.QM.TotalUncertainty
	sum.PSS = meta.QM.ProjectSetScatter
	sum.SSOV = meta.QM.SetScatterOverall
	sum.DropsAccepted = importparse.Number(meta.Keys["Total Drops Accepted"])
	sum.DropsRejected = importparse.Number(meta.Keys["Total Drops Rejected"])

	if sum.DropsAccepted != nil && sum.DropsRejected != nil {
		if total := *sum.DropsAccepted + *sum.DropsRejected; total > 0 {
			pct := math.Round(*sum.DropsAccepted*100.0/total*10) / 10
			sum.AcceptedPct = &pct
		}
	}

	sum.PSSStatus = Classify(sum.PSS, ladders["pss"], false)
	sum.SSOVStatus = Classify(sum.SSOV, ladders["ssov"], false)
	sum.TUStatus = Classify(sum.TU, ladders["tu"], false)
	sum.AcceptedStatus = Classify(sum.AcceptedPct, ladders["acc"], true)
	return sum, nil
}

// Classify 用阈值梯给指标打分。
// 常规指标数值越低越好，依次与 good/warn/poor/bad 上限比较；
// higherIsBetter（接受率）则方向相反。落在全部档位之外且越过 u 线时判 unusable。
// 指标缺失返回空串。
func Classify(value *float64, ladder model.ThresholdLadder, higherIsBetter bool) model.MetricStatus {
	if value == nil {
		return ""
	}

	levels := []struct {
		limit  *float64
		status model.MetricStatus
	}{
		{ladder.Good, model.MetricGood},
		{ladder.Warn, model.MetricWarn},
		{ladder.Poor, model.MetricPoor},
		{ladder.Bad, model.MetricBad},
	}

	for _, lvl := range levels {
		if lvl.limit == nil {
			continue
		}
		if higherIsBetter {
			if *value >= *lvl.limit {
				return lvl.status
			}
		} else {
			if *value <= *lvl.limit {
				return lvl.status
			}
		}
	}

	if ladder.Unusable != nil {
		if higherIsBetter && *value < *ladder.Unusable {
			return model.MetricUnusable
		}
		if !higherIsBetter && *value > *ladder.Unusable {
			return model.MetricUnusable
		}
	}
	if ladder.Bad != nil {
		return model.MetricBad
	}
	if ladder.Poor != nil {
		return model.MetricPoor
	}
	return model.MetricWarn
}

// collect 抽取非空指标值。
func collect(items []MeasurementSummary, pick func(MeasurementSummary) *float64) []float64 {
	var out []float64
	for _, it := range items {
		if v := pick(it); v != nil && !math.IsNaN(*v) {
			out = append(out, *v)
		}
	}
	return out
}

// calcStats 计算描述统计。单元素集合的标准差记 0 而不是 NaN。
func calcStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	min := floats.Min(values)
	max := floats.Max(values)
	mean := stat.Mean(values, nil)
	stdev := 0.0
	if len(values) > 1 {
		stdev = stat.StdDev(values, nil)
	}
	return Stats{Count: len(values), Min: &min, Max: &max, Mean: &mean, Stdev: &stdev}
}

// weightedMean 以总不确定度的倒数为权做重力值加权平均。
// 没有任何 (gravity, tu) 成对可用时返回 nil。
func weightedMean(items []MeasurementSummary) *float64 {
	var values, weights []float64
	for _, it := range items {
		if it.Gravity == nil || it.TU == nil || *it.TU <= 0 {
			continue
		}
		values = append(values, *it.Gravity)
		weights = append(weights, 1.0 / *it.TU)
	}
	if len(values) == 0 {
		return nil
	}
	w := stat.Mean(values, weights)
	return &w
}
