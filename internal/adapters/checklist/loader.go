package checklist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"survey-manager/internal/domain/model"

	"gopkg.in/yaml.v3"
)

// Loader 负责从磁盘读取并校验清单模板与阈值配置。
type Loader struct {
	ChecklistFile string
	ThresholdFile string
}

// Loaded 是加载后的配置集合和其文件哈希，用于版本确认。
type Loaded struct {
	Checklist       model.ChecklistBundle
	ChecklistSHA256 string
	Thresholds      model.ThresholdBundle
	ThresholdSHA256 string
}

func NewLoader(checklistFile, thresholdFile string) *Loader {
	return &Loader{ChecklistFile: checklistFile, ThresholdFile: thresholdFile}
}

// Load 按顺序加载清单模板与阈值配置，并执行基础结构校验。
func (l *Loader) Load(ctx context.Context) (*Loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	checklistRaw, err := os.ReadFile(l.ChecklistFile)
	if err != nil {
		return nil, fmt.Errorf("read checklist template: %w", err)
	}

	var bundle model.ChecklistBundle
	if err := yaml.Unmarshal(checklistRaw, &bundle); err != nil {
		return nil, fmt.Errorf("parse checklist template: %w", err)
	}
	if err := validateChecklist(bundle); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	thresholdRaw, err := os.ReadFile(l.ThresholdFile)
	if err != nil {
		return nil, fmt.Errorf("read thresholds: %w", err)
	}

	var thresholds model.ThresholdBundle
	if err := yaml.Unmarshal(thresholdRaw, &thresholds); err != nil {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}
	if err := validateThresholds(thresholds); err != nil {
		return nil, err
	}

	checklistSum := sha256.Sum256(checklistRaw)
	thresholdSum := sha256.Sum256(thresholdRaw)

	return &Loaded{
		Checklist:       bundle,
		ChecklistSHA256: hex.EncodeToString(checklistSum[:]),
		Thresholds:      thresholds,
		ThresholdSHA256: hex.EncodeToString(thresholdSum[:]),
	}, nil
}

// validateChecklist 检查清单模板的完整性与条目编号唯一性。
func validateChecklist(bundle model.ChecklistBundle) error {
	if strings.TrimSpace(bundle.Version) == "" {
		return errors.New("checklist: version is required")
	}
	if strings.TrimSpace(bundle.BundleType) == "" {
		return errors.New("checklist: bundle_type is required")
	}
	if len(bundle.Stages) == 0 {
		return errors.New("checklist: stages is empty")
	}

	seen := make(map[string]struct{})
	for i, stage := range bundle.Stages {
		if strings.TrimSpace(stage.Title) == "" {
			return fmt.Errorf("checklist: stage %d title is required", i+1)
		}
		if len(stage.Steps) == 0 {
			return fmt.Errorf("checklist: stage %q has no steps", stage.Title)
		}
		for _, step := range stage.Steps {
			code := strings.TrimSpace(step.Step)
			if code == "" {
				return fmt.Errorf("checklist: stage %q has a step without code", stage.Title)
			}
			if _, ok := seen[code]; ok {
				return fmt.Errorf("checklist: duplicate step code: %s", code)
			}
			seen[code] = struct{}{}

			if strings.TrimSpace(step.Text) == "" {
				return fmt.Errorf("checklist: step %s text is required", code)
			}
			switch step.ValueType {
			case "", "text", "number":
			default:
				return fmt.Errorf("checklist: step %s has unknown value_type %q", code, step.ValueType)
			}
		}
	}

	return nil
}

// validateThresholds 检查阈值配置：默认档位必须存在，且每个阈值梯单调。
func validateThresholds(bundle model.ThresholdBundle) error {
	if strings.TrimSpace(bundle.Version) == "" {
		return errors.New("thresholds: version is required")
	}
	if strings.TrimSpace(bundle.BundleType) == "" {
		return errors.New("thresholds: bundle_type is required")
	}
	if len(bundle.Profiles) == 0 {
		return errors.New("thresholds: profiles is empty")
	}
	if strings.TrimSpace(bundle.Default) == "" {
		return errors.New("thresholds: default profile is required")
	}
	if _, ok := bundle.Profiles[bundle.Default]; !ok {
		return fmt.Errorf("thresholds: default profile %q not defined", bundle.Default)
	}

	for name, profile := range bundle.Profiles {
		if len(profile) == 0 {
			return fmt.Errorf("thresholds: profile %q has no metrics", name)
		}
		for metric, ladder := range profile {
			// acc 是接受率，数值越高越好，梯级递减；其余指标递增。
			ascending := metric != "acc"
			if err := validateLadder(ladder, ascending); err != nil {
				return fmt.Errorf("thresholds: profile %q metric %q: %w", name, metric, err)
			}
		}
	}

	return nil
}

// validateLadder 确保阈值梯的各档位按预期方向单调，缺档允许。
func validateLadder(ladder model.ThresholdLadder, ascending bool) error {
	levels := []*float64{ladder.Good, ladder.Warn, ladder.Poor, ladder.Bad, ladder.Unusable}

	var prev *float64
	for _, v := range levels {
		if v == nil {
			continue
		}
		if prev != nil {
			if ascending && *v < *prev {
				return fmt.Errorf("levels must not decrease (%v after %v)", *v, *prev)
			}
			if !ascending && *v > *prev {
				return fmt.Errorf("levels must not increase (%v after %v)", *v, *prev)
			}
		}
		prev = v
	}
	if prev == nil {
		return errors.New("all levels are empty")
	}
	return nil
}
