package checklist

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validChecklistYAML = `version: "2026.1"
bundle_type: preflight_checklist
maintainer: field-ops
stages:
  - title: "场地准备"
    steps:
      - step: "1.1"
        text: "确认墩面水平且无裂缝"
      - step: "1.2"
        text: "记录环境温度"
        value_type: number
  - title: "仪器架设"
    steps:
      - step: "2.1"
        text: "登记仪器序列号"
        value_type: text
`

const validThresholdYAML = `version: "2026.1"
bundle_type: quality_thresholds
default: laboratory
profiles:
  laboratory:
    pss: {g: 5, w: 10, p: 20, b: 40, u: 100}
    tu: {g: 5, w: 10, p: 20, b: 40, u: 100}
    acc: {g: 95, w: 90, p: 80, b: 60, u: 30}
  field:
    pss: {g: 10, w: 20}
    acc: {g: 90, w: 80}
`

func writeFiles(t *testing.T, checklistYAML, thresholdYAML string) *Loader {
	t.Helper()
	dir := t.TempDir()
	cf := filepath.Join(dir, "checklist.yaml")
	tf := filepath.Join(dir, "thresholds.yaml")
	if err := os.WriteFile(cf, []byte(checklistYAML), 0o644); err != nil {
		t.Fatalf("write checklist: %v", err)
	}
	if err := os.WriteFile(tf, []byte(thresholdYAML), 0o644); err != nil {
		t.Fatalf("write thresholds: %v", err)
	}
	return NewLoader(cf, tf)
}

func TestLoad_Valid(t *testing.T) {
	loader := writeFiles(t, validChecklistYAML, validThresholdYAML)

	loaded, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Checklist.Version != "2026.1" {
		t.Errorf("checklist version = %q", loaded.Checklist.Version)
	}
	if len(loaded.Checklist.Stages) != 2 {
		t.Errorf("stages = %d, want 2", len(loaded.Checklist.Stages))
	}
	if got := loaded.Checklist.Stages[0].Steps[1].ValueType; got != "number" {
		t.Errorf("value_type = %q, want number", got)
	}
	if len(loaded.ChecklistSHA256) != 64 || len(loaded.ThresholdSHA256) != 64 {
		t.Errorf("sha256 lengths = %d/%d", len(loaded.ChecklistSHA256), len(loaded.ThresholdSHA256))
	}

	if loaded.Thresholds.Default != "laboratory" {
		t.Errorf("default profile = %q", loaded.Thresholds.Default)
	}
	lab, ok := loaded.Thresholds.Profiles["laboratory"]
	if !ok {
		t.Fatal("laboratory profile missing")
	}
	if lab["pss"].Good == nil || *lab["pss"].Good != 5 {
		t.Errorf("pss good = %v", lab["pss"].Good)
	}
	// field 档位部分缺档也算合法。
	if fld := loaded.Thresholds.Profiles["field"]; fld["pss"].Poor != nil {
		t.Errorf("field pss poor should be nil, got %v", *fld["pss"].Poor)
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(filepath.Join(dir, "nope.yaml"), filepath.Join(dir, "nope2.yaml"))
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("expected error for missing files")
	}
}

func TestLoad_ChecklistValidation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name:    "missing version",
			yaml:    strings.Replace(validChecklistYAML, `version: "2026.1"`, `version: ""`, 1),
			wantSub: "version is required",
		},
		{
			name:    "no stages",
			yaml:    "version: \"1\"\nbundle_type: preflight_checklist\nstages: []\n",
			wantSub: "stages is empty",
		},
		{
			name:    "duplicate step code",
			yaml:    strings.Replace(validChecklistYAML, `step: "2.1"`, `step: "1.1"`, 1),
			wantSub: "duplicate step code",
		},
		{
			name:    "bad value type",
			yaml:    strings.Replace(validChecklistYAML, "value_type: number", "value_type: boolean", 1),
			wantSub: "unknown value_type",
		},
		{
			name:    "step without text",
			yaml:    strings.Replace(validChecklistYAML, `text: "记录环境温度"`, `text: ""`, 1),
			wantSub: "text is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loader := writeFiles(t, tc.yaml, validThresholdYAML)
			_, err := loader.Load(context.Background())
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error = %q, want substring %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoad_ThresholdValidation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name:    "default not defined",
			yaml:    strings.Replace(validThresholdYAML, "default: laboratory", "default: orbit", 1),
			wantSub: `default profile "orbit" not defined`,
		},
		{
			name:    "non-monotonic ladder",
			yaml:    strings.Replace(validThresholdYAML, "pss: {g: 5, w: 10, p: 20, b: 40, u: 100}", "pss: {g: 5, w: 3}", 1),
			wantSub: "levels must not decrease",
		},
		{
			name:    "acc ladder increasing",
			yaml:    strings.Replace(validThresholdYAML, "acc: {g: 95, w: 90, p: 80, b: 60, u: 30}", "acc: {g: 60, w: 95}", 1),
			wantSub: "levels must not increase",
		},
		{
			name:    "all levels empty",
			yaml:    strings.Replace(validThresholdYAML, "tu: {g: 5, w: 10, p: 20, b: 40, u: 100}", "tu: {}", 1),
			wantSub: "all levels are empty",
		},
		{
			name:    "missing profiles",
			yaml:    "version: \"1\"\nbundle_type: quality_thresholds\ndefault: laboratory\nprofiles: {}\n",
			wantSub: "profiles is empty",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loader := writeFiles(t, validChecklistYAML, tc.yaml)
			_, err := loader.Load(context.Background())
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error = %q, want substring %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoad_ContextCancelled(t *testing.T) {
	loader := writeFiles(t, validChecklistYAML, validThresholdYAML)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := loader.Load(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
