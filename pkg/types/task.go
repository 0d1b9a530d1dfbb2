// Package types holds the data model shared by every glitchlab component:
// tasks, per-stage agent context and results, plans, file changes, tool
// results and budget state.
package types

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RiskLevel classifies how much blast radius a task carries.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Task is a unit of work handed to the controller: an objective against a
// target repo, bounded by constraints and judged against acceptance
// criteria.
type Task struct {
	TaskID             string    `yaml:"task_id" json:"task_id"`
	Objective          string    `yaml:"objective" json:"objective"`
	Constraints        []string  `yaml:"constraints" json:"constraints"`
	AcceptanceCriteria []string  `yaml:"acceptance_criteria" json:"acceptance_criteria"`
	RiskLevel          RiskLevel `yaml:"risk_level" json:"risk_level"`
	Source             string    `yaml:"source" json:"source"`
}

// LoadTaskFile parses a single task from a YAML file. A missing task_id is
// filled in with a fresh UUID rather than rejected, matching the tolerant
// loading behavior tasks submitted interactively expect.
func LoadTaskFile(data []byte) (*Task, error) {
	var t Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}
	return NormalizeTask(&t)
}

// NormalizeTask fills in defaults and validates a Task read from any source.
func NormalizeTask(t *Task) (*Task, error) {
	if t.Objective == "" {
		return nil, fmt.Errorf("task objective is required")
	}
	if t.TaskID == "" {
		t.TaskID = uuid.NewString()
	}
	if t.RiskLevel == "" {
		t.RiskLevel = RiskMedium
	}
	if !t.RiskLevel.Valid() {
		return nil, fmt.Errorf("invalid risk_level %q", t.RiskLevel)
	}
	if t.Source == "" {
		t.Source = "cli"
	}
	return t, nil
}
