// Package analytics computes read-side aggregates over the action and
// event tables: completion durations, SLA compliance, department
// throughput, and overdue bottlenecks. It never mutates state.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clavis/clavis/internal/domain/action"
	"github.com/clavis/clavis/internal/domain/customtype"
	"github.com/clavis/clavis/internal/workflow"
)

// Repository reads the full tables for one report pass. Point-in-time
// reads; no locks held across the computation.
type Repository interface {
	ListActions(ctx context.Context) ([]*action.ClinicalAction, error)
	ListEvents(ctx context.Context) ([]*action.ActionEvent, error)
	ListCustomTypes(ctx context.Context) ([]*customtype.CustomActionType, error)
}

type CompletionRow struct {
	ActionType string  `json:"action_type"`
	AvgMinutes float64 `json:"avg_minutes"`
	Count      int     `json:"count"`
}

type ComplianceBucket struct {
	Compliant int     `json:"compliant"`
	Total     int     `json:"total"`
	Rate      float64 `json:"rate"`
}

type PriorityCompliance struct {
	Priority string `json:"priority"`
	ComplianceBucket
}

type ThroughputRow struct {
	Department string `json:"department"`
	Last24h    int    `json:"last_24h"`
	Last7d     int    `json:"last_7d"`
	Last30d    int    `json:"last_30d"`
}

type BottleneckRow struct {
	Department   string `json:"department"`
	OverdueCount int    `json:"overdue_count"`
}

type Report struct {
	GeneratedAt   time.Time       `json:"generated_at"`
	AvgCompletion []CompletionRow `json:"avg_completion_minutes"`
	SLACompliance struct {
		Overall    ComplianceBucket     `json:"overall"`
		ByPriority []PriorityCompliance `json:"by_priority"`
	} `json:"sla_compliance"`
	DepartmentThroughput []ThroughputRow `json:"department_throughput"`
	Bottlenecks          []BottleneckRow `json:"bottlenecks"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Overview builds the full report in one pass over actions and events.
func (s *Service) Overview(ctx context.Context) (*Report, error) {
	actions, err := s.repo.ListActions(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	customTypes, err := s.repo.ListCustomTypes(ctx)
	if err != nil {
		return nil, err
	}

	eventsByAction := map[uuid.UUID][]*action.ActionEvent{}
	for _, e := range events {
		eventsByAction[e.ActionID] = append(eventsByAction[e.ActionID], e)
	}
	customByID := map[uuid.UUID]*customtype.CustomActionType{}
	for _, t := range customTypes {
		customByID[t.ID] = t
	}

	now := time.Now().UTC()
	durationsByLabel := map[string][]float64{}
	overall := ComplianceBucket{}
	byPriority := map[string]*ComplianceBucket{}
	throughput := map[string]*ThroughputRow{}
	bottlenecks := map[string]int{}

	for _, a := range actions {
		var def *customtype.CustomActionType
		customTerminal := ""
		if a.IsCustom() {
			def = customByID[*a.CustomTypeID]
			if def != nil {
				customTerminal = def.TerminalState
			}
		}

		routed := a.Routed()
		terminal := false
		if a.IsCustom() {
			terminal = customTerminal != "" && a.CurrentState == customTerminal
		} else {
			terminal = workflow.IsTerminal(a.Kind, a.CurrentState)
		}

		if !terminal {
			if workflow.IsOverdue(routed, customTerminal, a.SLADeadline, now) {
				dept := workflow.PrimaryQueueDepartment(routed, customTerminal)
				if dept == "" {
					dept = "Unknown"
				}
				bottlenecks[dept]++
			}
			continue
		}

		trail := eventsByAction[a.ID]
		startedAt, completedAt := a.CreatedAt, a.UpdatedAt
		if len(trail) > 0 {
			startedAt = trail[0].CreatedAt
			completedAt = trail[len(trail)-1].CreatedAt
		}
		minutes := completedAt.Sub(startedAt).Minutes()
		if minutes < 0 {
			minutes = 0
		}

		label := "UNKNOWN"
		if def != nil {
			label = def.Name
		} else if a.Kind != "" {
			label = string(a.Kind)
		}
		durationsByLabel[label] = append(durationsByLabel[label], minutes)

		if a.SLADeadline != nil {
			overall.Total++
			bucket := byPriority[string(a.Priority)]
			if bucket == nil {
				bucket = &ComplianceBucket{}
				byPriority[string(a.Priority)] = bucket
			}
			bucket.Total++
			if !completedAt.After(*a.SLADeadline) {
				overall.Compliant++
				bucket.Compliant++
			}
		}

		dept := a.Department
		if dept == "" {
			dept = "Unknown"
		}
		row := throughput[dept]
		if row == nil {
			row = &ThroughputRow{Department: dept}
			throughput[dept] = row
		}
		if completedAt.After(now.Add(-24 * time.Hour)) {
			row.Last24h++
		}
		if completedAt.After(now.Add(-7 * 24 * time.Hour)) {
			row.Last7d++
		}
		if completedAt.After(now.Add(-30 * 24 * time.Hour)) {
			row.Last30d++
		}
	}

	report := &Report{GeneratedAt: now}

	for label, durations := range durationsByLabel {
		sum := 0.0
		for _, d := range durations {
			sum += d
		}
		report.AvgCompletion = append(report.AvgCompletion, CompletionRow{
			ActionType: label,
			AvgMinutes: round2(sum / float64(len(durations))),
			Count:      len(durations),
		})
	}
	sort.Slice(report.AvgCompletion, func(i, j int) bool {
		return report.AvgCompletion[i].ActionType < report.AvgCompletion[j].ActionType
	})

	if overall.Total > 0 {
		overall.Rate = round2(float64(overall.Compliant) / float64(overall.Total) * 100)
	}
	report.SLACompliance.Overall = overall
	for priority, bucket := range byPriority {
		if bucket.Total > 0 {
			bucket.Rate = round2(float64(bucket.Compliant) / float64(bucket.Total) * 100)
		}
		report.SLACompliance.ByPriority = append(report.SLACompliance.ByPriority, PriorityCompliance{
			Priority:         priority,
			ComplianceBucket: *bucket,
		})
	}
	sort.Slice(report.SLACompliance.ByPriority, func(i, j int) bool {
		return report.SLACompliance.ByPriority[i].Priority < report.SLACompliance.ByPriority[j].Priority
	})

	for _, row := range throughput {
		report.DepartmentThroughput = append(report.DepartmentThroughput, *row)
	}
	sort.Slice(report.DepartmentThroughput, func(i, j int) bool {
		return report.DepartmentThroughput[i].Department < report.DepartmentThroughput[j].Department
	})

	for dept, count := range bottlenecks {
		report.Bottlenecks = append(report.Bottlenecks, BottleneckRow{Department: dept, OverdueCount: count})
	}
	sort.Slice(report.Bottlenecks, func(i, j int) bool {
		if report.Bottlenecks[i].OverdueCount != report.Bottlenecks[j].OverdueCount {
			return report.Bottlenecks[i].OverdueCount > report.Bottlenecks[j].OverdueCount
		}
		return report.Bottlenecks[i].Department < report.Bottlenecks[j].Department
	})

	return report, nil
}
