// Package pipeline validates agent pipeline graphs and plans their
// execution stages.
//
// Validation is a pure, synchronous computation over an in-memory graph:
// no persisted state is touched. Graph anomalies (cycles, dangling edges,
// unknown agents) are diagnostics, reported as issue strings in the result,
// never as errors. Callers reserve hard failures for malformed requests.
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spectreweave/spectreweave/internal/schema"
)

// StageStep is one step scheduled within a stage.
type StageStep struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	AgentID string `json:"agent_id,omitempty"`
}

// Stage is a set of steps with no mutual dependency, eligible for
// concurrent execution by the external engine.
type Stage struct {
	Index int         `json:"index"`
	Steps []StageStep `json:"steps"`
}

// Report is the result of validating a pipeline.
type Report struct {
	Stages  []Stage  `json:"stages"`
	Issues  []string `json:"issues"`
	Summary string   `json:"summary"`
}

// Validate checks the pipeline graph and computes its execution stages.
//
// When the pipeline declares no edges at all, steps are scheduled as a
// strict linear chain ordered by order_index; the summary notes that the
// order was inferred. Otherwise stages are computed with Kahn's algorithm:
// every step whose dependencies are all satisfied joins the current stage.
//
// Edges naming unknown steps are excluded from traversal, each producing
// one issue. Steps never reached (members of a cycle, or downstream of
// one) produce a single issue naming them; the reachable portion of the
// graph is still staged. Steps referencing an agent id absent from
// knownAgents produce one issue each. knownAgents may be nil to skip the
// agent check entirely.
func Validate(p *schema.Pipeline, knownAgents map[string]bool) *Report {
	report := &Report{Issues: []string{}}

	// Submission order resolves ties everywhere below.
	submitted := make(map[string]int, len(p.Steps))
	steps := make(map[string]schema.Step, len(p.Steps))
	for i, s := range p.Steps {
		submitted[s.ID] = i
		steps[s.ID] = s
	}

	linear := len(p.Edges) == 0
	if linear {
		report.Stages = linearStages(p.Steps)
	} else {
		edges := validEdges(p, steps, report)
		report.Stages = kahnStages(p.Steps, edges, submitted, report)
	}

	checkAgentRefs(p.Steps, knownAgents, report)

	report.Summary = summarize(p, report, linear)
	return report
}

// linearStages schedules steps one per stage, ordered by order_index. The
// stable sort breaks ties by submission order.
func linearStages(steps []schema.Step) []Stage {
	ordered := make([]schema.Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].OrderIndex < ordered[b].OrderIndex
	})

	stages := make([]Stage, 0, len(ordered))
	for i, s := range ordered {
		stages = append(stages, Stage{
			Index: i,
			Steps: []StageStep{toStageStep(s)},
		})
	}
	return stages
}

// validEdges filters out edges referencing unknown step ids, appending one
// issue per excluded edge.
func validEdges(p *schema.Pipeline, steps map[string]schema.Step, report *Report) []schema.Edge {
	edges := make([]schema.Edge, 0, len(p.Edges))
	for _, e := range p.Edges {
		if _, ok := steps[e.From]; !ok {
			report.Issues = append(report.Issues,
				fmt.Sprintf("edge %s -> %s references unknown step %q; edge ignored", e.From, e.To, e.From))
			continue
		}
		if _, ok := steps[e.To]; !ok {
			report.Issues = append(report.Issues,
				fmt.Sprintf("edge %s -> %s references unknown step %q; edge ignored", e.From, e.To, e.To))
			continue
		}
		edges = append(edges, e)
	}
	return edges
}

// kahnStages runs Kahn's algorithm, draining each zero-in-degree frontier
// as one stage. Steps never visited indicate a cycle or a step downstream
// of one; they are reported as an issue and left unstaged.
func kahnStages(steps []schema.Step, edges []schema.Edge, submitted map[string]int, report *Report) []Stage {
	inDegree := make(map[string]int, len(steps))
	successors := make(map[string][]string, len(steps))
	for _, s := range steps {
		inDegree[s.ID] = 0
	}
	for _, e := range edges {
		inDegree[e.To]++
		successors[e.From] = append(successors[e.From], e.To)
	}

	byID := make(map[string]schema.Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	var frontier []string
	for _, s := range steps {
		if inDegree[s.ID] == 0 {
			frontier = append(frontier, s.ID)
		}
	}

	visited := make(map[string]bool, len(steps))
	var stages []Stage
	for len(frontier) > 0 {
		sortStepIDs(frontier, byID, submitted)

		stage := Stage{Index: len(stages), Steps: make([]StageStep, 0, len(frontier))}
		var next []string
		for _, id := range frontier {
			visited[id] = true
			stage.Steps = append(stage.Steps, toStageStep(byID[id]))
			for _, succ := range successors[id] {
				inDegree[succ]--
				if inDegree[succ] == 0 {
					next = append(next, succ)
				}
			}
		}
		stages = append(stages, stage)
		frontier = next
	}

	if len(visited) < len(steps) {
		var missing []string
		for _, s := range steps {
			if !visited[s.ID] {
				missing = append(missing, s.ID)
			}
		}
		report.Issues = append(report.Issues,
			fmt.Sprintf("cycle or unreachable steps detected: %s", strings.Join(missing, ", ")))
	}

	return stages
}

// checkAgentRefs appends exactly one issue per step naming an agent id
// absent from knownAgents. A nil map disables the check.
func checkAgentRefs(steps []schema.Step, knownAgents map[string]bool, report *Report) {
	if knownAgents == nil {
		return
	}
	for _, s := range steps {
		if s.AgentID == "" {
			continue
		}
		if !knownAgents[s.AgentID] {
			report.Issues = append(report.Issues,
				fmt.Sprintf("step %q (role %s) references unknown agent %q", s.ID, s.Role, s.AgentID))
		}
	}
}

func summarize(p *schema.Pipeline, report *Report, linear bool) string {
	staged := 0
	for _, st := range report.Stages {
		staged += len(st.Steps)
	}
	summary := fmt.Sprintf("%d steps, %d edges, %d stages, %d issues",
		len(p.Steps), len(p.Edges), len(report.Stages), len(report.Issues))
	if staged < len(p.Steps) {
		summary += fmt.Sprintf(" (%d steps unstaged)", len(p.Steps)-staged)
	}
	if linear && len(p.Steps) > 1 {
		summary += "; linear order inferred from order_index"
	}
	return summary
}

// sortStepIDs orders ids by order_index, then submission order, then id.
// Stages have no semantic internal order; sorting keeps output stable.
func sortStepIDs(ids []string, byID map[string]schema.Step, submitted map[string]int) {
	sort.Slice(ids, func(a, b int) bool {
		sa, sb := byID[ids[a]], byID[ids[b]]
		if sa.OrderIndex != sb.OrderIndex {
			return sa.OrderIndex < sb.OrderIndex
		}
		if submitted[sa.ID] != submitted[sb.ID] {
			return submitted[sa.ID] < submitted[sb.ID]
		}
		return sa.ID < sb.ID
	})
}

func toStageStep(s schema.Step) StageStep {
	return StageStep{ID: s.ID, Role: s.Role, AgentID: s.AgentID}
}
