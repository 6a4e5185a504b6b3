package memory

// CompletenessCheck 完整性清单中的一项
type CompletenessCheck struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
	Passed bool   `json:"passed"`
}

// CompletenessReport 完整性分析结果，Score 为 0..100
type CompletenessReport struct {
	Score       int                 `json:"score"`
	Checks      []CompletenessCheck `json:"checks"`
	Suggestions []string            `json:"suggestions,omitempty"`
}

// Passed 报告指定检查项是否通过
func (r CompletenessReport) Passed(name string) bool {
	for _, c := range r.Checks {
		if c.Name == name {
			return c.Passed
		}
	}
	return false
}

type checklistEntry struct {
	name       string
	weight     int
	passed     bool
	suggestion string
}

// scoreChecklist 累加通过项的权重，未通过项给出建议
func scoreChecklist(entries []checklistEntry) CompletenessReport {
	report := CompletenessReport{Checks: make([]CompletenessCheck, 0, len(entries))}
	total := 0
	for _, e := range entries {
		total += e.weight
		report.Checks = append(report.Checks, CompletenessCheck{Name: e.name, Weight: e.weight, Passed: e.passed})
		if e.passed {
			report.Score += e.weight
		} else if e.suggestion != "" {
			report.Suggestions = append(report.Suggestions, e.suggestion)
		}
	}
	if total > 0 && total != 100 {
		report.Score = report.Score * 100 / total
	}
	return report
}
