package prompt

import (
	"fmt"
	"strings"
)

// StepSource 行程中一个待摘要的途经点
type StepSource struct {
	Name        string
	Nights      int
	Description string
	Visits      []string
	Activities  []string
}

// StepsText 把途经点列表压平成提示词用的分日文本。
// 有过夜的点计为一天，无过夜的点标记为 Passage。
func StepsText(steps []StepSource) string {
	day := 0
	lines := make([]string, 0, len(steps))
	for i, s := range steps {
		label := "Passage"
		if s.Nights > 0 {
			day++
			label = fmt.Sprintf("Jour %d", day)
		}
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Étape %d", i+1)
		}
		plural := ""
		if s.Nights > 1 {
			plural = "s"
		}
		t := fmt.Sprintf("%s: %s (%d nuit%s)", label, name, s.Nights, plural)
		if len(s.Visits) > 0 {
			t += "\n  Visites: " + strings.Join(s.Visits, " | ")
		}
		if len(s.Activities) > 0 {
			t += "\n  Activités: " + strings.Join(s.Activities, " | ")
		}
		if s.Description != "" {
			t += "\n  Info: " + s.Description
		}
		lines = append(lines, t)
	}
	return strings.Join(lines, "\n")
}
