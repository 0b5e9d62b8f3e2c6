package analysis

import (
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"vigil/internal/decision"
	"vigil/internal/detect"
	"vigil/internal/pkg/text"
	"vigil/internal/scenario"
)

// renderVerdictTable 渲染单次分析的场景明细表，用于日志展示
func renderVerdictTable(outcomes map[scenario.Scenario]detect.Outcome, vetoes map[scenario.Scenario]detect.VetoResult, verdict decision.SafetyVerdict) string {
	scs := make([]scenario.Scenario, 0, len(outcomes))
	for sc := range outcomes {
		scs = append(scs, sc)
	}
	sort.Slice(scs, func(i, j int) bool { return scs[i] < scs[j] })

	t := table.NewWriter()
	// 简洁风格，便于日志展示
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Scenario", "Detected", "Confirmed", "Status"})
	for _, sc := range scs {
		out := outcomes[sc]
		if out.Err != nil {
			t.AppendRow(table.Row{string(sc), "-", "-", "error: " + text.Truncate(out.Err.Error(), 48)})
			continue
		}
		if !out.Event.Detected {
			t.AppendRow(table.Row{string(sc), "no", "-", "clear"})
			continue
		}
		if msg, ok := verdict.Errored[sc]; ok {
			t.AppendRow(table.Row{string(sc), "yes", "-", "error: " + text.Truncate(msg, 48)})
			continue
		}
		veto, ok := vetoes[sc]
		if !ok {
			t.AppendRow(table.Row{string(sc), "yes", "-", "missing veto"})
			continue
		}
		if veto.Confirmed {
			t.AppendRow(table.Row{string(sc), "yes", "yes", "VIOLATION"})
		} else {
			t.AppendRow(table.Row{string(sc), "yes", "no", "false positive"})
		}
	}
	return t.Render()
}
