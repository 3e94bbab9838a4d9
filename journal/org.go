package journal

import (
	"bytes"
	"sort"
	"text/template"
	"time"
)

var sessionOrgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"winRate": func(s SessionRecord) float64 {
		if s.Wins+s.Losses == 0 {
			return 0
		}
		return float64(s.Wins) / float64(s.Wins+s.Losses) * 100
	},
	"sortedReasons": func(m map[string]int) []reasonCount {
		out := make([]reasonCount, 0, len(m))
		for k, v := range m {
			out = append(out, reasonCount{Reason: k, Count: v})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Reason < out[j].Reason })
		return out
	},
}

type reasonCount struct {
	Reason string
	Count  int
}

var sessionOrgTmpl = template.Must(template.New("session").Funcs(sessionOrgFuncs).Parse(SessionOrgTemplate))

// FormatSessionOrg renders a session summary as an Org mode entry.
func FormatSessionOrg(s SessionRecord) (string, error) {
	buf := new(bytes.Buffer)
	if err := sessionOrgTmpl.Execute(buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const SessionOrgTemplate = `* SESSION: {{.SessionID}}
:PROPERTIES:
:SESSION_ID:  {{.SessionID}}
:START:       [{{(orTime .Start).Format "2006-01-02 Mon 15:04:05"}}]
:END:         [{{(orTime .End).Format "2006-01-02 Mon 15:04:05"}}]
:TICKS:       {{.Ticks}}
:BUYS:        {{.Buys}}
:SELLS:       {{.Sells}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:NET_PL:      {{printf "%.2f" .RealizedPnL}}
:FINAL_EQ:    {{printf "%.2f" .FinalEquity}}
:END:

** Performance Summary
- Net P/L:          *{{printf "%.2f" .RealizedPnL}}*
- Sum P/L %:        *{{printf "%.2f" .RealizedPnLPct}}%*
- Avg P/L % trade:  *{{printf "%.3f" .AvgPnLPct}}%*
- Win Rate:         *{{printf "%.2f" (winRate .)}}%*
- Open Positions:   *{{.OpenPositions}}*
{{- if .ExitReasons }}

** Exit Reasons
| Reason | Count |
|--------+-------|
{{- range sortedReasons .ExitReasons }}
| {{.Reason}} | {{.Count}} |
{{- end }}
{{- end }}
`
