package reporting

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// moveTableLimit caps the rendered per-move table; the full table is always
// available through the JSON output.
const moveTableLimit = 60

var reportFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"pct": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	},
	"num": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"sec": func(v float64) string {
		if v <= 0 {
			return "-"
		}
		return fmt.Sprintf("%.1fs", v)
	},
	"elo": func(v int) string {
		if v <= 0 {
			return "?"
		}
		return fmt.Sprintf("%d", v)
	},
	"rank": func(v int) string {
		if v <= 0 {
			return "-"
		}
		return fmt.Sprintf("%d", v)
	},
	"theory": func(in bool) string {
		if in {
			return "book"
		}
		return ""
	},
}

const textReport = `GAME ANALYSIS REPORT
====================
{{.Game.White.Name}} ({{elo .Game.White.Elo}}) vs {{.Game.Black.Name}} ({{elo .Game.Black.Elo}})
Result: {{.Game.Result}}{{with .Game.Event}}   Event: {{.}}{{end}}{{with .Game.ECO}}   ECO: {{.}}{{end}}
Plies analyzed: {{.Game.TotalPlies}}   Engine depth: {{.EngineDepth}}   MultiPV: {{.MultiPV}}

RISK
----
Score: {{num .Risk.Score}}   Level: {{upper .Risk.Level}}
{{- range .Risk.Factors}}
  * {{.Name}} (weight {{num .Weight}})
{{- end}}

ACCURACY
--------
Score: {{num .Accuracy.Score}}   Mean CPL: {{num .Accuracy.MeanCentipawnLoss}}
Blunders: {{.Accuracy.Blunders}}   Mistakes: {{.Accuracy.Mistakes}}   Inaccuracies: {{.Accuracy.Inaccuracies}}

ENGINE MATCHING
---------------
Best move: {{pct .Matching.BestMoveRate}}   Top-2: {{pct .Matching.Top2MatchRate}}   Top-3: {{pct .Matching.Top3MatchRate}}   (of {{.Matching.TotalAnalyzed}})

TIMING
------
Timed moves: {{.Timing.MovesTimed}}   Mean: {{sec .Timing.Mean}}   CV: {{num .Timing.CV}}   Consistency: {{num .Timing.Consistency}}

COMPLEXITY
----------
Average PCS: {{num .Complexity.AveragePCS}}   Max: {{num .Complexity.MaxPCS}}   Trend: {{.Complexity.Trend}}
Critical/chaotic positions: {{pct .Complexity.CriticalChaoticPercentage}}

OPENING
-------
Theory moves: {{.Opening.OpeningMoveCount}} ({{pct .Opening.OpeningPercentage}})   Strength: {{.Opening.Strength}}
{{- if .Opening.DeviationMove}}
Deviation at move {{.Opening.DeviationMove}}
{{- end}}

PLAYERS
-------
{{- range $color, $p := .Players}}
{{$color}}: {{$p.Name}} ({{elo $p.Elo}})  accuracy {{num $p.AccuracyScore}}  best-move {{pct $p.BestMoveRate}}  avg time {{sec $p.AvgMoveTime}}  book moves {{$p.OpeningMoveCount}}
{{- end}}

MOVES
-----
 ply  player  move        eval   loss  rank  complexity  time
{{- range .Moves}}
{{printf "%4d" .Ply}}  {{printf "%-6s" .Player}}  {{printf "%-10s" .Move}}{{printf "%7d" .Evaluation}}{{printf "%7d" .CentipawnLoss}}  {{printf "%4s" (rank .MoveRank)}}  {{printf "%-10s" .Complexity}}  {{if .MoveTime}}{{sec (deref .MoveTime)}}{{else}}-{{end}}{{with theory .InTheory}}  {{.}}{{end}}
{{- end}}
{{- if .Truncated}}
  ... {{.Truncated}} more plies in the JSON output
{{- end}}
`

var reportTmpl = template.Must(template.New("game_report").
	Funcs(reportFuncs).
	Funcs(template.FuncMap{"deref": func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	}}).
	Parse(textReport))

// textView bounds the move table for terminal rendering.
type textView struct {
	*GameReport
	Truncated int
}

// WriteText renders the report as a plain-text summary for terminals.
func WriteText(w io.Writer, r *GameReport) error {
	if r == nil {
		return errors.New(errors.ErrCodeBadRequest, "no report to render")
	}
	view := textView{GameReport: r}
	if len(r.Moves) > moveTableLimit {
		bounded := *r
		bounded.Moves = r.Moves[:moveTableLimit]
		view.GameReport = &bounded
		view.Truncated = len(r.Moves) - moveTableLimit
	}
	if err := reportTmpl.Execute(w, view); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "rendering report")
	}
	return nil
}

// RenderText is WriteText into a string.
func RenderText(r *GameReport) (string, error) {
	var buf bytes.Buffer
	if err := WriteText(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
