// Package templates holds the HTML components rendered by the web server.
//
// Components are written in the .templ files in this directory; the
// *_templ.go files are generated from them with `templ generate`. This file
// holds the plain Go the components share.
package templates

import (
	"fmt"
	"strconv"

	"github.com/JonMunkholm/csvclean/internal/core"
)

// HTMXOrigin is the script origin the Content-Security-Policy must allow.
const HTMXOrigin = "https://unpkg.com"

// WorkspaceTarget is the element HTMX swaps after every dataset operation.
const WorkspaceTarget = "#workspace"

// MessagesTarget receives error fragments.
const MessagesTarget = "#messages"

const defaultProgram = `# One statement per line. Expressions see the current row as "row".
# filter row.age >= 18
# set total = row.price * row.qty
# fillna city 'Unknown'
# sort total desc
`

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2328}
header{background:#1f2328;color:#fff;padding:.75rem 1.5rem;display:flex;gap:1.5rem;align-items:center}
header a{color:#fff;text-decoration:none}
main{max-width:1100px;margin:1.5rem auto;padding:0 1rem}
section{background:#fff;border:1px solid #d0d7de;border-radius:6px;padding:1rem 1.25rem;margin-bottom:1rem}
table{border-collapse:collapse;width:100%;font-size:.875rem}
th,td{border:1px solid #d0d7de;padding:.3rem .5rem;text-align:left}
th{background:#f6f8fa}
td.missing{color:#8c959f;font-style:italic}
.alert{padding:.75rem 1rem;border-radius:6px;margin-bottom:1rem}
.alert-success{background:#dafbe1;border:1px solid #4ac26b}
.alert-error{background:#ffebe9;border:1px solid #ff8182}
.muted{color:#57606a;font-size:.85rem}
textarea{width:100%;font-family:ui-monospace,monospace;min-height:8rem}
.actions{display:flex;gap:.5rem;flex-wrap:wrap;align-items:center}
`

// swapErrors lets HTMX render the error fragments the server sends with
// 4xx and 5xx statuses.
const swapErrors = `document.addEventListener("htmx:beforeSwap",function(e){if(e.detail.xhr.status>=400){e.detail.shouldSwap=true;e.detail.isError=false;}});`

// WorkspaceData is everything the workspace fragment needs.
type WorkspaceData struct {
	Snapshot      core.SessionSnapshot
	Original      *core.Preview // nil unless the dataset was modified
	Current       *core.Preview
	ManualEnabled bool
	// Notice is a one-line status shown above the preview, e.g. after a reset.
	Notice string
}

func currentTitle(s core.SessionSnapshot) string {
	if s.Modified() {
		return "Processed data"
	}
	return "Data preview"
}

func programText(program string) string {
	if program == "" {
		return defaultProgram
	}
	return program
}

func previewSummary(pv *core.Preview) string {
	return fmt.Sprintf("Showing %d of %d rows, %d columns", pv.ShownRows(), pv.TotalRows, len(pv.Columns))
}

// profileStats returns min, max, mean and median, blank when absent.
func profileStats(p core.ColumnProfile) []string {
	return []string{formatStat(p.Min), formatStat(p.Max), formatStat(p.Mean), formatStat(p.Median)}
}

func formatStat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', 6, 64)
}

func rowsChange(e core.ActivityEntry) string {
	if e.RowsBefore > 0 {
		return strconv.Itoa(e.RowsBefore) + " → " + strconv.Itoa(e.RowsAfter)
	}
	return strconv.Itoa(e.RowsAfter)
}
