package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestErrorAlert_Escapes(t *testing.T) {
	html := render(t, ErrorAlert(`<script>x</script>`, "Retry", "ERR000"))
	assert.NotContains(t, html, "<script>x")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "Code: ERR000")
}

func TestPreviewTable(t *testing.T) {
	pv := &core.Preview{
		Columns:   []string{"age", "city"},
		Rows:      [][]string{{"25", "NYC"}, {core.MissingMark, "<b>LA</b>"}},
		TotalRows: 10,
		Profiles:  []core.ColumnProfile{{Name: "age", Kind: "numeric", Missing: 1}},
	}
	html := render(t, PreviewTable("Data preview", pv))

	assert.Contains(t, html, "Showing 2 of 10 rows, 2 columns")
	assert.Contains(t, html, `<td class="missing">NaN</td>`)
	assert.Contains(t, html, "&lt;b&gt;LA&lt;/b&gt;")
	assert.Contains(t, html, "<th>city</th>")
}

func TestWorkspace_Empty(t *testing.T) {
	html := render(t, Workspace(WorkspaceData{}))
	assert.Contains(t, html, "Load a CSV or XLSX file")
	assert.NotContains(t, html, "/clean")
}

func TestIndexPage_Layout(t *testing.T) {
	html := render(t, IndexPage(WorkspaceData{ManualEnabled: true}))
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, `id="workspace"`)
	assert.Contains(t, html, `id="messages"`)
	assert.Contains(t, html, `<script src="`+HTMXOrigin+"/htmx.org")
	assert.Contains(t, html, "<title>Workspace · csvclean</title>")
	assert.Contains(t, html, `<textarea name="program"`)
}

func TestActivityTable(t *testing.T) {
	html := render(t, ActivityTable(nil))
	assert.Contains(t, html, "No activity yet.")

	html = render(t, ActivityTable([]core.ActivityEntry{{
		Action:     core.ActionClean,
		Severity:   core.SeverityMedium,
		Source:     "data.csv",
		RowsBefore: 10,
		RowsAfter:  8,
		CreatedAt:  time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}}))
	assert.Contains(t, html, "2024-03-01 09:30:00")
	assert.Contains(t, html, "10 → 8")
	assert.Contains(t, html, "data.csv")
}

func TestManualForm_DefaultProgram(t *testing.T) {
	html := render(t, ManualForm(""))
	assert.Contains(t, html, "# filter row.age &gt;= 18")

	html = render(t, ManualForm("head 5"))
	assert.Contains(t, html, ">head 5</textarea>")
	assert.NotContains(t, html, "# filter")
}

func TestErrorAlert(t *testing.T) {
	html := render(t, ErrorAlert("Bad <input>", "", "CSV001"))
	assert.Contains(t, html, `role="alert"`)
	assert.Contains(t, html, "Bad &lt;input&gt;")
	assert.Contains(t, html, "Code: CSV001")
	assert.NotContains(t, html, "<div></div>")
}

func TestFormatStat(t *testing.T) {
	v := 2.5
	assert.Equal(t, "", formatStat(nil))
	assert.Equal(t, "2.5", formatStat(&v))
}

func TestRowsChange(t *testing.T) {
	assert.Equal(t, "10 → 8", rowsChange(core.ActivityEntry{RowsBefore: 10, RowsAfter: 8}))
	assert.Equal(t, "8", rowsChange(core.ActivityEntry{RowsAfter: 8}))
}
