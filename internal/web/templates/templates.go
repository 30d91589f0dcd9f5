// Package templates holds the templ components for the dashboard UI.
// Components are composed programmatically so handlers can render full pages
// or HTMX-style fragments with the same building blocks.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/datadesk/datadesk/internal/session"
)

// ErrorAlert renders a dismissible error fragment with the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><strong>%s</strong> <span>%s</span> <small>(Code: %s)</small></div>`,
			templ.EscapeString(message), templ.EscapeString(action), templ.EscapeString(code))
		return err
	})
}

// FileSummary renders the name/size/shape line shown above each preview.
func FileSummary(snap session.Snapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="file-summary"><strong>%s</strong> &middot; %.2f KB &middot; %d rows &times; %d columns &middot; <span class="state">%s</span></div>`,
			templ.EscapeString(snap.FileName), snap.SizeKB, snap.Rows, snap.Cols, templ.EscapeString(string(snap.State)))
		return err
	})
}

// PreviewTable renders the first rows of a session's table.
func PreviewTable(snap session.Snapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<table class="preview"><thead><tr>`); err != nil {
			return err
		}
		for _, col := range snap.Columns {
			if _, err := fmt.Fprintf(w, "<th>%s</th>", templ.EscapeString(col)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</tr></thead><tbody>"); err != nil {
			return err
		}
		for _, row := range snap.Preview {
			if _, err := io.WriteString(w, "<tr>"); err != nil {
				return err
			}
			for _, cell := range row {
				display := cell
				if display == "NaN" || display == "" {
					display = "∅"
				}
				if _, err := fmt.Fprintf(w, "<td>%s</td>", templ.EscapeString(display)); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "</tr>"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</tbody></table>")
		return err
	})
}

// Dashboard renders the full single-page dashboard. The stylesheet content is
// read once at startup and injected inline, so the page is self-contained.
func Dashboard(stylesheet string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Data Insights Toolkit</title>
<style>%s</style>
</head>
<body>
<div class="container">
<h1>Data Insights Toolkit</h1>
<p class="tagline">Upload CSV or Excel files, clean and reshape the data, chart it, profile it, and download the result in another format.</p>

<section class="uploader">
  <h2>Upload your files</h2>
  <form id="upload-form">
    <input type="file" id="file-input" name="files" multiple accept=".csv,.xlsx">
    <button type="submit">Upload</button>
  </form>
  <div id="upload-errors"></div>
</section>

<section>
  <h2>Files</h2>
  <div id="sessions"></div>
</section>
</div>
`, stylesheet); err != nil {
			return err
		}
		if _, err := io.WriteString(w, dashboardScript); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body>\n</html>\n")
		return err
	})
}

// dashboardScript drives the dashboard: uploads, per-session controls, and
// rendering of previews, charts, and reports via the JSON API.
const dashboardScript = `<script>
const form = document.getElementById('upload-form');
const errBox = document.getElementById('upload-errors');
const sessionsBox = document.getElementById('sessions');

form.addEventListener('submit', async (e) => {
  e.preventDefault();
  const input = document.getElementById('file-input');
  if (!input.files.length) return;
  const fd = new FormData();
  for (const f of input.files) fd.append('files', f);
  const resp = await fetch('/api/upload', { method: 'POST', body: fd });
  const results = await resp.json();
  errBox.innerHTML = '';
  for (const r of (results.files || [])) {
    if (r.error) {
      errBox.innerHTML += '<div class="alert alert-error"><strong>' + esc(r.file_name) + ':</strong> ' +
        esc(r.error.message) + ' (Code: ' + esc(r.error.code) + ')</div>';
    }
  }
  await refresh();
});

async function refresh() {
  const resp = await fetch('/api/sessions');
  const data = await resp.json();
  sessionsBox.innerHTML = '';
  for (const s of (data.sessions || [])) sessionsBox.appendChild(renderSession(s));
}

function renderSession(s) {
  const div = document.createElement('div');
  div.className = 'session-card';
  div.innerHTML =
    '<div class="file-summary"><strong>' + esc(s.file_name) + '</strong> &middot; ' +
      s.size_kb.toFixed(2) + ' KB &middot; ' + s.rows + ' rows &times; ' + s.cols +
      ' columns &middot; <span class="state">' + esc(s.state) + '</span></div>' +
    previewTable(s) +
    controls(s) +
    '<div class="result" id="result-' + s.id + '"></div>';
  div.querySelectorAll('button[data-op]').forEach(btn => {
    btn.addEventListener('click', () => runOp(s, btn.dataset.op, div));
  });
  return div;
}

function previewTable(s) {
  let html = '<table class="preview"><thead><tr>';
  for (const c of s.columns) html += '<th>' + esc(c) + '</th>';
  html += '</tr></thead><tbody>';
  for (const row of (s.preview || [])) {
    html += '<tr>';
    for (const cell of row) html += '<td>' + esc(cell === 'NaN' || cell === '' ? '∅' : cell) + '</td>';
    html += '</tr>';
  }
  return html + '</tbody></table>';
}

function controls(s) {
  const colOpts = s.columns.map(c => '<option>' + esc(c) + '</option>').join('');
  const numOpts = (s.numeric_columns || []).map(c => '<option>' + esc(c) + '</option>').join('');
  return '<div class="controls">' +
    '<button data-op="dedupe">Remove duplicates</button>' +
    '<button data-op="impute">Impute missing</button>' +
    '<select id="strategy-' + s.id + '"><option value="minmax">min-max</option><option value="standard">standard</option></select>' +
    '<button data-op="scale">Scale</button>' +
    '<select id="columns-' + s.id + '" multiple>' + colOpts + '</select>' +
    '<button data-op="select">Keep columns</button>' +
    '<select id="kind-' + s.id + '"><option>bar</option><option>scatter</option><option>line</option><option>histogram</option></select>' +
    '<select id="x-' + s.id + '">' + numOpts + '</select>' +
    '<select id="y-' + s.id + '">' + numOpts + '</select>' +
    '<button data-op="chart">Chart</button>' +
    '<button data-op="report">Report</button>' +
    '<select id="format-' + s.id + '"><option value="csv">CSV</option><option value="xlsx">Excel</option></select>' +
    '<button data-op="export">Convert &amp; download</button>' +
    '<button data-op="remove">Remove</button>' +
    '</div>';
}

async function runOp(s, op, card) {
  const result = card.querySelector('#result-' + CSS.escape(s.id));
  try {
    if (op === 'dedupe' || op === 'impute') {
      const r = await post('/api/session/' + s.id + '/clean/' + op, {});
      result.textContent = op === 'dedupe'
        ? r.removed + ' duplicate rows removed'
        : r.filled + ' missing values imputed' + (r.warning ? ' (' + r.warning + ')' : '');
    } else if (op === 'scale') {
      const strategy = card.querySelector('#strategy-' + CSS.escape(s.id)).value;
      const r = await post('/api/session/' + s.id + '/clean/scale', { strategy });
      result.textContent = (r.scaled || []).length + ' columns scaled' +
        ((r.skipped || []).length ? ', skipped: ' + r.skipped.join(', ') : '');
    } else if (op === 'select') {
      const sel = card.querySelector('#columns-' + CSS.escape(s.id));
      const columns = Array.from(sel.selectedOptions).map(o => o.value);
      await post('/api/session/' + s.id + '/select', { columns });
    } else if (op === 'chart') {
      const body = {
        kind: card.querySelector('#kind-' + CSS.escape(s.id)).value,
        x: card.querySelector('#x-' + CSS.escape(s.id)).value,
        y: card.querySelector('#y-' + CSS.escape(s.id)).value,
      };
      const resp = await fetch('/api/session/' + s.id + '/chart', {
        method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(body),
      });
      if (!resp.ok) throw await resp.json();
      const blob = await resp.blob();
      result.innerHTML = '<img alt="chart" src="' + URL.createObjectURL(blob) + '">';
      return;
    } else if (op === 'report') {
      window.open('/api/session/' + s.id + '/report', '_blank');
      return;
    } else if (op === 'export') {
      const format = card.querySelector('#format-' + CSS.escape(s.id)).value;
      window.location = '/api/session/' + s.id + '/export?format=' + format;
      return;
    } else if (op === 'remove') {
      await fetch('/api/session/' + s.id, { method: 'DELETE' });
    }
    await refresh();
  } catch (err) {
    result.innerHTML = '<div class="alert alert-error">' + esc(err.message || 'operation failed') +
      (err.code ? ' (Code: ' + esc(err.code) + ')' : '') + '</div>';
  }
}

async function post(url, body) {
  const resp = await fetch(url, {
    method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(body),
  });
  const data = await resp.json();
  if (!resp.ok) throw data;
  return data;
}

function esc(s) {
  return String(s).replace(/[&<>"']/g, c => ({
    '&': '&amp;', '<': '&lt;', '>': '&gt;', '"': '&quot;', "'": '&#39;',
  })[c]);
}

refresh();
</script>
`
