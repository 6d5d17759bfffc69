package reporting

import (
	"html/template"
	"os"
	"time"

	"github.com/burrow/scanner/internal/config"
	"github.com/burrow/scanner/internal/scanner"
)

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"statusClass": func(code int) string {
		switch {
		case code >= 500:
			return "status-500"
		case code >= 400:
			return "status-400"
		case code >= 300:
			return "status-300"
		default:
			return "status-200"
		}
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Burrow Scan Report</title>
	<style>
		* { margin: 0; padding: 0; box-sizing: border-box; }
		body {
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
			background: #f5f5f5;
			padding: 20px;
			color: #333;
		}
		.container { max-width: 1400px; margin: 0 auto; background: white; padding: 30px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
		h1 { font-size: 24px; margin-bottom: 10px; color: #222; }
		.meta { color: #666; font-size: 14px; margin-bottom: 30px; }
		.stats {
			display: grid;
			grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
			gap: 15px;
			margin-bottom: 30px;
		}
		.stat-card { background: #f9f9f9; padding: 15px; border-radius: 6px; border-left: 3px solid #007bff; }
		.stat-value { font-size: 24px; font-weight: bold; color: #007bff; }
		.stat-label { font-size: 12px; color: #666; margin-top: 5px; }
		#searchInput { width: 100%; padding: 12px; font-size: 14px; border: 1px solid #ddd; border-radius: 6px; margin-bottom: 20px; }
		table { width: 100%; border-collapse: collapse; font-size: 14px; }
		th { background: #f0f0f0; padding: 12px; text-align: left; font-weight: 600; border-bottom: 2px solid #ddd; }
		td { padding: 10px 12px; border-bottom: 1px solid #eee; }
		tr:hover { background: #f9f9f9; }
		.status-200 { color: #28a745; font-weight: 600; }
		.status-300 { color: #007bff; font-weight: 600; }
		.status-400 { color: #dc3545; font-weight: 600; }
		.status-500 { color: #ffc107; font-weight: 600; }
		.badge { display: inline-block; padding: 3px 8px; border-radius: 4px; font-size: 11px; font-weight: 600; margin-left: 5px; }
		.badge-dir { background: #17a2b8; color: white; }
		.badge-waf { background: #6f42c1; color: white; }
		.badge-tech { background: #6c757d; color: white; }
		code { background: #f4f4f4; padding: 2px 6px; border-radius: 3px; font-family: monospace; font-size: 13px; }
	</style>
</head>
<body>
	<div class="container">
		<h1>Burrow Scan Report</h1>
		<div class="meta">Generated: {{.Generated}} &middot; burrow {{.Version}}</div>

		<div class="stats">
			<div class="stat-card"><div class="stat-value">{{len .Outcomes}}</div><div class="stat-label">Total Findings</div></div>
			<div class="stat-card"><div class="stat-value">{{index .Counts "2xx"}}</div><div class="stat-label">Success (2xx)</div></div>
			<div class="stat-card"><div class="stat-value">{{index .Counts "3xx"}}</div><div class="stat-label">Redirects (3xx)</div></div>
			<div class="stat-card"><div class="stat-value">{{index .Counts "directories"}}</div><div class="stat-label">Directories</div></div>
			<div class="stat-card"><div class="stat-value">{{index .Counts "waf"}}</div><div class="stat-label">WAF Detected</div></div>
		</div>

		<input type="text" id="searchInput" placeholder="Search findings...">

		<table id="resultsTable">
			<thead>
				<tr><th>Status</th><th>URL</th><th>Size</th><th>Words / Chars / Lines</th><th>Details</th></tr>
			</thead>
			<tbody>
			{{- range .Outcomes}}
				<tr>
					<td class="{{statusClass .StatusCode}}">{{.StatusCode}}</td>
					<td><code>{{.URL}}</code>{{if .Redirect}} &rarr; <code>{{.Redirect}}</code>{{end}}</td>
					<td>{{.Bytes}} bytes</td>
					<td>{{.Words}} / {{.Chars}} / {{.Lines}}</td>
					<td>
						{{- if .Directory}}<span class="badge badge-dir">DIR</span>{{end}}
						{{- if .WAF}}<span class="badge badge-waf">WAF: {{.WAF}}</span>{{end}}
						{{- range .Tech}}<span class="badge badge-tech">{{.}}</span>{{end}}
						{{- if .Server}} <code>{{.Server}}</code>{{end -}}
					</td>
				</tr>
			{{- end}}
			</tbody>
		</table>
	</div>

	<script>
		document.getElementById('searchInput').addEventListener('input', function(e) {
			const searchTerm = e.target.value.toLowerCase();
			document.querySelectorAll('#resultsTable tbody tr').forEach(row => {
				row.style.display = row.textContent.toLowerCase().includes(searchTerm) ? '' : 'none';
			});
		});
	</script>
</body>
</html>
`))

type htmlData struct {
	Generated string
	Version   string
	Outcomes  []scanner.Outcome
	Counts    map[string]int
}

func GenerateHTML(outcomes []scanner.Outcome, filename string) error {
	sorted := sortedCopy(outcomes)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return htmlReport.Execute(file, htmlData{
		Generated: time.Now().Format("2006-01-02 15:04:05"),
		Version:   config.Version,
		Outcomes:  sorted,
		Counts:    CountByStatus(sorted),
	})
}
