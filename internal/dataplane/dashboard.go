package dataplane

import (
	"html/template"
	"os"
	"syscall"

	"github.com/stanley-fork/unport/internal/registry"
)

type dashboardRow struct {
	Domain     string
	URL        string
	Port       uint16
	Running    bool
	StatusText string
}

type dashboardView struct {
	Rows []dashboardRow
}

func dashboardData(bindings []registry.Binding) dashboardView {
	rows := make([]dashboardRow, len(bindings))
	for i, b := range bindings {
		running := processAlive(b.Pid)
		status := "stopped"
		if running {
			status = "running"
		}
		rows[i] = dashboardRow{
			Domain:     b.Domain,
			URL:        "http://" + b.Domain,
			Port:       b.Port,
			Running:    running,
			StatusText: status,
		}
	}
	return dashboardView{Rows: rows}
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>unport</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
         background: #0a0a0a; color: #e5e5e5; min-height: 100vh; padding: 40px 20px; }
  .container { max-width: 800px; margin: 0 auto; }
  h1 { font-size: 28px; font-weight: 600; color: #fff; margin-bottom: 8px; }
  .subtitle { color: #666; font-size: 14px; margin-bottom: 32px; }
  table { width: 100%; border-collapse: collapse; background: #141414; border-radius: 8px; overflow: hidden; }
  th { text-align: left; padding: 12px 16px; font-size: 12px; color: #666;
       text-transform: uppercase; letter-spacing: 0.5px; border-bottom: 1px solid #222; }
  td { padding: 16px; border-bottom: 1px solid #1a1a1a; font-size: 14px; }
  tr:last-child td { border-bottom: none; }
  .url { font-family: 'SF Mono', Monaco, 'Courier New', monospace; color: #3b82f6; }
  .dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-right: 8px; }
  .dot-running { background: #22c55e; }
  .dot-stopped { background: #ef4444; }
  .actions { display: flex; gap: 8px; }
  .btn { padding: 6px 12px; border-radius: 4px; font-size: 12px; font-weight: 500;
         cursor: pointer; text-decoration: none; border: none; }
  .btn-copy { background: #222; color: #e5e5e5; border: 1px solid #333; }
  .btn-go { background: #3b82f6; color: #fff; }
  .btn-kill { background: #dc2626; color: #fff; }
  .empty { text-align: center; color: #666; padding: 40px 16px; }
  code { background: #222; padding: 2px 6px; border-radius: 4px; font-size: 13px; }
</style>
</head>
<body>
<div class="container">
  <h1>unport</h1>
  <p class="subtitle">Local development services</p>
  <table>
    <thead>
      <tr><th>Status</th><th>URL</th><th>Port</th><th>Actions</th></tr>
    </thead>
    <tbody>
      {{if .Rows}}
        {{range .Rows}}
        <tr id="row-{{.Domain}}">
          <td><span class="dot dot-{{.StatusText}}"></span>{{.StatusText}}</td>
          <td class="url">{{.URL}}</td>
          <td>{{.Port}}</td>
          <td class="actions">
            <button class="btn btn-copy" onclick="copyToClipboard('{{.URL}}')">Copy</button>
            <a href="{{.URL}}" class="btn btn-go" target="_blank">Open</a>
            <button class="btn btn-kill" onclick="killService('{{.Domain}}')">Kill</button>
          </td>
        </tr>
        {{end}}
      {{else}}
        <tr><td colspan="4" class="empty">No services running. Start one with <code>unport start</code></td></tr>
      {{end}}
    </tbody>
  </table>
</div>
<script>
function copyToClipboard(text) { navigator.clipboard.writeText(text); }
function killService(domain) {
  if (!confirm('Kill ' + domain + '?')) return;
  fetch('/api/kill/' + domain, { method: 'POST' })
    .then(r => r.json())
    .then(data => {
      if (data.ok) {
        const row = document.getElementById('row-' + domain);
        if (row) row.remove();
      }
    });
}
</script>
</body>
</html>`))
