package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/fret-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"channelState": func(cs status.ChannelStatus) string {
		if !cs.Sampled {
			return "UNKNOWN"
		}
		return string(cs.State)
	},
	"lower": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Fret Sensor</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Fret Sensor</h1>

<h2>Channels</h2>
<table id="channels">
<tr><th>Path</th><th>Pin</th><th>Raw</th><th>State</th></tr>
{{range .Channels}}{{$st := channelState .}}<tr>
<td>/frets/{{.Index}}{{if .Actuated}} (LED){{end}}</td>
<td>{{.Pin}}</td>
<td>{{if .Sampled}}{{.Raw}}{{else}}-{{end}}</td>
<td class="{{lower $st}}">{{$st}}{{if .LastErr}} <small title="{{.LastErr}}">(last publish failed)</small>{{end}}</td>
</tr>
{{end}}</table>

<h2>Store</h2>
<table>
<tr><th>Kind</th><td>{{.Config.Store}}</td></tr>
<tr><th>Target</th><td>{{.Config.Target}}</td></tr>
<tr><th>Session</th><td class="{{if .SessionReady}}connected{{else}}disconnected{{end}}">{{if .SessionReady}}ready{{else}}not ready{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Transitions</th><td>{{.Counts.Transitions}}</td></tr>
<tr><th>Published</th><td>{{.Counts.Published}}</td></tr>
<tr><th>Failed</th><td>{{.Counts.Failed}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Threshold</th><td>{{.Config.Threshold}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a>{{if .Metrics}} | <a href="/metrics">metrics</a>{{end}}</p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, metrics bool) error {
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Metrics bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Metrics:  metrics,
	}
	return indexTmpl.Execute(w, data)
}
