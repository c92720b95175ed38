package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/bounce-recorder/internal/status"
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
	"micros": func(us uint64) string {
		return (time.Duration(us) * time.Microsecond).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Bounce Recorder</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.capturing { color: orange; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Bounce Recorder</h1>

<h2>Capture</h2>
<table>
<tr><th>Pin</th><td>{{.Config.Chip}}:{{.Config.Pin}}</td></tr>
<tr><th>State</th><td class="{{if .Capturing}}capturing{{else}}idle{{end}}">{{if .Capturing}}capturing{{else if .Armed}}waiting{{else}}disarmed{{end}}</td></tr>
<tr><th>Rest level</th><td>{{.StartState}}</td></tr>
<tr><th>Bursts</th><td>{{.Counts.Bursts}}</td></tr>
<tr><th>Edges</th><td>{{.Counts.Edges}}</td></tr>
<tr><th>Dropped</th><td>{{.Counts.Dropped}}</td></tr>
</table>

{{with .LastReport}}<h2>Last burst</h2>
<table>
<tr><th>At</th><td>{{$.LastReportAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Levels</th><td>{{.StartState}} &rarr; {{.FinalState}}{{if .FinalInferred}} (inferred){{end}}</td></tr>
<tr><th>Edges</th><td>{{len .Edges}}{{if .Dropped}} (+{{.Dropped}} dropped){{end}}</td></tr>
<tr><th>Duration</th><td>{{micros .Duration}}</td></tr>
</table>
<p><a href="/last.txt">raw</a></p>
{{end}}
<h2>Connectivity</h2>
<table>
<tr><th>Serial</th><td>{{if .Config.Serial}}{{.Config.Serial}}{{else}}stdout{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic</th><td>{{.Config.Topic}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Samples</th><td>{{.Config.Samples}}</td></tr>
<tr><th>Settle</th><td>{{micros .Config.SettleUs}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
