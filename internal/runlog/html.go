package runlog

import (
	"fmt"
	"html/template"
	"log/slog"
	"strings"
)

type row struct {
	Time    string
	Level   string
	Class   string
	Message string
	Attrs   string
}

type pageData struct {
	Entries []row
}

func toRows(entries []Entry) []row {
	out := make([]row, 0, len(entries))
	for _, e := range entries {
		var attrs []string
		for _, a := range e.Attrs {
			attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value.Resolve()))
		}
		name := LevelName(e.Level)
		out = append(out, row{
			Time:    e.Time.Format("2006-01-02 15:04:05.000"),
			Level:   name,
			Class:   levelClass(e.Level),
			Message: e.Message,
			Attrs:   strings.Join(attrs, " "),
		})
	}
	return out
}

func levelClass(l slog.Level) string {
	switch {
	case l == LevelSuccess:
		return "success"
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warning"
	case l < slog.LevelInfo:
		return "debug"
	default:
		return "info"
	}
}

var page = template.Must(template.New("runlog").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Slotbooker run log</title>
<style>
body { font-family: monospace; font-size: 13px; }
td { padding: 2px 8px; vertical-align: top; }
.success { color: #1a7f37; }
.warning { color: #9a6700; }
.error { color: #cf222e; }
.debug { color: #6e7781; }
</style>
</head>
<body>
<table>
{{range .Entries}}<tr class="{{.Class}}"><td>{{.Time}}</td><td>{{.Level}}</td><td>{{.Message}}</td><td>{{.Attrs}}</td></tr>
{{end}}</table>
</body>
</html>
`))
