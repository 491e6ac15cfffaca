// Package dashboard serves the optional HTML status page at GET
// /dashboard. It is explicitly out of the control plane's core scope
// (spec §1: "the HTML admin UI... treated as external collaborators")
// and exists only as plain templating over C7's reporter output.
package dashboard

import (
	"html/template"
	"net/http"
	"time"

	"github.com/cogserve/cogserve/internal/health"
)

var page = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>cogserve status</title></head>
<body>
<h1>cogserve</h1>
<p>Generated at {{.GeneratedAt}}</p>
<table border="1" cellpadding="4">
<tr><th>Component</th><th>Status</th><th>Message</th></tr>
{{range .Results}}<tr><td>{{.Component}}</td><td>{{.Status}}</td><td>{{.Message}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type pageData struct {
	GeneratedAt string
	Results     []health.ProbeResult
}

// Handler returns an http.HandlerFunc rendering the reporter's current
// readiness state as an HTML page.
func Handler(reporter *health.Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := reporter.Ready(r.Context())
		data := pageData{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Results:     results,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := page.Execute(w, data); err != nil {
			http.Error(w, "rendering dashboard", http.StatusInternalServerError)
		}
	}
}
