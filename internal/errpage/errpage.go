// Package errpage synthesizes the self-contained HTML documents the proxy
// serves when it cannot pass through an origin response.
//
// Documents are deterministic given (hostname, path, status, message) and
// carry only author-controlled strings; origin error detail and internal
// diagnostics never appear in a rendered page.
package errpage

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"
	"time"
)

// titles maps origin statuses to the human-readable page title.
var titles = map[int]string{
	http.StatusNotFound:            "Link Not Found",
	http.StatusInternalServerError: "Server Error",
	http.StatusBadGateway:          "Backend Unavailable",
	http.StatusServiceUnavailable:  "Service Unavailable",
}

// Title returns the page title for a status code, falling back to "Error".
func Title(status int) string {
	if t, ok := titles[status]; ok {
		return t
	}
	return "Error"
}

var pageTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Status}} — {{.Title}}</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;background:#f6f7f9;color:#1f2933;margin:0;display:flex;min-height:100vh;align-items:center;justify-content:center}
main{background:#fff;border-radius:12px;box-shadow:0 2px 12px rgba(31,41,51,.08);padding:48px 56px;max-width:480px;text-align:center}
h1{font-size:64px;margin:0;color:#9aa5b1}
h2{font-size:24px;margin:8px 0 16px}
p{color:#52606d;line-height:1.5}
code{background:#f6f7f9;border-radius:4px;padding:2px 6px;font-size:14px}
footer{margin-top:24px;font-size:12px;color:#9aa5b1}
</style>
</head>
<body>
<main>
<h1>{{.Status}}</h1>
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
<p><code>{{.Host}}{{.Path}}</code></p>
<footer>{{.Timestamp}}</footer>
</main>
</body>
</html>
`))

var landingTmpl = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Domain}}</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;background:#f6f7f9;color:#1f2933;margin:0;display:flex;min-height:100vh;align-items:center;justify-content:center}
main{background:#fff;border-radius:12px;box-shadow:0 2px 12px rgba(31,41,51,.08);padding:48px 56px;max-width:480px;text-align:center}
h1{font-size:28px;margin:0 0 16px}
p{color:#52606d;line-height:1.5}
</style>
</head>
<body>
<main>
<h1>{{.Domain}}</h1>
<p>This is a link-routing edge server. Short links on customer domains are resolved and forwarded from here.</p>
</main>
</body>
</html>
`))

type pageData struct {
	Status    int
	Title     string
	Message   string
	Host      string
	Path      string
	Timestamp string
}

// Render produces the error document for a failed request. The message must
// be an author-controlled string, never raw error text.
func Render(host, path string, status int, message string, now time.Time) []byte {
	var buf bytes.Buffer
	err := pageTmpl.Execute(&buf, pageData{
		Status:    status,
		Title:     Title(status),
		Message:   message,
		Host:      host,
		Path:      path,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		// The template is static and the data is plain values; keep a
		// last-resort plain body so the client always gets a document.
		return []byte(strconv.Itoa(status) + " " + Title(status))
	}
	return buf.Bytes()
}

// Landing produces the static informational page served on the platform
// default domain's root path.
func Landing(domain string) []byte {
	var buf bytes.Buffer
	if err := landingTmpl.Execute(&buf, struct{ Domain string }{Domain: domain}); err != nil {
		return []byte(domain)
	}
	return buf.Bytes()
}
