package api

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/trogers1052/alphastream-pipeline/internal/models"
	"go.uber.org/zap"
)

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"date": func(d models.DashboardRow) string { return d.PriceDate.Format("2006-01-02") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AlphaStream Quant Terminal</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 2rem; }
.summary { display: flex; gap: 3rem; margin-bottom: 1.5rem; }
.summary div span { display: block; font-size: 1.8rem; font-weight: bold; }
table { border-collapse: collapse; width: 100%; }
th, td { padding: 0.4rem 0.8rem; border-bottom: 1px solid #ddd; text-align: left; }
td.BUY { background: #2ecc71; font-weight: bold; }
td.HOLD { background: #f1c40f; font-weight: bold; }
</style>
</head>
<body>
<h1>AlphaStream Quant Terminal</h1>
{{if .Rows}}
<div class="summary">
  <div>Assets Tracked<span>{{.Summary.AssetsTracked}}</span></div>
  <div>Top Sharpe Asset<span>{{.Summary.TopSharpeTicker}}</span></div>
  <div>Active BUY Signals<span>{{.Summary.ActiveBuySignals}}</span></div>
</div>
<table>
<thead><tr><th>Ticker</th><th>Company</th><th>Date</th><th>Signal</th><th>Sharpe Ratio</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{.Ticker}}</td><td>{{.CompanyName}}</td><td>{{date .}}</td><td class="{{.SignalType}}">{{.SignalType}}</td><td>{{.SharpeRatio.StringFixed 2}}</td></tr>
{{end}}</tbody>
</table>
<p><small>Generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</small></p>
{{else}}
<p>No data found. Run the ingest and analyze commands first.</p>
{{end}}
</body>
</html>
`))

// DashboardPage handles GET /
func (h *Handler) DashboardPage(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard(r.Context())
	if err != nil {
		h.log.Error("failed to load dashboard", zap.Error(err))
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, d); err != nil {
		h.log.Error("failed to render dashboard", zap.Error(err))
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
