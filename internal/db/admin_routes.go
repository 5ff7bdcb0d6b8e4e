package db

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

const chartAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// defaultChartWindow is how far back /debug/scan-chart looks without ?hours=.
const defaultChartWindow = 24 * time.Hour

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://scanwedge.db", db.DB, &tailsql.DBOptions{
		Label: "Scan history",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the scan history now", http.HandlerFunc(db.handleBackup))
	debug.Handle("scan-chart", "Scans per minute", http.HandlerFunc(db.handleScanChart))
}

func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	backupName := fmt.Sprintf("backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(os.TempDir(), backupName)
	if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	// close the backup file after sending it
	// and remove it from the filesystem
	defer func() {
		backupFile.Close()
		if err := os.Remove(backupPath); err != nil {
			logf("Failed to remove backup file: %v", err)
		}
	}()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", backupName))
	w.Header().Set("Content-Type", "application/gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		logf("Failed to write backup file: %v", err)
	}
}

// handleScanChart renders a bar chart of scans per minute.
// Query params:
//   - hours (optional; default 24) window to chart
func (db *DB) handleScanChart(w http.ResponseWriter, r *http.Request) {
	window := defaultChartWindow
	if h := r.URL.Query().Get("hours"); h != "" {
		if v, err := strconv.Atoi(h); err == nil && v > 0 && v <= 24*31 {
			window = time.Duration(v) * time.Hour
		}
	}

	since := time.Now().Add(-window)
	counts, err := db.ScanCountsByMinute(since)
	if err != nil {
		http.Error(w, fmt.Sprintf("query failed: %v", err), http.StatusInternalServerError)
		return
	}

	x := make([]string, 0, len(counts))
	y := make([]opts.BarData, 0, len(counts))
	total := 0
	for _, c := range counts {
		x = append(x, c.Minute.Local().Format("01-02 15:04"))
		y = append(y, opts.BarData{Value: c.Count})
		total += c.Count
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Scans", Width: "100%", Height: "600px", AssetsHost: chartAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Scans per minute", Subtitle: fmt.Sprintf("since %s, %d scans", since.Format(time.RFC3339), total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	bar.SetXAxis(x).AddSeries("scans", y)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
