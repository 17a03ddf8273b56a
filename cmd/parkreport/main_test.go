package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/parkstats/internal/config"
)

func writeLot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lot.csv")
	data := "CheckIn_Date,CheckOut_Date,Parking_Cost\n" +
		"2024-01-05 08:00,2024-01-05 10:00,10\n" +
		"2024-01-06 08:00,2024-01-06 09:00,20\n" +
		"2024-02-01 09:00,2024-02-01 12:00,30\n" +
		"not a date,,40\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestRun_PrintsSummary(t *testing.T) {
	var stdout bytes.Buffer
	err := run(context.Background(), config.Config{}, &stdout, []string{writeLot(t)}, "", "", "", false)
	require.NoError(t, err)

	out := stdout.String()
	require.Contains(t, out, "2024-01")
	require.Contains(t, out, "2024-02")
	require.Contains(t, out, "$15.00")
	require.Contains(t, out, "fechas inválidas: 1")
}

func TestRun_WritesExportAndReport(t *testing.T) {
	lot := writeLot(t)
	dir := t.TempDir()

	csvOut := filepath.Join(dir, "enero.csv")
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), config.Config{}, &stdout, []string{lot}, "2024-01", "", csvOut, true))
	data, err := os.ReadFile(csvOut)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, stdout.String(), "wrote "+csvOut)

	htmlOut := filepath.Join(dir, "report.html")
	require.NoError(t, run(context.Background(), config.Config{}, &stdout, []string{lot}, "", "", htmlOut, true))
	data, err = os.ReadFile(htmlOut)
	require.NoError(t, err)
	require.Contains(t, string(data), "data:image/png;base64,")
}

func TestRun_Errors(t *testing.T) {
	lot := writeLot(t)
	var stdout bytes.Buffer

	err := run(context.Background(), config.Config{}, &stdout, []string{lot}, "", "", filepath.Join(t.TempDir(), "out.json"), true)
	require.ErrorContains(t, err, "unsupported output extension")

	err = run(context.Background(), config.Config{}, &stdout, []string{lot}, "2023-05", "", filepath.Join(t.TempDir(), "out.csv"), true)
	require.Error(t, err)
}

func TestRun_AnalyzesInputsOnce(t *testing.T) {
	lot := writeLot(t)
	tests := []struct {
		name  string
		out   string
		month string
		event string
	}{
		{name: "export", out: "enero.csv", month: "2024-01", event: "selection exported"},
		{name: "report", out: "report.html", event: "report rendered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			ctx := zerolog.New(&logs).WithContext(context.Background())
			var stdout bytes.Buffer
			out := filepath.Join(t.TempDir(), tt.out)
			require.NoError(t, run(ctx, config.Config{}, &stdout, []string{lot}, tt.month, "", out, true))

			runIDs := map[string]string{}
			for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
				var entry struct {
					Message string `json:"message"`
					RunID   string `json:"run_id"`
				}
				require.NoError(t, json.Unmarshal([]byte(line), &entry))
				if entry.Message == "analysis completed" {
					require.Empty(t, runIDs["analysis"], "inputs analyzed more than once")
					runIDs["analysis"] = entry.RunID
				}
				if entry.Message == tt.event {
					runIDs["artifact"] = entry.RunID
				}
			}
			require.NotEmpty(t, runIDs["analysis"])
			require.Equal(t, runIDs["analysis"], runIDs["artifact"])
		})
	}
}
