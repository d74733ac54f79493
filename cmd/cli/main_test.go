package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riverview/internal/testkit"
)

func riverServer(t *testing.T, rows int) *httptest.Server {
	t.Helper()
	cfg := testkit.DefaultStreamConfig()
	cfg.Rows = rows
	cfg.NullEvery = 10
	body, err := testkit.NewStreamGenerator(cfg).JSON()
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/data.json") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "ERROR")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunWritesCSV(t *testing.T) {
	server := riverServer(t, 30)
	dir := t.TempDir()

	_, err := execute(t, "-u", server.URL, "-r", "chicago-beach-weather", "-s", "Oak Street Weather Station",
		"-f", "solar_radiation", "-o", dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "solar_radiation_out.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, "timestamp,value,prediction,anomaly_score,anomaly_likelihood", lines[0])
	assert.Len(t, lines, 1+27, "three null rows are skipped")
	assert.True(t, strings.HasSuffix(lines[1], ",1,0.5"), "first record is fully anomalous and probationary: %s", lines[1])
}

func TestRunUnknownField(t *testing.T) {
	server := riverServer(t, 5)

	_, err := execute(t, "-u", server.URL, "-f", "wind_speed", "-o", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `The field name "wind_speed" does not exist in the given stream.`)
}

func TestRunMissingStream(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := execute(t, "-u", server.URL, "-o", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The River or stream provided does not exist")
}

func TestRunRejectsBadFormat(t *testing.T) {
	_, err := execute(t, "--format", "parquet")
	assert.Error(t, err)
}

func TestFormatFlagOverridesInvalidEnv(t *testing.T) {
	server := riverServer(t, 10)
	dir := t.TempDir()
	t.Setenv("OUTPUT_FORMAT", "parquet")

	_, err := execute(t, "-u", server.URL, "-f", "solar_radiation", "-o", dir, "--format", "csv")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "solar_radiation_out.csv"))
	assert.NoError(t, err)
}

func TestInspect(t *testing.T) {
	server := riverServer(t, 24)

	out, err := execute(t, "inspect", "-u", server.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "solar_radiation")
	assert.Contains(t, out, "24 rows")
}

func TestParamsWithRange(t *testing.T) {
	out, err := execute(t, "params", "--min=-5", "--max=1030")
	require.NoError(t, err)
	assert.Contains(t, out, "predictedField: value")
	assert.Contains(t, out, "minval: -5")
	assert.Contains(t, out, "maxval: 1030")
}
