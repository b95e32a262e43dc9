package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/enrollgest/internal/blobstore"
	"github.com/dgallion1/enrollgest/internal/export"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"PORT", "WORKER_COUNT", "STORAGE_TYPE", "EXPORT_FORMATS", "TUNABLES_FILE", "TASK_TTL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, blobstore.TypeLocal, cfg.Storage.Type)
	assert.Equal(t, []export.Format{export.FormatCSV}, cfg.ExportFormats)
	assert.Equal(t, time.Hour, cfg.TaskTTL)
	assert.Equal(t, 10.0, cfg.Table.RowGapThreshold)
	assert.Equal(t, 5000, cfg.Analytics.GraduateFloor)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TUNABLES_FILE", "")
	t.Setenv("PORT", "9999")
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("MAX_CONCURRENT_FILES", "8")
	t.Setenv("TIMETABLE_MIN_INTERVAL", "2s")
	t.Setenv("PDF_VALIDATE", "true")
	t.Setenv("EXPORT_FORMATS", "xlsx,docx")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 2, cfg.WorkerCount, "non-positive worker count falls back")
	assert.Equal(t, 8, cfg.MaxConcurrentFiles)
	assert.Equal(t, 2*time.Second, cfg.TimetableMinInterval)
	assert.True(t, cfg.PDFValidate)
	assert.Equal(t, []export.Format{export.FormatCSV, export.FormatXLSX, export.FormatDOCX}, cfg.ExportFormats)
}

func TestLoad_UnknownExportFormat(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EXPORT_FORMATS", "pdf")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAX_QUEUE_SIZE=7\n"), 0o600))
	t.Setenv("TUNABLES_FILE", "")
	// godotenv does not override variables that are already set.
	t.Setenv("MAX_QUEUE_SIZE", "")
	os.Unsetenv("MAX_QUEUE_SIZE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxQueueSize)
}

func TestLoad_Tunables(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "tunables.yaml")
	yml := `
table:
  row_gap_threshold: 12.5
  column_tolerances:
    Seats: 7
analytics:
  underenrolled_threshold: 10
  ignored_names: ["Seminar"]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("TUNABLES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12.5, cfg.Table.RowGapThreshold)
	assert.Equal(t, 7.0, cfg.Table.ColumnTolerances["Seats"])
	assert.Equal(t, 15.0, cfg.Table.ColumnTolerances["Title"], "unset tolerances keep defaults")
	assert.Equal(t, 10, cfg.Analytics.UnderenrolledThreshold)
	assert.Equal(t, 5000, cfg.Analytics.GraduateFloor)
	assert.Equal(t, []string{"Seminar"}, cfg.Analytics.IgnoredNames)
}

func TestLoad_BadTunables(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("table: [1, 2"), 0o600))
	t.Setenv("TUNABLES_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		t.Chdir(t.TempDir())
		t.Setenv("TUNABLES_FILE", "")
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Storage.Type = blobstore.TypeS3
	assert.Error(t, cfg.Validate(), "s3 without bucket")
	cfg.Storage.S3Bucket = "bucket"
	assert.Error(t, cfg.Validate(), "s3 without region")
	cfg.Storage.S3Region = "us-east-1"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Type = "ftp"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.ResultTTL = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Table.ColumnTolerances["CRN"] = -1
	assert.Error(t, cfg.Validate())
}
