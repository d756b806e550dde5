package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalConfig = `sectorflow:
  name: "TestApp"
  version: "1.0"
data:
  headline_file: "data/headlines.csv"
  price_dir: "data/prices"
  start_date: "2020-01-01"
  end_date: "2020-12-31"
  sectors:
    - name: XLE
    - name: XLF
      price_file: "data/prices/financials.csv"
storage:
  s3:
    enabled: false
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Sectorflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Sectorflow.Name)
	}
	if cfg.Pipeline.MaxWorkers != 4 {
		t.Errorf("unexpected default max workers: %d", cfg.Pipeline.MaxWorkers)
	}
	if cfg.Calendar.SlackDays != 10 {
		t.Errorf("unexpected default slack days: %d", cfg.Calendar.SlackDays)
	}
	if !cfg.Writer.Formats.CSV.Enabled {
		t.Error("csv output should default to enabled")
	}

	start, end, err := cfg.DateRange()
	if err != nil {
		t.Fatalf("DateRange failed: %v", err)
	}
	if start != time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected start: %v", start)
	}
	if end != time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected end: %v", end)
	}

	policies, err := cfg.Policies()
	if err != nil {
		t.Fatalf("Policies failed: %v", err)
	}
	if len(policies) != 4 {
		t.Errorf("expected all four policies by default, got %d", len(policies))
	}
}

func TestPoliciesBySlugAndVersion(t *testing.T) {
	content := minimalConfig + `pipeline:
  max_workers: 2
  min_headlines: 3
  policies: ["weekends_aggregated_no_embedding", "v2"]
`
	cfg, err := LoadConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	policies, err := cfg.Policies()
	if err != nil {
		t.Fatalf("Policies failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}
	if policies[0].Version() != "v3" {
		t.Errorf("unexpected first policy: %s", policies[0])
	}
	if policies[1].Version() != "v2" {
		t.Errorf("unexpected second policy: %s", policies[1])
	}
	if cfg.Pipeline.MinHeadlines != 3 {
		t.Errorf("unexpected min headlines: %d", cfg.Pipeline.MinHeadlines)
	}
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	content := minimalConfig + `pipeline:
  max_workers: 1
  min_headlines: 1
  policies: ["weekdays_only"]
`
	if _, err := LoadConfig(writeTempConfig(t, content)); err == nil {
		t.Fatal("expected unknown policy to fail validation")
	}
}

func TestLoadConfigRejectsMissingSectors(t *testing.T) {
	content := `sectorflow:
  name: "TestApp"
  version: "1.0"
data:
  headline_file: "data/headlines.csv"
  start_date: "2020-01-01"
  end_date: "2020-12-31"
`
	if _, err := LoadConfig(writeTempConfig(t, content)); err == nil {
		t.Fatal("expected missing sectors to fail validation")
	}
}

func TestLoadConfigRejectsInvertedDateRange(t *testing.T) {
	content := `sectorflow:
  name: "TestApp"
  version: "1.0"
data:
  headline_file: "data/headlines.csv"
  price_dir: "data/prices"
  start_date: "2020-12-31"
  end_date: "2020-01-01"
  sectors:
    - name: XLE
`
	if _, err := LoadConfig(writeTempConfig(t, content)); err == nil {
		t.Fatal("expected inverted date range to fail validation")
	}
}

func TestSectorPriceFilePath(t *testing.T) {
	s := SectorConfig{Name: "XLE"}
	if got := s.PriceFilePath("data/prices"); got != "data/prices/XLE.csv" {
		t.Errorf("unexpected conventional path: %s", got)
	}
	s.PriceFile = "elsewhere/energy.csv"
	if got := s.PriceFilePath("data/prices"); got != "elsewhere/energy.csv" {
		t.Errorf("explicit price_file should win: %s", got)
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}
