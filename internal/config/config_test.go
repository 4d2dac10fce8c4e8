package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/config"
	"github.com/boddenberg/txsim-bench-go/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Radius != 5 {
		t.Errorf("expected radius 5, got %v", cfg.Radius)
	}
	if !cfg.StartDate.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date %v", cfg.StartDate)
	}
	if len(cfg.Templates) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(cfg.Templates))
	}
	want := domain.DatasetTemplate{Size: 100, Customers: 2500, Terminals: 5000, Days: 365}
	if cfg.Templates[0] != want {
		t.Errorf("expected %+v, got %+v", want, cfg.Templates[0])
	}
	if cfg.Neo4jURIFor(200) != "neo4j://neo4j_200:7687" {
		t.Errorf("unexpected neo4j uri %q", cfg.Neo4jURIFor(200))
	}
	if cfg.MaxAPICustomers != 10000 || cfg.MaxAPITerminals != 20000 || cfg.MaxAPIDays != 730 {
		t.Errorf("unexpected api caps %d/%d/%d", cfg.MaxAPICustomers, cfg.MaxAPITerminals, cfg.MaxAPIDays)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("RADIUS", "7.5")
	t.Setenv("START_DATE", "2023-06-01")
	t.Setenv("DATASET_TEMPLATES", "1=10:20:30")
	t.Setenv("NEO4J_URI", "bolt://localhost:7687")
	t.Setenv("MAX_API_TERMINALS", "50")
	t.Setenv("MAX_API_DAYS", "14")

	cfg := config.Load()

	if cfg.Radius != 7.5 {
		t.Errorf("expected radius 7.5, got %v", cfg.Radius)
	}
	if cfg.StartDate.Format(config.DateLayout) != "2023-06-01" {
		t.Errorf("unexpected start date %v", cfg.StartDate)
	}
	if len(cfg.Templates) != 1 || cfg.Templates[0].Days != 30 {
		t.Errorf("unexpected templates %+v", cfg.Templates)
	}
	if cfg.Neo4jURIFor(1) != "bolt://localhost:7687" {
		t.Errorf("unexpected neo4j uri %q", cfg.Neo4jURIFor(1))
	}
	if cfg.MaxAPITerminals != 50 || cfg.MaxAPIDays != 14 {
		t.Errorf("unexpected api caps %d/%d", cfg.MaxAPITerminals, cfg.MaxAPIDays)
	}
}

func TestParseTemplates(t *testing.T) {
	got, err := config.ParseTemplates("300=3:4:5; 100=1:2:3 ;")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 || got[0].Size != 100 || got[1].Size != 300 {
		t.Errorf("expected sorted templates, got %+v", got)
	}

	for _, bad := range []string{"100", "100=1:2", "x=1:2:3", "100=1:b:3"} {
		if _, err := config.ParseTemplates(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nTXSIM_TEST_A=\"quoted\"\nexport TXSIM_TEST_B=plain\nnot-a-pair\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TXSIM_TEST_B", "from-env")
	os.Unsetenv("TXSIM_TEST_A")
	t.Cleanup(func() { os.Unsetenv("TXSIM_TEST_A") })

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v := os.Getenv("TXSIM_TEST_A"); v != "quoted" {
		t.Errorf("expected 'quoted', got %q", v)
	}
	if v := os.Getenv("TXSIM_TEST_B"); v != "from-env" {
		t.Errorf("existing env var was overridden: %q", v)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
