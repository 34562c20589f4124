// Package config loads the pipeline configuration from an optional YAML
// file with WDKG_-prefixed environment-variable overrides. Precedence is
// env > yaml > default.
package config

import (
	"fmt"
	"os"

	"wdkg/internal/util"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Modeling  ModelingConfig  `yaml:"modeling"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" validate:"required"`
}

type IngestionConfig struct {
	// Company is the organization whose disclosures the graph models.
	Company string `yaml:"company" validate:"required"`
	// StartYear/EndYear bound the quarter range signals are computed for.
	StartYear    int `yaml:"start_year" validate:"required,min=1990"`
	EndYear      int `yaml:"end_year" validate:"required,gtefield=StartYear"`
	ParallelDocs int `yaml:"parallel_docs" validate:"min=1"`
}

type ModelingConfig struct {
	// TrainEndYear/ValidationEndYear define the chronological split:
	// train through TrainEndYear Q4, validation through ValidationEndYear
	// Q4, test afterwards.
	TrainEndYear      int    `yaml:"train_end_year" validate:"required"`
	ValidationEndYear int    `yaml:"validation_end_year" validate:"required,gtfield=TrainEndYear"`
	LabelsPath        string `yaml:"labels_path"`
}

type PipelineConfig struct {
	OutputDir string `yaml:"output_dir" validate:"required"`
}

type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

func defaults() Config {
	return Config{
		Database:  DatabaseConfig{URL: "postgres://localhost:5432/wdkg"},
		Ingestion: IngestionConfig{Company: "Workday", StartYear: 2015, EndYear: 2025, ParallelDocs: 2},
		Modeling:  ModelingConfig{TrainEndYear: 2019, ValidationEndYear: 2021},
		Pipeline:  PipelineConfig{OutputDir: "data/processed"},
	}
}

// Load reads the config file at path (missing file is fine — defaults
// apply) and applies environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No file: defaults plus env overrides.
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Database.URL = util.GetEnvString("WDKG_DATABASE_URL", cfg.Database.URL)
	cfg.Ingestion.Company = util.GetEnvString("WDKG_COMPANY", cfg.Ingestion.Company)
	cfg.Ingestion.StartYear = util.GetEnvInt("WDKG_START_YEAR", cfg.Ingestion.StartYear)
	cfg.Ingestion.EndYear = util.GetEnvInt("WDKG_END_YEAR", cfg.Ingestion.EndYear)
	cfg.Ingestion.ParallelDocs = util.GetEnvInt("WDKG_PARALLEL_DOCS", cfg.Ingestion.ParallelDocs)
	cfg.Modeling.TrainEndYear = util.GetEnvInt("WDKG_TRAIN_END", cfg.Modeling.TrainEndYear)
	cfg.Modeling.ValidationEndYear = util.GetEnvInt("WDKG_VALIDATION_END", cfg.Modeling.ValidationEndYear)
	cfg.Modeling.LabelsPath = util.GetEnvString("WDKG_LABELS_PATH", cfg.Modeling.LabelsPath)
	cfg.Pipeline.OutputDir = util.GetEnvString("WDKG_OUTPUT_DIR", cfg.Pipeline.OutputDir)
	cfg.Logging.Debug = util.GetEnvBool("WDKG_DEBUG", cfg.Logging.Debug)
}
