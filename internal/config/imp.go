package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ImpConfig configures the bulk enrollment tool.
type ImpConfig struct {
	Log     LogConfig   `yaml:"log"`
	Recog   RecogConfig `yaml:"recog"`
	Imp     ImpSection  `yaml:"imp"`
	DBPath  string      `yaml:"db_path"`
	ImgRoot string      `yaml:"img_root"`

	DetectWorker int `yaml:"detect_worker"`
	CreateWorker int `yaml:"create_worker"`
	CreateBatch  int `yaml:"create_batch"`
	SaveBatch    int `yaml:"save_batch"`
}

type RecogConfig struct {
	URL   string   `yaml:"url"`
	DbSid string   `yaml:"db_sid"`
	// Helper lists detect endpoints handed to detect workers round-robin.
	Helper []string `yaml:"helper"`
}

type ImpSection struct {
	ImgDir    string   `yaml:"img_dir"`
	FileExt   []string `yaml:"file_ext"`
	ImpTag    string   `yaml:"imp_tag"`
	SexFromID bool     `yaml:"sex_fromid"`
	Test      bool     `yaml:"test"`
	Threshold int      `yaml:"threshold"`
	SizeMin   int64    `yaml:"size_min"`
	Pattern   string   `yaml:"pattern"`
	Props     []string `yaml:"props"`
}

// LoadImp reads the enrollment tool configuration.
func LoadImp(path string) (*ImpConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg ImpConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.DetectWorker <= 0 {
		cfg.DetectWorker = 1
	}
	if cfg.CreateWorker <= 0 {
		cfg.CreateWorker = 1
	}
	if cfg.CreateBatch <= 0 {
		cfg.CreateBatch = 1
	}
	if cfg.SaveBatch <= 0 {
		cfg.SaveBatch = 1
	}

	return &cfg, nil
}
