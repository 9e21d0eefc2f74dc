// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the ingestion pipeline.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Buckets  BucketsConfig  `mapstructure:"buckets"`
	Registry RegistryConfig `mapstructure:"registry"`
	Services ServicesConfig `mapstructure:"services"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

// StorageConfig describes the S3-compatible object store the pipeline
// watches and writes to.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	URLStyle  string `mapstructure:"url_style"`
	Insecure  bool   `mapstructure:"insecure"`
}

// BucketsConfig names the storage locations the pipeline uses. All of them
// are created at startup if absent.
type BucketsConfig struct {
	Inbox          string `mapstructure:"inbox"`
	Quarantine     string `mapstructure:"quarantine"`
	Accepted       string `mapstructure:"accepted"`
	Archive        string `mapstructure:"archive"`
	Processed      string `mapstructure:"processed"`
	Transformation string `mapstructure:"transformation"`
	Gold           string `mapstructure:"gold"`
}

// All returns every bucket that must exist before the pipeline starts.
func (b BucketsConfig) All() []string {
	return []string{b.Inbox, b.Quarantine, b.Accepted, b.Archive, b.Processed, b.Transformation, b.Gold}
}

type RegistryConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServicesConfig points at the extraction collaborators (OCR, transcription,
// translation, schema extraction), which all live behind one base URL.
type ServicesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	OCRLanguages   string        `mapstructure:"ocr_languages"`
	TranscribeLang string        `mapstructure:"transcribe_lang"`
	SourceLang     string        `mapstructure:"source_lang"`
	TargetLang     string        `mapstructure:"target_lang"`
}

type PipelineConfig struct {
	Workers            int           `mapstructure:"workers"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	PopTimeout         time.Duration `mapstructure:"pop_timeout"`
	SchemaDelay        time.Duration `mapstructure:"schema_delay"`
	NullRatioThreshold float64       `mapstructure:"null_ratio_threshold"`
}

type AuditConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Region:   "us-east-1",
			URLStyle: "path",
		},
		Buckets: BucketsConfig{
			Inbox:          "inbox",
			Quarantine:     "staging",
			Accepted:       "input",
			Archive:        "archive",
			Processed:      "bronze",
			Transformation: "transformation",
			Gold:           "gold",
		},
		Registry: RegistryConfig{
			Timeout: 15 * time.Second,
		},
		Services: ServicesConfig{
			Timeout:        5 * time.Minute,
			OCRLanguages:   "ces+eng",
			TranscribeLang: "cs",
			SourceLang:     "cs",
			TargetLang:     "en",
		},
		Pipeline: PipelineConfig{
			Workers:            1,
			PollInterval:       5 * time.Second,
			PopTimeout:         time.Second,
			SchemaDelay:        5 * time.Second,
			NullRatioThreshold: 0.75,
		},
		Audit: AuditConfig{
			DBPath: "inletrunner-audit.db",
		},
	}
}

// Load reads configuration from an optional config file and environment
// variables. Environment variables use the prefix "INLETRUNNER" and the dot
// character in keys is replaced by an underscore. For example,
// "storage.endpoint" becomes "INLETRUNNER_STORAGE_ENDPOINT".
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("INLETRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
