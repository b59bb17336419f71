package variants

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/aegis-longterm/internal/contracts"
)

// File is the on-disk catalog layout
type File struct {
	Defaults map[string]string  `yaml:"defaults" json:"defaults"`
	Variants map[string][]Entry `yaml:"variants" json:"variants"`
}

// Entry is one versioned variant in a catalog file
type Entry struct {
	Version         string                  `yaml:"version" json:"version"`
	Query           string                  `yaml:"query" json:"query"`
	Weight          float64                 `yaml:"weight" json:"weight"`
	ExpectedResults contracts.ExpectedCount `yaml:"expected_results" json:"expected_results"`
	Description     string                  `yaml:"description" json:"description"`
}

// Load reads a YAML catalog and builds a registry
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML catalog from memory
func Parse(data []byte) (*Registry, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode variant catalog: %w", err)
	}

	return New(&file)
}

// LoadOrDefault loads path, or returns the built-in catalog when path is empty
func LoadOrDefault(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
