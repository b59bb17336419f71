package variants

import (
	"fmt"

	"github.com/wonny/aegis-longterm/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required catalog constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(file *File) error {
	if file == nil {
		return ValidationError{"catalog", "required"}
	}

	for name := range file.Variants {
		if _, err := contracts.ParseCategory(name); err != nil {
			return ValidationError{"variants." + name, "unknown category"}
		}
	}
	for name := range file.Defaults {
		if _, err := contracts.ParseCategory(name); err != nil {
			return ValidationError{"defaults." + name, "unknown category"}
		}
	}

	for _, cat := range contracts.AllCategories {
		field := "variants." + string(cat)
		entries := file.Variants[string(cat)]
		if len(entries) == 0 {
			return ValidationError{field, "at least one version required"}
		}

		seen := make(map[string]bool, len(entries))
		for i, e := range entries {
			entryField := fmt.Sprintf("%s[%d]", field, i)
			if e.Version == "" {
				return ValidationError{entryField + ".version", "required"}
			}
			if seen[e.Version] {
				return ValidationError{entryField + ".version", fmt.Sprintf("duplicate version %q", e.Version)}
			}
			seen[e.Version] = true

			if e.Query == "" {
				return ValidationError{entryField + ".query", "required"}
			}
			if e.Weight < 0 || e.Weight > 1 {
				return ValidationError{entryField + ".weight", "must be in [0, 1]"}
			}
		}

		def := file.Defaults[string(cat)]
		if def == "" {
			return ValidationError{"defaults." + string(cat), "required"}
		}
		if !seen[def] {
			return ValidationError{"defaults." + string(cat), fmt.Sprintf("version %q not registered", def)}
		}
	}

	return nil
}
