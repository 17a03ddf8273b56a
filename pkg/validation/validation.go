package validation

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/vinodismyname/parkstats/pkg/pagination"
)

var (
	v       *validator.Validate
	once    sync.Once
	monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

var inputExts = map[string]struct{}{
	".xlsx": {}, ".xlsm": {}, ".xltx": {}, ".xltm": {}, ".xls": {}, ".csv": {},
}

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// Custom: spreadsheet path or upload name must have a decodable extension
		_ = v.RegisterValidation("upload_ext", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return false
			}
			_, ok := inputExts[strings.ToLower(filepath.Ext(s))]
			return ok
		})
		// Custom: month in YYYY-MM form
		_ = v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
			return monthRe.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		// Custom: cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			// Quick URL-safe base64 precheck
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			if _, err := pagination.DecodeCursor(s); err != nil {
				return false
			}
			return true
		})
	})
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "required_without":
				if field == "paths" {
					return "VALIDATION: paths is required (or supply cursor)"
				}
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "upload_ext":
				return "VALIDATION: files must be spreadsheets (.xlsx, .xlsm, .xltx, .xltm, .xls, .csv)"
			case "month":
				return "VALIDATION: month must look like 2024-01"
			case "oneof":
				return fmt.Sprintf("VALIDATION: %s must be one of %s", field, fe.Param())
			case "cursor":
				return "CURSOR_INVALID: failed to decode cursor; restart pagination without a cursor"
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			}
			// Fallback generic
			return fmt.Sprintf("VALIDATION: invalid %s", field)
		}
		return "VALIDATION: invalid inputs"
	}
	return ""
}
