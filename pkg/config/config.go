// Package config provides YAML configuration loading with environment variable override.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file into the given struct.
// It also applies environment variable overrides using struct tags.
func Load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	// Expand environment variables in the YAML
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	ApplyEnv(out)

	return nil
}

// LoadOrDefault tries to load config from path, falls back to the struct's
// current values if the file doesn't exist. Environment overrides are applied
// either way, so a config file is optional.
func LoadOrDefault(path string, out any) error {
	if path == "" {
		ApplyEnv(out)
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		ApplyEnv(out)
		return nil
	}
	return Load(path, out)
}

// ApplyEnv sets struct fields from environment variables.
// It uses the `env` struct tag to determine the env var name.
func ApplyEnv(v any) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)

		// Recurse into struct fields
		if fieldVal.Kind() == reflect.Struct && fieldVal.Type() != reflect.TypeOf(time.Time{}) {
			if fieldVal.CanAddr() {
				ApplyEnv(fieldVal.Addr().Interface())
			}
			continue
		}

		envTag := field.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envVal, ok := os.LookupEnv(envTag)
		if !ok {
			continue
		}

		if !fieldVal.CanSet() {
			continue
		}

		// time.Duration fields accept "30s", "5m" and the like.
		if fieldVal.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(envVal); err == nil {
				fieldVal.SetInt(int64(d))
			}
			continue
		}

		switch fieldVal.Kind() {
		case reflect.String:
			fieldVal.SetString(envVal)
		case reflect.Int, reflect.Int64:
			var n int64
			if _, err := fmt.Sscanf(envVal, "%d", &n); err == nil {
				fieldVal.SetInt(n)
			}
		case reflect.Float64:
			var f float64
			if _, err := fmt.Sscanf(envVal, "%f", &f); err == nil {
				fieldVal.SetFloat(f)
			}
		case reflect.Bool:
			fieldVal.SetBool(strings.EqualFold(envVal, "true") || envVal == "1")
		}
	}
}
