// Package config loads the service options and the pipeline definitions.
// Option precedence: command line flags beat FRAMESYNC_* environment
// variables, which beat the TOML config file.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envPrefix namespaces the environment variables this service reads.
const envPrefix = "FRAMESYNC_"

// LoadConfig fills opts from the config file and the environment. Fields
// opt in through struct tags: `toml:"section.key"` maps a value from the
// file named by the Config field, `env:"KEY"` maps FRAMESYNC_KEY. Fields
// whose flag was set explicitly on cmd are left untouched. A missing
// config file is fine, a malformed one is an error.
//
// The options are flat strings, bools and ints; anything else is left
// alone.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	pinned := flagsSetOnCommandLine(cmd)

	fileValues, err := readConfigFile(configFilePath(v, t))
	if err != nil {
		return err
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i)
		if pinned[flagName(tag.Name)] || !field.CanSet() {
			continue
		}

		if key := tag.Tag.Get("toml"); key != "" && fileValues != nil {
			if raw, ok := lookupDotted(fileValues, key); ok {
				setFromTOML(field, raw)
			}
		}
		// Environment wins over the file.
		if key := tag.Tag.Get("env"); key != "" {
			if raw := os.Getenv(envPrefix + key); raw != "" {
				setFromString(field, raw)
			}
		}
	}
	return nil
}

// flagsSetOnCommandLine collects the names of flags the user passed
// explicitly. Those keep their CLI value through the load.
func flagsSetOnCommandLine(cmd *cobra.Command) map[string]bool {
	pinned := make(map[string]bool)
	if cmd == nil {
		return pinned
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			pinned[f.Name] = true
		}
	})
	return pinned
}

// configFilePath reads the Config field of the options struct.
func configFilePath(v reflect.Value, t reflect.Type) string {
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Name == "Config" {
			return v.Field(i).String()
		}
	}
	return ""
}

// readConfigFile parses the TOML config file into a nested map. A
// missing or unnamed file yields nil without error.
func readConfigFile(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}

	var values map[string]any
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return values, nil
}

// flagName converts a field name to its humacli flag name, e.g.
// "LoggingLevel" to "logging-level".
func flagName(fieldName string) string {
	var b strings.Builder
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookupDotted resolves a "section.key" path in the parsed TOML tree.
func lookupDotted(values map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := values
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	raw, ok := current[parts[len(parts)-1]]
	return raw, ok
}

// setFromTOML assigns a parsed TOML value to an option field. Values of
// the wrong type are ignored rather than failing the whole load.
func setFromTOML(field reflect.Value, raw any) {
	switch field.Kind() {
	case reflect.String:
		if s, ok := raw.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, ok := raw.(int64); ok {
			field.SetInt(i)
		}
	}
}

// setFromString assigns an environment variable value to an option field.
func setFromString(field reflect.Value, raw string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			field.SetInt(i)
		}
	}
}
