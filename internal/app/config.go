package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BAT6188/libcamera2/pkg/shell"
	"github.com/BAT6188/libcamera2/pkg/yaml"
)

const defaultConfig = "libcamera2.yaml"

// layer is one -config argument after parsing.
type layer struct {
	source string // file path, "inline" or "flag"
	data   []byte
}

var layers []layer

var errNoConfigFile = errors.New("app: config file disabled")

// LoadConfig applies every config layer to v in command line order.
// Later layers override earlier ones key by key.
func LoadConfig(v any) {
	for _, l := range layers {
		if err := yaml.Unmarshal(l.data, v); err != nil {
			Logger.Warn().Err(err).Str("source", l.source).Msg("[app] read config")
		}
	}
}

// PatchConfig changes one key in the config file keeping its formatting.
func PatchConfig(key string, value any, path ...string) error {
	if ConfigPath == "" {
		return errNoConfigFile
	}

	// missing file starts from an empty document
	b, err := os.ReadFile(ConfigPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if b, err = yaml.Patch(b, key, value, path...); err != nil {
		return err
	}

	return os.WriteFile(ConfigPath, b, 0644)
}

type flagConfig []string

func (c *flagConfig) String() string {
	return strings.Join(*c, " ")
}

func (c *flagConfig) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func initConfig(confs flagConfig) {
	if confs == nil {
		confs = flagConfig{defaultConfig}
	}

	for _, conf := range confs {
		switch {
		case conf == "":
		case conf[0] == '{':
			layers = append(layers, layer{source: "inline", data: []byte(conf)})
		case strings.IndexByte(conf, '=') > 0 && !strings.ContainsRune(conf, os.PathSeparator):
			if data := parseConfString(conf); data != nil {
				layers = append(layers, layer{source: "flag", data: data})
			}
		default:
			// the first file is the one PatchConfig writes to
			if ConfigPath == "" {
				ConfigPath = absPath(conf)
			}

			data, err := os.ReadFile(conf)
			if err != nil {
				continue
			}

			data = []byte(shell.ReplaceEnvVars(string(data)))
			layers = append(layers, layer{source: conf, data: data})
		}
	}

	if ConfigPath != "" {
		Info["config_path"] = ConfigPath
	}
}

func absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, path)
	}
	return path
}

// parseConfString turns `camera.picture.quality=80` into a YAML document
// with the value nested under every dotted key.
func parseConfString(s string) []byte {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return nil
	}

	keys := strings.Split(s[:i], ".")
	if len(keys) < 2 {
		return nil
	}

	var value any
	if err := yaml.Unmarshal([]byte(s[i+1:]), &value); err != nil || value == nil {
		value = s[i+1:]
	}

	for j := len(keys) - 1; j >= 0; j-- {
		if keys[j] == "" {
			return nil
		}
		value = map[string]any{keys[j]: value}
	}

	b, err := yaml.Encode(value, 2)
	if err != nil {
		return nil
	}
	return b
}
