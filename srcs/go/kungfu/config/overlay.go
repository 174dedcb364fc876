package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Env is a set of configuration values keyed by environment variable name.
// Values found in it take precedence over the process environment.
type Env map[string]string

func (e Env) Getenv(key string) string {
	if val, ok := e[key]; ok {
		return val
	}
	return os.Getenv(key)
}

// LoadYAML reads a flat YAML mapping such as
//
//	BARRIER_ALGO: dissemination
//	TREE_DEGREE: 4
func LoadYAML(filename string) (Env, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseYAML(bs)
}

func ParseYAML(bs []byte) (Env, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return nil, err
	}
	e := make(Env)
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			e[k] = v
		case int, bool, float64:
			e[k] = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("config key %s: unsupported value %v", k, v)
		}
	}
	return e, nil
}
