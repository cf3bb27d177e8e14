package cluster

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = "clusters.yaml"

var configDirFunc = configDir

// Cluster is one saved connection target. DSN is a go-sql-driver/mysql
// DSN pointing at a frontend node, e.g. "root:pw@tcp(fe1:9030)/".
type Cluster struct {
	Name string `yaml:"name"`
	DSN  string `yaml:"dsn"`
}

type Config struct {
	Default  string    `yaml:"default,omitempty"`
	Clusters []Cluster `yaml:"clusters"`
}

func Resolve(name string) (string, error) {
	cfg, err := load()
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no clusters configured")
		}
		return "", err
	}

	for _, c := range cfg.Clusters {
		if c.Name == name {
			return c.DSN, nil
		}
	}

	return "", fmt.Errorf("cluster %q not found", name)
}

func List() ([]Cluster, error) {
	cfg, err := load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return cfg.Clusters, nil
}

func Add(name, dsn string) error {
	cfg, err := load()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if cfg == nil {
		cfg = &Config{}
	}

	for i, c := range cfg.Clusters {
		if c.Name == name {
			cfg.Clusters[i].DSN = dsn
			return save(cfg)
		}
	}

	cfg.Clusters = append(cfg.Clusters, Cluster{Name: name, DSN: dsn})
	return save(cfg)
}

func Remove(name string) error {
	cfg, err := load()
	if err != nil {
		return err
	}

	for i, c := range cfg.Clusters {
		if c.Name == name {
			cfg.Clusters = append(cfg.Clusters[:i], cfg.Clusters[i+1:]...)
			if cfg.Default == name {
				cfg.Default = ""
			}
			return save(cfg)
		}
	}

	return fmt.Errorf("cluster %q not found", name)
}

func SetDefault(name string) error {
	cfg, err := load()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if cfg == nil {
		cfg = &Config{}
	}

	found := false
	for _, c := range cfg.Clusters {
		if c.Name == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("cluster %q not found", name)
	}

	cfg.Default = name
	return save(cfg)
}

func ClearDefault() error {
	cfg, err := load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cfg.Default = ""
	return save(cfg)
}

// ResolveDSN picks the connection target: an explicit DSN wins, then a
// named cluster, then the configured default. Empty means offline mode.
func ResolveDSN(dsn, clusterName string) (string, error) {
	if dsn != "" {
		return dsn, nil
	}
	if clusterName != "" {
		return Resolve(clusterName)
	}

	cfg, err := load()
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if cfg.Default != "" {
		return Resolve(cfg.Default)
	}

	return "", nil
}

// DefaultName returns the configured default cluster name, or "".
func DefaultName() (string, error) {
	cfg, err := load()
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return cfg.Default, nil
}

func load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return &cfg, nil
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("finding config directory: %w", err)
	}
	return filepath.Join(base, "srplan"), nil
}

func configPath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func save(cfg *Config) error {
	dir, err := configDirFunc()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}

	return nil
}
