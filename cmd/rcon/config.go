package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/Zereker/rcon"
)

// Config is the CLI configuration, loadable from a TOML file and
// overridable by flags.
type Config struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// merge applies flag values over the file values. Flags win.
func (c *Config) merge(host string, port int, password string) {
	if host != "" {
		c.Host = host
	}
	if port != 0 {
		c.Port = port
	}
	if password != "" {
		c.Password = password
	}
}

func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required (flag --host or config file)")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required (flag --password or config file)")
	}
	if c.Port == 0 {
		c.Port = rcon.DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d (must be 1~65535)", c.Port)
	}
	return nil
}

func (c *Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
