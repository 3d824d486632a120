// Package netmsgconfig loads the runtime configuration a netmsg server or
// client is started with: listen/dial address, timeouts, tick delay, and
// which codec to boot with. The plugin manifest itself stays JSON
// (protocols/plugins.json); this is the ambient, application-level config
// surrounding it.
//
// Grounded on sadewadee-maboo/internal/config/config.go, the pack's own
// example of a YAML-driven server config struct loaded with
// gopkg.in/yaml.v3.
package netmsgconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"netmsg/address"
)

// Config is the top-level runtime configuration for a netmsg server or
// client process.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Codec  CodecConfig  `yaml:"codec"`
}

// ServerConfig configures a netmsgserver.Server.
type ServerConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	Delay   time.Duration `yaml:"delay"`
}

// Address returns the configured listen address.
func (c ServerConfig) Address() address.Address {
	return address.New(c.Host, c.Port)
}

// ClientConfig configures a netmsgclient.Client.
type ClientConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// Address returns the configured dial address.
func (c ClientConfig) Address() address.Address {
	return address.New(c.Host, c.Port)
}

// CodecConfig names the protocol(s) to load and any framing options to
// merge over the plugin's DefaultArgs.
type CodecConfig struct {
	Protocols []string       `yaml:"protocols"`
	Options   map[string]any `yaml:"options"`
}

// Default returns a config matching the library defaults: loopback,
// 10s timeout, no tick delay, and the default protocol list.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 48575, Timeout: 10 * time.Second},
		Client: ClientConfig{Host: "127.0.0.1", Port: 48575, Timeout: 10 * time.Second},
		Codec:  CodecConfig{Protocols: []string{"msgpack", "json"}},
	}
}

// Load reads and parses a YAML config file at path, starting from Default()
// so an incomplete file still yields usable settings.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("netmsgconfig: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("netmsgconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}
