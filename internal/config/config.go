// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config loads the static config.toml settings that drive a
// broker server: bind address, data root, credential and the storage
// engine's segment/cache tunables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Server holds the bind, bootstrap and auth settings.
type Server struct {
	Address       string `toml:"address"`
	Port          uint16 `toml:"port"`
	Path          string `toml:"path"`
	BrokerLimit   uint16 `toml:"broker_limit"`
	Authorization string `toml:"authorization"`
}

// Storage holds the segment store tunables, still expressed as raw
// strings for the size fields ("100m", "50k") as they appear on disk;
// use Config.ParsedStorage to get the resolved byte counts.
type Storage struct {
	MaxFileSize  string `toml:"max_file_size"`
	PullMaxLimit string `toml:"pull_max_limit"`
	CacheLimit   int    `toml:"cache_limit"`
}

// Config is the full static configuration of a broker process.
type Config struct {
	Server  Server  `toml:"server"`
	Storage Storage `toml:"storage"`
}

// ParsedStorage is Storage with its size fields resolved to bytes.
type ParsedStorage struct {
	MaxFileSize  int64
	PullMaxLimit int64
	CacheLimit   int
}

// Addr returns the "host:port" dial/listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// ParsedStorage resolves the size-suffixed storage settings into byte counts.
func (c *Config) ParsedStorage() (ParsedStorage, error) {
	maxFileSize, err := ParseSize(c.Storage.MaxFileSize)
	if err != nil {
		return ParsedStorage{}, fmt.Errorf("config: storage.max_file_size: %w", err)
	}

	pullMaxLimit, err := ParseSize(c.Storage.PullMaxLimit)
	if err != nil {
		return ParsedStorage{}, fmt.Errorf("config: storage.pull_max_limit: %w", err)
	}

	return ParsedStorage{
		MaxFileSize:  maxFileSize,
		PullMaxLimit: pullMaxLimit,
		CacheLimit:   c.Storage.CacheLimit,
	}, nil
}

// Load reads and parses a config.toml file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return &c, nil
}

var sizePattern = regexp.MustCompile(`(\d+)([kKmMgG]+)`)

// ParseSize parses a size string like "100m" or "4k" into a byte
// count. The multiplier letter is binary (k=1024, m=1024^2, g=1024^3);
// anything else is a parse error.
func ParseSize(s string) (int64, error) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("config: invalid size %q", s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid size %q: %w", s, err)
	}

	var mult int64
	switch strings.ToLower(m[2])[0] {
	case 'k':
		mult = 1024
	case 'm':
		mult = 1024 * 1024
	case 'g':
		mult = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("config: unknown size unit in %q", s)
	}

	return n * mult, nil
}
