package main

import (
	"bytes"
	"io/ioutil"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// serverConfig is the configuration of the serve subcommand. It is
// read from a TOML file like:
//
//	listen = "0.0.0.0:8080"
//	index = "/data/hg38.2bit.M10.Q10.index"
//	reference = "/data/hg38.2bit"
//	max-connections = 64
type serverConfig struct {
	Listen         string `toml:"listen"`
	Index          string `toml:"index"`
	Reference      string `toml:"reference"`
	MaxConnections int    `toml:"max-connections"`
	MaxQueryLength int    `toml:"max-query-length"`
	LogLevel       string `toml:"loglevel"`
}

var defaultServerConfig = serverConfig{
	Listen:         "localhost:8080",
	MaxConnections: 64,
	MaxQueryLength: 1 << 20,
	LogLevel:       "info",
}

// loadServerConfig updates cfg with the settings in the given file.
// Unknown keys are an error.
func loadServerConfig(filename string, cfg *serverConfig) error {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	dec := toml.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	err = dec.Decode(cfg)
	if err != nil {
		return errors.Wrapf(err, "%s", filename)
	}
	return nil
}

func (cfg *serverConfig) check() error {
	if cfg.Index == "" {
		return errors.New("index not specified")
	}
	if cfg.Reference == "" {
		return errors.New("reference not specified")
	}
	if cfg.Listen == "" {
		return errors.New("listen address not specified")
	}
	if cfg.MaxConnections < 1 {
		return errors.Errorf("invalid max-connections %d", cfg.MaxConnections)
	}
	if cfg.MaxQueryLength < 1 {
		return errors.Errorf("invalid max-query-length %d", cfg.MaxQueryLength)
	}
	return nil
}
