package conf

import (
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/zhukovaskychina/xpst/logger"
	"github.com/zhukovaskychina/xpst/pst/common"
)

/*
[log]
level      = info
info_file  =
error_file =

[pst]
codepage = 1252
mmap     = true
workers  = 4

[cache]
blocks = 4096
codec  = snappy
*/
type Cfg struct {
	Raw *ini.File

	// log
	LogLevel string `default:"info" toml:"log.level"`
	LogInfos string `default:"" toml:"log.info_file"`
	LogError string `default:"" toml:"log.error_file"`

	// pst
	DefaultCodepage int  `default:"1252" toml:"pst.codepage"`
	UseMmap         bool `default:"true" toml:"pst.mmap"`
	Workers         int  `default:"4" toml:"pst.workers"`

	// cache
	CacheBlocks int    `default:"4096" toml:"cache.blocks"`
	CacheCodec  string `default:"snappy" toml:"cache.codec"`
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:             ini.Empty(),
		LogLevel:        "info",
		DefaultCodepage: common.DEFAULT_CODEPAGE,
		UseMmap:         true,
		Workers:         4,
		CacheBlocks:     4096,
		CacheCodec:      "snappy",
	}
}

// Load reads path, choosing the TOML or ini parser by extension. An empty
// path keeps the defaults.
func (cfg *Cfg) Load(path string) (*Cfg, error) {
	if path == "" {
		return cfg, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		tree, err := toml.LoadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
		cfg.parseToml(tree)
	default:
		file, err := ini.Load(path)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
		cfg.Raw = file
		cfg.parseLogCfg(file.Section("log"))
		cfg.parsePstCfg(file.Section("pst"))
		cfg.parseCacheCfg(file.Section("cache"))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger.Debugf("配置已加载: %s", path)
	return cfg, nil
}

func (cfg *Cfg) parseLogCfg(section *ini.Section) {
	cfg.LogLevel = section.Key("level").MustString(cfg.LogLevel)
	cfg.LogInfos = section.Key("info_file").MustString(cfg.LogInfos)
	cfg.LogError = section.Key("error_file").MustString(cfg.LogError)
}

func (cfg *Cfg) parsePstCfg(section *ini.Section) {
	cfg.DefaultCodepage = section.Key("codepage").MustInt(cfg.DefaultCodepage)
	cfg.UseMmap = section.Key("mmap").MustBool(cfg.UseMmap)
	cfg.Workers = section.Key("workers").MustInt(cfg.Workers)
}

func (cfg *Cfg) parseCacheCfg(section *ini.Section) {
	cfg.CacheBlocks = section.Key("blocks").MustInt(cfg.CacheBlocks)
	cfg.CacheCodec = section.Key("codec").MustString(cfg.CacheCodec)
}

func (cfg *Cfg) parseToml(tree *toml.Tree) {
	cfg.LogLevel = tomlString(tree, "log.level", cfg.LogLevel)
	cfg.LogInfos = tomlString(tree, "log.info_file", cfg.LogInfos)
	cfg.LogError = tomlString(tree, "log.error_file", cfg.LogError)
	cfg.DefaultCodepage = tomlInt(tree, "pst.codepage", cfg.DefaultCodepage)
	cfg.UseMmap = tomlBool(tree, "pst.mmap", cfg.UseMmap)
	cfg.Workers = tomlInt(tree, "pst.workers", cfg.Workers)
	cfg.CacheBlocks = tomlInt(tree, "cache.blocks", cfg.CacheBlocks)
	cfg.CacheCodec = tomlString(tree, "cache.codec", cfg.CacheCodec)
}

func tomlString(tree *toml.Tree, key, def string) string {
	if v, ok := tree.Get(key).(string); ok {
		return v
	}
	return def
}

func tomlInt(tree *toml.Tree, key string, def int) int {
	if v, ok := tree.Get(key).(int64); ok {
		return int(v)
	}
	return def
}

func tomlBool(tree *toml.Tree, key string, def bool) bool {
	if v, ok := tree.Get(key).(bool); ok {
		return v
	}
	return def
}

func (cfg *Cfg) validate() error {
	switch cfg.CacheCodec {
	case "none", "snappy", "lz4":
	default:
		return errors.Errorf("cache.codec: unknown codec %q", cfg.CacheCodec)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.CacheBlocks < 0 {
		cfg.CacheBlocks = 0
	}
	return nil
}

// LogConfig adapts the log section for logger.InitLogger.
func (cfg *Cfg) LogConfig() logger.LogConfig {
	return logger.LogConfig{
		ErrorLogPath: cfg.LogError,
		InfoLogPath:  cfg.LogInfos,
		LogLevel:     cfg.LogLevel,
	}
}
