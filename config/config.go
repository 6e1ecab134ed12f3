// Package config 加载 sql2mongo 的配置：命令行 > 环境变量 > 配置文件 > 默认值
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/tsfans/sql2mongo/converter"
)

const (
	EnvPrefix      = "SQL2MONGO"
	ConfigName     = "sql2mongo"
	FormatShell    = "shell"
	FormatJSON     = "json"
	DefaultBanner  = "******Mongo Query:*********\n\n"
	DefaultLogLvl  = "info"
	configFileType = "yaml"
)

type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Output OutputConfig `mapstructure:"output"`
	Regex  RegexConfig  `mapstructure:"regex"`
	// 被当作匿名值的列名
	ValueFields []string `mapstructure:"value_fields"`
	// 表名 -> 列名
	Schema map[string][]string `mapstructure:"schema"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
	Banner bool   `mapstructure:"banner"`
}

type RegexConfig struct {
	Options string `mapstructure:"options"`
}

// Load 读取配置，explicitPath 为空时在当前目录和 $HOME/.config/sql2mongo 中查找
func Load(explicitPath string) (cfg *Config, path string, err error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err = findConfigFile(explicitPath)
	if err != nil {
		return
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configFileType)
		if err = v.ReadInConfig(); err != nil {
			err = fmt.Errorf("reading config file: %w", err)
			return
		}
	}

	cfg = &Config{}
	if err = v.Unmarshal(cfg); err != nil {
		err = fmt.Errorf("unmarshaling config: %w", err)
		return
	}
	err = cfg.Validate()
	return
}

// Default 返回只包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLvl)
	v.SetDefault("output.format", FormatShell)
	v.SetDefault("output.banner", true)
	v.SetDefault("regex.options", converter.Default_Regex_Options)
	v.SetDefault("value_fields", []string{converter.Default_Value_Field})
}

func findConfigFile(explicitPath string) (path string, err error) {
	if explicitPath != "" {
		if _, statErr := os.Stat(explicitPath); statErr != nil {
			err = fmt.Errorf("config file not found: %w", statErr)
			return
		}
		path = explicitPath
		return
	}

	dirs := []string{"."}
	if home, homeErr := os.UserHomeDir(); homeErr == nil {
		dirs = append(dirs, filepath.Join(home, ".config", ConfigName))
	}
	for _, dir := range dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			candidate := filepath.Join(dir, ConfigName+ext)
			if _, statErr := os.Stat(candidate); statErr == nil {
				path = candidate
				return
			}
		}
	}
	return
}

func (c *Config) Validate() error {
	switch c.Output.Format {
	case FormatShell, FormatJSON:
	default:
		return fmt.Errorf("invalid output format %q: must be one of [%v %v]", c.Output.Format, FormatShell, FormatJSON)
	}
	return nil
}

// ConverterOptions 转为翻译选项
func (c *Config) ConverterOptions() []converter.Option {
	opts := []converter.Option{
		converter.WithRegexOptions(c.Regex.Options),
		converter.WithValueFields(c.ValueFields...),
	}
	if len(c.Schema) > 0 {
		opts = append(opts, converter.WithSchema(c.Schema))
	}
	return opts
}
