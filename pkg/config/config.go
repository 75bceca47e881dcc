package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// EnvPrefix 环境变量前缀（DIAG_UPDATER_PERIOD -> updater.period）
const EnvPrefix = "DIAG"

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server" comment:"HTTP服务配置"`
	Updater UpdaterConfig `yaml:"updater" mapstructure:"updater" comment:"诊断更新器配置"`
	Publish PublishConfig `yaml:"publish" mapstructure:"publish" comment:"发布端配置"`
	Tasks   TasksConfig   `yaml:"tasks" mapstructure:"tasks" comment:"内置诊断任务配置"`
	Log     ZapLogConfig  `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// ServerConfig HTTP服务配置（超时统一为time.Duration，支持"30s"解析）
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
}

// UpdaterConfig 诊断更新器配置
type UpdaterConfig struct {
	Period             time.Duration `yaml:"period" mapstructure:"period" validate:"required,gt=0" comment:"更新周期（如1s）" default:"1s"`
	HardwareID         string        `yaml:"hardware_id" mapstructure:"hardware_id" comment:"硬件ID，为空时首次发布告警一次"`
	HardwareIDFromHost bool          `yaml:"hardware_id_from_host" mapstructure:"hardware_id_from_host" comment:"使用 hostname-hostid 作为硬件ID"`
	NodeName           string        `yaml:"node_name" mapstructure:"node_name" comment:"节点名称，非空时作为状态名前缀"`
	Verbose            bool          `yaml:"verbose" mapstructure:"verbose" comment:"是否记录非OK状态日志"`
}

// PublishConfig 发布端配置（可同时启用多个）
type PublishConfig struct {
	Log     LogSinkConfig     `yaml:"log" mapstructure:"log"`
	File    FileSinkConfig    `yaml:"file" mapstructure:"file"`
	Redis   RedisSinkConfig   `yaml:"redis" mapstructure:"redis"`
	MQTT    MQTTSinkConfig    `yaml:"mqtt" mapstructure:"mqtt"`
	Metrics MetricsSinkConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LogSinkConfig 日志发布端
type LogSinkConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" default:"true"`
}

// FileSinkConfig 文件发布端（原子覆盖写入最新批次）
type FileSinkConfig struct {
	Enable bool   `yaml:"enable" mapstructure:"enable" default:"false"`
	Path   string `yaml:"path" mapstructure:"path" validate:"required_if=Enable true" default:"./diagnostics.json"`
}

// RedisSinkConfig Redis 发布端（PUBLISH + SET latest）
type RedisSinkConfig struct {
	Enable   bool          `yaml:"enable" mapstructure:"enable" default:"false"`
	Addr     string        `yaml:"addr" mapstructure:"addr" validate:"required_if=Enable true" default:"127.0.0.1:6379"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db" validate:"gte=0"`
	Channel  string        `yaml:"channel" mapstructure:"channel" validate:"required_if=Enable true" default:"diagnostics"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0" default:"2s"`
}

// MQTTSinkConfig MQTT 发布端
type MQTTSinkConfig struct {
	Enable   bool          `yaml:"enable" mapstructure:"enable" default:"false"`
	Broker   string        `yaml:"broker" mapstructure:"broker" validate:"required_if=Enable true" default:"tcp://127.0.0.1:1883"`
	ClientID string        `yaml:"client_id" mapstructure:"client_id" default:"diagnostic-updater"`
	Username string        `yaml:"username" mapstructure:"username"`
	Password string        `yaml:"password" mapstructure:"password"`
	Topic    string        `yaml:"topic" mapstructure:"topic" validate:"required_if=Enable true" default:"diagnostics"`
	QoS      int           `yaml:"qos" mapstructure:"qos" validate:"gte=0,lte=2"`
	Retained bool          `yaml:"retained" mapstructure:"retained"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0" default:"5s"`
}

// MetricsSinkConfig Prometheus 发布端（状态级别 gauge）
type MetricsSinkConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" default:"true"`
}

// TasksConfig 内置诊断任务配置
type TasksConfig struct {
	Combine bool             `yaml:"combine" mapstructure:"combine" comment:"合并为单个组合任务 system"`
	CPU     CPUTaskConfig    `yaml:"cpu" mapstructure:"cpu"`
	Memory  MemoryTaskConfig `yaml:"memory" mapstructure:"memory"`
	Disk    DiskTaskConfig   `yaml:"disk" mapstructure:"disk"`
}

// CPUTaskConfig CPU 负载任务（阈值为每逻辑核 1 分钟负载）
type CPUTaskConfig struct {
	Enable    bool    `yaml:"enable" mapstructure:"enable" default:"true"`
	WarnLoad  float64 `yaml:"warn_load" mapstructure:"warn_load" validate:"gt=0" default:"1.5"`
	ErrorLoad float64 `yaml:"error_load" mapstructure:"error_load" validate:"gtefield=WarnLoad" default:"3"`
}

// MemoryTaskConfig 内存使用率任务
type MemoryTaskConfig struct {
	Enable       bool    `yaml:"enable" mapstructure:"enable" default:"true"`
	WarnPercent  float64 `yaml:"warn_percent" mapstructure:"warn_percent" validate:"gt=0,lte=100" default:"85"`
	ErrorPercent float64 `yaml:"error_percent" mapstructure:"error_percent" validate:"gtefield=WarnPercent,lte=100" default:"95"`
}

// DiskTaskConfig 磁盘使用率任务
type DiskTaskConfig struct {
	Enable       bool     `yaml:"enable" mapstructure:"enable" default:"true"`
	Paths        []string `yaml:"paths" mapstructure:"paths" default:"[/]"`
	WarnPercent  float64  `yaml:"warn_percent" mapstructure:"warn_percent" validate:"gt=0,lte=100" default:"85"`
	ErrorPercent float64  `yaml:"error_percent" mapstructure:"error_percent" validate:"gtefield=WarnPercent,lte=100" default:"95"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" validate:"required,oneof=json console" comment:"文件日志格式（json/console）" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" validate:"gte=0" comment:"日志文件保留个数，>0 时代替 max_age 生效" default:"0"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" validate:"required,gt=0" comment:"日志文件最大保存天数" default:"7"`
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "0.0.0.0:9091",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Updater: UpdaterConfig{
			Period: time.Second,
		},
		Publish: PublishConfig{
			Log:  LogSinkConfig{Enable: true},
			File: FileSinkConfig{Path: "./diagnostics.json"},
			Redis: RedisSinkConfig{
				Addr:    "127.0.0.1:6379",
				Channel: "diagnostics",
				Timeout: 2 * time.Second,
			},
			MQTT: MQTTSinkConfig{
				Broker:   "tcp://127.0.0.1:1883",
				ClientID: "diagnostic-updater",
				Topic:    "diagnostics",
				Timeout:  5 * time.Second,
			},
			Metrics: MetricsSinkConfig{Enable: true},
		},
		Tasks: TasksConfig{
			CPU:    CPUTaskConfig{Enable: true, WarnLoad: 1.5, ErrorLoad: 3},
			Memory: MemoryTaskConfig{Enable: true, WarnPercent: 85, ErrorPercent: 95},
			Disk: DiskTaskConfig{
				Enable:       true,
				Paths:        []string{"/"},
				WarnPercent:  85,
				ErrorPercent: 95,
			},
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 0,
			MaxAge:    7,
		},
	}
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	return decode(v)
}

// Load 仅从配置文件 + ENV 加载（无命令行场景，如测试或嵌入式使用）
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()

	// 3. 绑定环境变量 ENV -> Viper （DIAG_UPDATER_PERIOD -> updater.period）
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 解码反序列化到结构体（支持 time.Duration）
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	// 	1,校验Server服务配置
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验更新器配置
	if err := c.Updater.Validate(); err != nil {
		return err
	}
	// 	3，校验发布端与任务
	if err := c.Publish.Validate(); err != nil {
		return err
	}
	if err := c.Tasks.Validate(); err != nil {
		return err
	}
	// 	4，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
