package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	apperrors "github.com/wfunc/lotto-draw/internal/errors"
)

// Config 全局配置结构体
type Config struct {
	Device    DeviceConfig    `mapstructure:"device"`
	Timers    TimerConfig     `mapstructure:"timers"`
	Entropy   EntropyConfig   `mapstructure:"entropy"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Log       LogConfig       `mapstructure:"log"`
}

// DeviceConfig 设备配置
type DeviceConfig struct {
	Name     string `mapstructure:"name"`
	Simulate bool   `mapstructure:"simulate"` // 使用虚拟按键端口
}

// TimerConfig 定时器配置
type TimerConfig struct {
	DisplayPeriod time.Duration `mapstructure:"display_period"` // 数码管刷新周期
	DebounceDelay time.Duration `mapstructure:"debounce_delay"` // 按键消抖延时
	DrawPeriod    time.Duration `mapstructure:"draw_period"`    // 抽号周期
}

// EntropyConfig 随机源配置
type EntropyConfig struct {
	Source string `mapstructure:"source"` // crc 或 crypto
	Seed   uint16 `mapstructure:"seed"`   // CRC初始值
}

// SerialConfig 串口配置
type SerialConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Port          string        `mapstructure:"port"`
	BaudRate      int           `mapstructure:"baud_rate"`
	DataBits      int           `mapstructure:"data_bits"`
	StopBits      int           `mapstructure:"stop_bits"`
	Parity        string        `mapstructure:"parity"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	TxBuffer      int           `mapstructure:"tx_buffer"` // 发送缓冲字节数
	RetryTimes    int           `mapstructure:"retry_times"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// ServerConfig 监控服务配置
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path         string        `mapstructure:"path"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// 设置环境变量前缀
		v.SetEnvPrefix("LOTTO")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		var loaded *Config
		loaded, err = load(v)
		if err != nil {
			return
		}
		cfg = loaded
	})

	return err
}

// Load 从指定文件加载独立的配置实例（不影响全局配置）
func Load(configPath string) (*Config, error) {
	lv := viper.New()
	if configPath != "" {
		lv.SetConfigFile(configPath)
	}
	return load(lv)
}

func load(v *viper.Viper) (*Config, error) {
	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在，使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && v.ConfigFileUsed() != "" {
			return nil, apperrors.Wrap(err, apperrors.ErrConfigLoad, v.ConfigFileUsed())
		}
	}

	// 解析配置到结构体
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigParse)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 设备默认配置
	v.SetDefault("device.name", "lotto-draw")
	v.SetDefault("device.simulate", true)

	// 定时器默认配置（ACLK 32768Hz 下的 163/1048/6553 个计数）
	v.SetDefault("timers.display_period", "5ms")
	v.SetDefault("timers.debounce_delay", "32ms")
	v.SetDefault("timers.draw_period", "200ms")

	// 随机源默认配置
	v.SetDefault("entropy.source", "crc")
	v.SetDefault("entropy.seed", 0xFFFF)

	// 串口默认配置
	v.SetDefault("serial.enabled", false)
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.read_timeout", "1s")
	v.SetDefault("serial.tx_buffer", 64)
	v.SetDefault("serial.retry_times", 3)
	v.SetDefault("serial.retry_interval", "2s")

	// 数据库默认配置
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/lotto-draw.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// 监控服务默认配置
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")

	// WebSocket默认配置
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_timeout", "5s")
	v.SetDefault("websocket.send_buffer", 64)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "lotto-draw.log")
	v.SetDefault("log.file.max_size", 20)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.compress", true)
}

// Validate 校验配置
func (c *Config) Validate() error {
	t := c.Timers
	if t.DisplayPeriod <= 0 || t.DebounceDelay <= 0 || t.DrawPeriod <= 0 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"定时器周期必须为正数: display=%s debounce=%s draw=%s",
			t.DisplayPeriod, t.DebounceDelay, t.DrawPeriod)
	}
	if t.DebounceDelay >= t.DrawPeriod {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"消抖延时(%s)必须小于抽号周期(%s)", t.DebounceDelay, t.DrawPeriod)
	}

	switch c.Entropy.Source {
	case "crc", "crypto":
	default:
		return apperrors.Newf(apperrors.ErrConfigValidate, "不支持的随机源: %s", c.Entropy.Source)
	}

	if c.Serial.Enabled {
		if c.Serial.Port == "" {
			return apperrors.New(apperrors.ErrConfigMissing, "serial.port")
		}
		if c.Serial.TxBuffer <= 0 {
			return apperrors.Newf(apperrors.ErrConfigValidate, "serial.tx_buffer=%d", c.Serial.TxBuffer)
		}
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	if v == nil {
		return
	}
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载校验失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}

		fmt.Printf("配置已重新加载: %s\n", e.Name)
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// ConfigFileUsed 当前使用的配置文件
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}
