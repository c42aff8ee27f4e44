package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Geocode  GeocodeConfig
	Upload   UploadConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig 文件存储配置
type StorageConfig struct {
	Root    string `mapstructure:"root"`     // 存储根目录（逻辑路径都挂在它下面）
	QuotaKB int64  `mapstructure:"quota_kb"` // 总容量上限（KB）
}

// GeocodeConfig 反向地理编码配置
type GeocodeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// UploadConfig 上传配置
type UploadConfig struct {
	PoolSize    int           `mapstructure:"pool_size"`    // 批量上传并发度
	ExifTimeout time.Duration `mapstructure:"exif_timeout"` // EXIF 解析超时
}

type LogConfig struct {
	Level            string        `mapstructure:"level"`
	Format           string        `mapstructure:"format"`
	Output           string        `mapstructure:"output"`
	File             FileLogConfig `mapstructure:"file"`
	EnableCaller     bool          `mapstructure:"enablecaller"`
	EnableStacktrace bool          `mapstructure:"enablestacktrace"`
}

type FileLogConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"`
	MaxAge     int    `mapstructure:"maxage"`
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("storage.root", "uploads")
	viper.SetDefault("storage.quota_kb", int64(30*1024*1024)) // 30 GB
	viper.SetDefault("geocode.base_url", "https://eu1.locationiq.com/v1")
	viper.SetDefault("geocode.timeout", 3*time.Second)
	viper.SetDefault("upload.pool_size", 4)
	viper.SetDefault("upload.exif_timeout", 3*time.Second)
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
