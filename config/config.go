package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"e2echat/internal/chat"
)

// DefaultConfigFile 未指定时使用的配置文件
const DefaultConfigFile = "config.json"

// Config 全局配置
// 可通过 LoadConfig 从 JSON 或 YAML 文件加载，所有字段均带默认值
type Config struct {
	LogLevel string `json:"log_level" yaml:"log_level"` // info/debug/warn/error
	LogFile  string `json:"log_file" yaml:"log_file"`   // 相对路径基于 DataDir
	DataDir  string `json:"data_dir" yaml:"data_dir"`   // 账户与聊天记录根目录
	UserID   string `json:"user_id" yaml:"user_id"`     // 默认登录账户

	GatewayURL    string `json:"gateway_url" yaml:"gateway_url"`       // 客户端连接的 ws 地址
	GatewayListen string `json:"gateway_listen" yaml:"gateway_listen"` // 网关监听地址
	Metrics       bool   `json:"metrics" yaml:"metrics"`               // 网关是否暴露 /metrics

	KDFIterations       int `json:"kdf_iterations" yaml:"kdf_iterations"`
	HandshakeTimeoutSec int `json:"handshake_timeout_sec" yaml:"handshake_timeout_sec"`
	TypingTimeoutMs     int `json:"typing_timeout_ms" yaml:"typing_timeout_ms"`
	MaxPending          int `json:"max_pending" yaml:"max_pending"`
}

// DefaultConfig 返回带默认值的配置
func DefaultConfig() *Config {
	return &Config{
		LogLevel:            "info",
		LogFile:             "e2echat.log",
		DataDir:             "data",
		GatewayURL:          "ws://127.0.0.1:8080/ws",
		GatewayListen:       ":8080",
		Metrics:             true,
		KDFIterations:       chat.MinKDFIterations,
		HandshakeTimeoutSec: 15,
		TypingTimeoutMs:     1000,
		MaxPending:          256,
	}
}

// LoadConfig 加载配置，文件不存在时写入默认配置
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, fmt.Errorf("创建默认配置文件失败: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.LogLevel = sanitizeString(cfg.LogLevel)
	cfg.LogFile = sanitizeString(cfg.LogFile)
	cfg.DataDir = sanitizeString(cfg.DataDir)
	cfg.UserID = sanitizeString(cfg.UserID)
	cfg.GatewayURL = sanitizeString(cfg.GatewayURL)
	cfg.GatewayListen = sanitizeString(cfg.GatewayListen)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig 按扩展名保存配置
func SaveConfig(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.KDFIterations < chat.MinKDFIterations {
		return fmt.Errorf("kdf_iterations 不能低于 %d", chat.MinKDFIterations)
	}
	if c.HandshakeTimeoutSec < 0 || c.TypingTimeoutMs < 0 || c.MaxPending < 0 {
		return errors.New("超时和队列长度不能为负数")
	}
	if c.DataDir == "" {
		return errors.New("data_dir 不能为空")
	}
	return nil
}

// AccountDir 账户目录
func (c *Config) AccountDir() string {
	return filepath.Join(c.DataDir, "accounts")
}

// MessageFile 指定用户的聊天记录文件
func (c *Config) MessageFile(userID string) string {
	return filepath.Join(c.DataDir, "messages", userID+".json")
}

// LogPath 日志文件路径，为空表示不写文件
func (c *Config) LogPath() string {
	if c.LogFile == "" || filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, c.LogFile)
}

// SessionConfig 转换为会话参数
func (c *Config) SessionConfig() *chat.SessionConfig {
	sc := chat.DefaultSessionConfig()
	if c.HandshakeTimeoutSec > 0 {
		sc.HandshakeTimeout = time.Duration(c.HandshakeTimeoutSec) * time.Second
	}
	if c.TypingTimeoutMs > 0 {
		sc.TypingTimeout = time.Duration(c.TypingTimeoutMs) * time.Millisecond
	}
	if c.MaxPending > 0 {
		sc.MaxPending = c.MaxPending
	}
	return sc
}

// EncryptionConfig 转换为加密参数
func (c *Config) EncryptionConfig() *chat.EncryptionConfig {
	ec := chat.DefaultEncryptionConfig()
	ec.Iterations = c.KDFIterations
	return ec
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// sanitizeString 将非法 UTF-8 字节替换为空格
func sanitizeString(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	valid := make([]rune, 0, len(s))
	for _, r := range s {
		if r == utf8.RuneError {
			valid = append(valid, ' ')
		} else {
			valid = append(valid, r)
		}
	}
	return string(valid)
}
