package config

import "time"

// Config 服务配置
type Config struct {
	Mode     string `yaml:"mode"`      // dev / release
	HTTPPort int    `yaml:"http_port"` // API监听端口
	Database struct {
		Type string `yaml:"type"` // sqlite / mysql / postgres
		DSN  string `yaml:"dsn"`
	} `yaml:"database"`
	Scheduler struct {
		TaskTimeout  string `yaml:"task_timeout"`  // 单Task执行超时，如 "5m"，空表示不限制
		PollInterval string `yaml:"poll_interval"` // 调度循环轮询间隔，如 "100ms"
	} `yaml:"scheduler"`
	Event struct {
		Debug bool `yaml:"debug"` // 事件总线调试日志
	} `yaml:"event"`
}

// Default 返回默认配置（对外导出）
func Default() *Config {
	cfg := &Config{
		Mode:     "dev",
		HTTPPort: 8080,
	}
	cfg.Database.Type = "sqlite"
	cfg.Database.DSN = "orcs.db"
	cfg.Scheduler.PollInterval = "100ms"
	return cfg
}

// TaskTimeout 解析单Task超时配置（对外导出）
// 未设置或非法时返回0（不限制）
func (c *Config) TaskTimeout() time.Duration {
	d, err := time.ParseDuration(c.Scheduler.TaskTimeout)
	if err != nil {
		return 0
	}
	return d
}

// PollInterval 解析轮询间隔配置（对外导出）
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Scheduler.PollInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}
