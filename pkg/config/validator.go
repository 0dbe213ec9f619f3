package config

import (
	"fmt"
	"time"
)

// Validate 校验配置合法性
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("配置不能为空")
	}

	if cfg.Mode != "" && cfg.Mode != "dev" && cfg.Mode != "release" {
		return fmt.Errorf("mode必须是dev/release之一")
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port必须在1-65535之间")
	}

	validDBTypes := map[string]bool{
		"sqlite":   true,
		"mysql":    true,
		"postgres": true,
	}
	if cfg.Database.Type != "" && !validDBTypes[cfg.Database.Type] {
		return fmt.Errorf("database.type必须是sqlite/mysql/postgres之一")
	}
	if cfg.Database.Type != "" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn不能为空")
	}

	if cfg.Scheduler.TaskTimeout != "" {
		if _, err := time.ParseDuration(cfg.Scheduler.TaskTimeout); err != nil {
			return fmt.Errorf("scheduler.task_timeout格式非法: %w", err)
		}
	}
	if cfg.Scheduler.PollInterval != "" {
		if _, err := time.ParseDuration(cfg.Scheduler.PollInterval); err != nil {
			return fmt.Errorf("scheduler.poll_interval格式非法: %w", err)
		}
	}

	return nil
}
