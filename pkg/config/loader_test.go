package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("缺失配置文件不应报错: %v", err)
	}
	if cfg.Mode != "dev" || cfg.HTTPPort != 8080 {
		t.Errorf("默认配置错误: %+v", cfg)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("默认数据库类型错误: %s", cfg.Database.Type)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	content := `
mode: "release"
http_port: 9090
database:
  type: "postgres"
  dsn: "host=localhost dbname=orcs sslmode=disable"
scheduler:
  task_timeout: "5m"
  poll_interval: "50ms"
event:
  debug: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入测试配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Mode != "release" || cfg.HTTPPort != 9090 {
		t.Errorf("配置解析错误: %+v", cfg)
	}
	if cfg.Database.Type != "postgres" {
		t.Errorf("数据库类型错误: %s", cfg.Database.Type)
	}
	if cfg.TaskTimeout() != 5*time.Minute {
		t.Errorf("task_timeout解析错误: %v", cfg.TaskTimeout())
	}
	if cfg.PollInterval() != 50*time.Millisecond {
		t.Errorf("poll_interval解析错误: %v", cfg.PollInterval())
	}
	if !cfg.Event.Debug {
		t.Error("event.debug应为true")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{{not yaml"), 0644); err != nil {
		t.Fatalf("写入测试配置失败: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("非法YAML应返回错误")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"默认配置合法", func(c *Config) {}, false},
		{"非法mode", func(c *Config) { c.Mode = "prod" }, true},
		{"端口越界", func(c *Config) { c.HTTPPort = 70000 }, true},
		{"非法数据库类型", func(c *Config) { c.Database.Type = "oracle" }, true},
		{"缺少DSN", func(c *Config) { c.Database.DSN = "" }, true},
		{"非法超时", func(c *Config) { c.Scheduler.TaskTimeout = "abc" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr && err == nil {
				t.Error("期望校验失败但通过了")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("期望校验通过但失败: %v", err)
			}
		})
	}
}
