package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stevelan1995/orcs/pkg/api"
	"github.com/stevelan1995/orcs/pkg/cli/output"
	"github.com/stevelan1995/orcs/pkg/config"
	"github.com/stevelan1995/orcs/pkg/core/agent"
	"github.com/stevelan1995/orcs/pkg/core/engine"
	"github.com/stevelan1995/orcs/pkg/core/event"
	"github.com/stevelan1995/orcs/pkg/core/memory"
	"github.com/stevelan1995/orcs/pkg/storage/factory"
)

var (
	serverPort int
	serverHost string
	configPath string
)

// serverCmd server子命令
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "服务管理命令",
	Long:  `管理orcs HTTP API服务。`,
}

// serverStartCmd 启动服务
var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动HTTP API服务",
	Long: `启动orcs HTTP API服务。

示例：
  # 使用默认配置启动
  orcs server start

  # 指定端口启动
  orcs server start --port 8080

  # 指定配置文件启动
  orcs server start --config ./configs/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 配置文件缺省时走默认配置
		if configPath == "" {
			defaultPaths := []string{
				"./configs/config.yaml",
				"./config/config.yaml",
				"./orcs.yaml",
			}
			for _, p := range defaultPaths {
				if _, err := os.Stat(p); err == nil {
					configPath = p
					break
				}
			}
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			output.Error("加载配置失败: %v", err)
			return err
		}
		if err := config.Validate(cfg); err != nil {
			output.Error("配置校验失败: %v", err)
			return err
		}
		if configPath != "" {
			output.Info("使用配置文件: %s", configPath)
		}
		if serverPort != 0 {
			cfg.HTTPPort = serverPort
		}

		// 组装核心组件
		registry := agent.NewRegistry()
		if err := agent.RegisterBuiltins(registry); err != nil {
			output.Error("注册内置Agent失败: %v", err)
			return err
		}

		bus := event.NewBus(cfg.Event.Debug)
		defer bus.Close()

		engineOpts := []engine.Option{
			engine.WithNotifier(bus),
			engine.WithTaskTimeout(cfg.TaskTimeout()),
			engine.WithPollInterval(cfg.PollInterval()),
		}
		if cfg.Database.Type != "" {
			repo, err := factory.Open(cfg.Database.Type, cfg.Database.DSN)
			if err != nil {
				output.Error("打开存储失败: %v", err)
				return err
			}
			defer repo.Close()
			engineOpts = append(engineOpts, engine.WithReportRepository(repo))
		}

		eng, err := engine.NewEngine(registry, memory.NewBasicSystem(), engineOpts...)
		if err != nil {
			output.Error("创建Engine失败: %v", err)
			return err
		}

		// 创建并启动API服务器
		serverConfig := api.ServerConfig{
			Host:         serverHost,
			Port:         cfg.HTTPPort,
			ReadTimeout:  api.DefaultServerConfig().ReadTimeout,
			WriteTimeout: api.DefaultServerConfig().WriteTimeout,
		}
		apiServer := api.NewAPIServer(eng, bus, serverConfig, Version)

		go func() {
			if err := apiServer.Start(); err != nil {
				log.Printf("API服务器错误: %v", err)
			}
		}()

		output.Success("orcs Server started on %s:%d", serverHost, cfg.HTTPPort)

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		output.Info("正在关闭服务...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), api.DefaultServerConfig().WriteTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			output.Error("关闭API服务器失败: %v", err)
		}

		output.Success("服务已停止")
		return nil
	},
}

func init() {
	serverStartCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "监听端口（覆盖配置文件）")
	serverStartCmd.Flags().StringVarP(&serverHost, "host", "H", "0.0.0.0", "监听地址")
	serverStartCmd.Flags().StringVarP(&configPath, "config", "c", "", "配置文件路径")

	serverCmd.AddCommand(serverStartCmd)
}
