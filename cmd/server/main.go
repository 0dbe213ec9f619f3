package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stevelan1995/orcs/pkg/api"
	"github.com/stevelan1995/orcs/pkg/config"
	"github.com/stevelan1995/orcs/pkg/core/agent"
	"github.com/stevelan1995/orcs/pkg/core/engine"
	"github.com/stevelan1995/orcs/pkg/core/event"
	"github.com/stevelan1995/orcs/pkg/core/memory"
	"github.com/stevelan1995/orcs/pkg/storage/factory"
)

var version = "0.3.1"

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal("配置校验失败:", err)
	}

	// 1. 注册内置Agent
	registry := agent.NewRegistry()
	if err := agent.RegisterBuiltins(registry); err != nil {
		log.Fatal("注册内置Agent失败:", err)
	}

	// 2. 事件总线
	bus := event.NewBus(cfg.Event.Debug)
	defer bus.Close()

	// 3. 报告存储（类型为空时不持久化）
	opts := []engine.Option{
		engine.WithNotifier(bus),
		engine.WithTaskTimeout(cfg.TaskTimeout()),
		engine.WithPollInterval(cfg.PollInterval()),
	}
	if cfg.Database.Type != "" {
		repo, err := factory.Open(cfg.Database.Type, cfg.Database.DSN)
		if err != nil {
			log.Fatal("打开存储失败:", err)
		}
		defer repo.Close()
		opts = append(opts, engine.WithReportRepository(repo))
	}

	// 4. 创建编排引擎
	eng, err := engine.NewEngine(registry, memory.NewBasicSystem(), opts...)
	if err != nil {
		log.Fatal("创建引擎失败:", err)
	}

	// 5. 启动API服务器
	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = cfg.HTTPPort
	apiServer := api.NewAPIServer(eng, bus, serverConfig, version)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("API服务器错误: %v", err)
		}
	}()

	log.Println("🎉 orcs服务端启动完成")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.WriteTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("关闭API服务器失败: %v", err)
	}
}
