package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/diagnostic-updater/internal/server"
	"github.com/diagnostic-updater/pkg/config"
	"github.com/diagnostic-updater/pkg/diagnostic"
	"github.com/diagnostic-updater/pkg/logger"
	"github.com/diagnostic-updater/pkg/registers"
	"github.com/diagnostic-updater/pkg/signal"
	"github.com/diagnostic-updater/pkg/util"
)

const projectName = "diagnostic-updater"

// version 构建时通过 -ldflags "-X github.com/diagnostic-updater/cmd/agent.version=..." 注入
var version = "dev"

const shutdownTimeout = 10 * time.Second

var (
	cfgFile   string
	GlobalCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:     projectName,
	Short:   "Periodic diagnostic status publisher (tasks -> log/file/redis/mqtt/prometheus)",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		GlobalCfg, err = config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr，不返回给 cobra
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if err := runServer(cmd.Context(), GlobalCfg); err != nil {
			fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "配置文件路径")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initUpdaterFlags(rootCmd)
	initTaskFlags(rootCmd)
	initPublishFlags(rootCmd)
	initLogFlags(rootCmd)
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	//初始化日志
	zl, err := logger.InitLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()

	util.PrintBanner(os.Stdout, projectName, "ColorBlue", version)
	logger.SetDefaultComponent("main")

	// 进程指标 + 更新器/发布端指标共用一个 Registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	updater, memory, err := registers.InitUpdater(cfg, registry, zl)
	if err != nil {
		return fmt.Errorf("init updater failed: %w", err)
	}
	if err := updater.Start(ctx); err != nil {
		return fmt.Errorf("start updater failed: %w", err)
	}

	httpServer := server.NewHTTPServer(cfg.Server, zl.Named("http"), registry, updater, memory)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("start HTTP server failed: %w", err)
	}

	logger.Info("diagnostic updater running",
		zap.String("listen_addr", cfg.Server.Addr),
		zap.Duration("period", updater.Period()),
		zap.Strings("tasks", updater.Names()))

	return signal.WaitForShutdown(ctx, zl, shutdownTimeout, func(ctx context.Context) error {
		// 关闭顺序：HTTP服务 → 最后一次广播 → 更新器（同时关闭发布端）
		var errs error
		errs = multierr.Append(errs, httpServer.Shutdown(ctx))
		if err := updater.Broadcast(ctx, diagnostic.LevelError, "shutting down"); err != nil {
			logger.Warn("final broadcast failed", zap.Error(err))
		}
		errs = multierr.Append(errs, updater.Shutdown(ctx))
		return errs
	})
}
