package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"e2echat/config"
	"e2echat/internal/logger"
)

var (
	cfgFile   string
	logLevel  string
	appConfig *config.Config
	appLogger *logger.Logger
)

// RootCmd CLI 的根命令，由 main.go 调用
var RootCmd = &cobra.Command{
	Use:           "e2echat",
	Short:         "e2echat - 端到端加密聊天",
	Long:          `e2echat 通过 WebSocket 网关中继密文，密钥只在两端生成和使用。`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		appConfig = cfg

		l, err := logger.NewLogger(logger.LogConfig{
			Level:   logger.ParseLogLevel(cfg.LogLevel),
			File:    cfg.LogPath(),
			Console: cfg.LogLevel == "debug",
		})
		if err != nil {
			return err
		}
		appLogger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			_ = appLogger.Close()
		}
	},
}

// Execute 启动 CLI
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "命令执行失败: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径，支持 .json/.yaml (默认 config.json)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "日志级别 (debug|info|warn|error)")
}
