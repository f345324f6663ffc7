package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"e2echat/internal/metrics"
	"e2echat/internal/network"
)

var (
	gatewayListen        string
	gatewayStatsInterval time.Duration
)

// gatewayCmd 网关主命令
var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "WebSocket 中继网关",
}

// serveGatewayCmd 启动网关
var serveGatewayCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动网关，按 recipientId 转发密文帧",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := appConfig.GatewayListen
		if gatewayListen != "" {
			addr = gatewayListen
		}

		var (
			observer network.GatewayObserver
			handler  http.Handler
		)
		if appConfig.Metrics {
			m := metrics.New("e2echat")
			observer = m
			handler = m.Handler()
		}

		gwLogger := appLogger.Named("gateway")
		gw := network.NewGateway(nil, gwLogger, observer, handler)

		monitor := network.NewMetricsMonitor(gw, gwLogger)
		monitor.Start(gatewayStatsInterval)
		defer monitor.Stop()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("🚀 网关监听 %s\n", addr)
		return gw.ListenAndServe(ctx, addr)
	},
}

func init() {
	RootCmd.AddCommand(gatewayCmd)
	gatewayCmd.AddCommand(serveGatewayCmd)
	serveGatewayCmd.Flags().StringVar(&gatewayListen, "listen", "", "监听地址，覆盖配置中的 gateway_listen")
	serveGatewayCmd.Flags().DurationVar(&gatewayStatsInterval, "stats-interval", time.Minute, "统计日志间隔，0 表示关闭")
}
