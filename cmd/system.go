package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version 版本号，构建时可通过 -ldflags 覆盖
var Version = "0.1.0"

// versionCmd 版本信息命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("e2echat %s\n", Version)
		fmt.Printf("Go版本: %s\n", runtime.Version())
		fmt.Printf("平台: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
