// Package main 是 e2echat 的入口
//
// 使用方式：
//
//	e2echat account create -u alice   # 创建身份
//	e2echat gateway serve             # 启动中继网关
//	e2echat chat -u alice --peer bob  # 开始加密聊天
package main

import "e2echat/cmd"

func main() {
	cmd.Execute()
}
