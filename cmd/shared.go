package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"e2echat/internal/account"
)

var stdinReader = bufio.NewReader(os.Stdin)

// readUserInput 显示提示并读取一行输入
func readUserInput(prompt string) string {
	fmt.Print(prompt)
	input, _ := stdinReader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readPassword 读取口令，终端下不回显
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readUserInput(prompt), nil
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("读取口令失败: %w", err)
	}
	return string(b), nil
}

// resolvePassword 优先使用命令行参数，否则交互输入
func resolvePassword(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	pw, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New("口令不能为空")
	}
	return pw, nil
}

// resolveUser 命令行参数优先，其次配置文件
func resolveUser(flagValue string) (string, error) {
	user := flagValue
	if user == "" {
		user = appConfig.UserID
	}
	if user == "" {
		user = readUserInput("请输入用户名: ")
	}
	if user == "" {
		return "", errors.New("用户名不能为空")
	}
	return user, nil
}

func newAccountManager() (*account.Manager, error) {
	storage, err := account.NewFileStorageService(appConfig.AccountDir())
	if err != nil {
		return nil, err
	}
	return account.NewManager(storage, nil, appConfig.KDFIterations)
}
