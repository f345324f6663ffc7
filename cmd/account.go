package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	accountUser     string
	accountPassword string
)

// accountCmd 账户管理主命令
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "本地身份管理",
}

// createAccountCmd 创建账户
var createAccountCmd = &cobra.Command{
	Use:   "create",
	Short: "生成新的身份密钥并用口令加密保存",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newAccountManager()
		if err != nil {
			return err
		}
		user, err := resolveUser(accountUser)
		if err != nil {
			return err
		}

		password := accountPassword
		if password == "" {
			password, err = readPassword("请输入账户口令（用于加密私钥）: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword("请再次输入口令: ")
			if err != nil {
				return err
			}
			if confirm != password {
				return errors.New("两次输入的口令不一致")
			}
		}

		acc, err := mgr.CreateAccount(user, password)
		if err != nil {
			return fmt.Errorf("账户创建失败: %w", err)
		}
		appLogger.Infof("创建账户 %s", acc.Username)
		fmt.Printf("✅ 账户创建成功: %s\n", acc.Username)
		fmt.Printf("   公钥指纹: %s\n", acc.Fingerprint())
		return nil
	},
}

// showAccountCmd 显示账户信息
var showAccountCmd = &cobra.Command{
	Use:   "show",
	Short: "显示账户公钥指纹",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newAccountManager()
		if err != nil {
			return err
		}
		user, err := resolveUser(accountUser)
		if err != nil {
			return err
		}
		acc, err := mgr.GetAccount(user)
		if err != nil {
			return err
		}
		fmt.Printf("用户名: %s\n", acc.Username)
		fmt.Printf("公钥指纹: %s\n", acc.Fingerprint())
		fmt.Printf("PBKDF2 迭代: %d\n", acc.KDFIterations)
		fmt.Printf("创建时间: %s\n", acc.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

// listAccountCmd 列出账户
var listAccountCmd = &cobra.Command{
	Use:   "list",
	Short: "列出本地账户",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newAccountManager()
		if err != nil {
			return err
		}
		accounts, err := mgr.ListAccounts()
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Println("暂无账户")
			return nil
		}
		for _, acc := range accounts {
			fmt.Printf("%-20s %s  %s\n", acc.Username, acc.Fingerprint(), acc.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// deleteAccountCmd 删除账户
var deleteAccountCmd = &cobra.Command{
	Use:   "delete",
	Short: "删除账户（需要口令）",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newAccountManager()
		if err != nil {
			return err
		}
		user, err := resolveUser(accountUser)
		if err != nil {
			return err
		}
		password, err := resolvePassword(accountPassword, "请输入账户口令: ")
		if err != nil {
			return err
		}
		if err := mgr.DeleteAccount(user, password); err != nil {
			return err
		}
		fmt.Printf("已删除账户 %s\n", user)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(createAccountCmd, showAccountCmd, listAccountCmd, deleteAccountCmd)

	accountCmd.PersistentFlags().StringVarP(&accountUser, "username", "u", "", "用户名")
	accountCmd.PersistentFlags().StringVarP(&accountPassword, "password", "p", "", "口令（不建议在命令行传入）")
}
