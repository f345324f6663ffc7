package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrAccountNotFound 账户不存在
var ErrAccountNotFound = errors.New("账户不存在")

// StorageService 账户持久化接口
type StorageService interface {
	SaveAccount(account *Account) error
	LoadAccount(username string) (*Account, error)
	DeleteAccount(username string) error
	ListAccounts() ([]string, error)
	AccountExists(username string) bool
}

// FileStorageService 基于文件系统的存储服务
// 布局: <basePath>/<username>/account.json
type FileStorageService struct {
	basePath string
}

var _ StorageService = (*FileStorageService)(nil)

// NewFileStorageService 创建文件存储服务
func NewFileStorageService(basePath string) (*FileStorageService, error) {
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("创建账户目录失败: %w", err)
	}
	return &FileStorageService{basePath: basePath}, nil
}

func (fs *FileStorageService) accountDir(username string) string {
	return filepath.Join(fs.basePath, username)
}

func (fs *FileStorageService) accountFile(username string) string {
	return filepath.Join(fs.accountDir(username), "account.json")
}

// SaveAccount 保存账户，先写临时文件再重命名
func (fs *FileStorageService) SaveAccount(account *Account) error {
	if !account.IsValid() {
		return errors.New("账户数据无效")
	}
	if err := os.MkdirAll(fs.accountDir(account.Username), 0o700); err != nil {
		return fmt.Errorf("创建账户目录失败: %w", err)
	}

	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化账户数据失败: %w", err)
	}

	path := fs.accountFile(account.Username)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("写入账户文件失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("写入账户文件失败: %w", err)
	}
	return nil
}

// LoadAccount 加载账户
func (fs *FileStorageService) LoadAccount(username string) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fs.accountFile(username))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("读取账户文件失败: %w", err)
	}

	account := &Account{}
	if err := json.Unmarshal(data, account); err != nil {
		return nil, fmt.Errorf("反序列化账户数据失败: %w", err)
	}
	if !account.IsValid() {
		return nil, errors.New("账户数据无效")
	}
	return account, nil
}

// DeleteAccount 删除账户目录
func (fs *FileStorageService) DeleteAccount(username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if !fs.AccountExists(username) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}
	if err := os.RemoveAll(fs.accountDir(username)); err != nil {
		return fmt.Errorf("删除账户目录失败: %w", err)
	}
	return nil
}

// ListAccounts 列出所有账户用户名，按字典序
func (fs *FileStorageService) ListAccounts() ([]string, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("读取账户目录失败: %w", err)
	}

	accounts := []string{}
	for _, entry := range entries {
		if entry.IsDir() && fs.AccountExists(entry.Name()) {
			accounts = append(accounts, entry.Name())
		}
	}
	sort.Strings(accounts)
	return accounts, nil
}

// AccountExists 检查账户文件是否存在
func (fs *FileStorageService) AccountExists(username string) bool {
	if ValidateUsername(username) != nil {
		return false
	}
	info, err := os.Stat(fs.accountFile(username))
	return err == nil && !info.IsDir()
}
