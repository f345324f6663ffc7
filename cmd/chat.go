package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"e2echat/internal/chat"
	"e2echat/internal/metrics"
	"e2echat/internal/network"
)

var (
	chatUser     string
	chatPassword string
	chatPeer     string
	chatGateway  string
	chatMetrics  string
)

// chatCmd 进入交互聊天
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "连接网关并与对端建立端到端加密会话",
	Long: `连接网关后可使用以下命令：
  /open <用户>   切换对端并交换密钥
  /history       显示当前对端的聊天记录
  /stats         显示会话统计
  /quit          退出
其他输入作为消息发送给当前对端。`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	user, err := resolveUser(chatUser)
	if err != nil {
		return err
	}
	mgr, err := newAccountManager()
	if err != nil {
		return err
	}
	password, err := resolvePassword(chatPassword, "请输入账户口令: ")
	if err != nil {
		return err
	}
	identity, err := mgr.Unlock(user, password)
	if err != nil {
		return fmt.Errorf("解锁账户失败: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gatewayURL := appConfig.GatewayURL
	if chatGateway != "" {
		gatewayURL = chatGateway
	}
	wsConfig := network.DefaultWSTransportConfig()
	wsConfig.URL = gatewayURL
	wsConfig.UserID = user
	transport, err := network.DialWSTransport(ctx, wsConfig, appLogger.Named("transport"))
	if err != nil {
		identity.KeyPair.Wipe()
		return err
	}
	defer transport.Close()

	deps := chat.ManagerDeps{
		Transport: transport,
		Logger:    appLogger.Named("chat"),
	}
	if chatMetrics != "" {
		m := metrics.New("e2echat_client")
		deps.CryptoObserver = m
		deps.SessionObserver = m
		srv := &http.Server{Addr: chatMetrics, Handler: m.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Warnf("指标服务退出: %v", err)
			}
		}()
		defer srv.Close()
	}

	cm, err := chat.NewChatManager(&chat.ChatConfig{
		MessageStorePath: appConfig.MessageFile(user),
		EncryptionConfig: appConfig.EncryptionConfig(),
		SessionConfig:    appConfig.SessionConfig(),
	}, identity, deps)
	if err != nil {
		identity.KeyPair.Wipe()
		return err
	}
	defer cm.Close()

	unsubscribe := cm.Subscribe(printEvent)
	defer unsubscribe()
	unsubscribeErrors := transport.OnGatewayError(func(p network.ErrorPayload) {
		fmt.Printf("⚠️  网关错误 [%d] %s\n", p.Code, p.Message)
	})
	defer unsubscribeErrors()

	fmt.Printf("✅ 已以 %s 身份连接 %s\n", user, gatewayURL)
	fmt.Printf("   公钥指纹: %s\n", chat.Fingerprint(identity.KeyPair.PublicKey))
	fmt.Println("   输入 /help 查看命令")

	if chatPeer != "" {
		openPeer(ctx, cm, chatPeer)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdinReader)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-transport.Done():
			return errors.New("与网关的连接已断开")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleChatLine(ctx, cm, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

// handleChatLine 处理一行输入，返回 true 表示退出
func handleChatLine(ctx context.Context, cm *chat.ChatManager, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if _, err := cm.Send(ctx, line); err != nil {
			if errors.Is(err, chat.ErrChannelNotReady) {
				fmt.Println("⚠️  加密通道尚未就绪，请先 /open <用户>")
			} else {
				fmt.Printf("❌ 发送失败: %v\n", err)
			}
		}
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/open":
		if len(fields) != 2 {
			fmt.Println("用法: /open <用户>")
			return false
		}
		openPeer(ctx, cm, fields[1])
	case "/history":
		printHistory(cm)
	case "/stats":
		for k, v := range cm.GetChatStats() {
			fmt.Printf("  %s: %v\n", k, v)
		}
	case "/help":
		fmt.Println("/open <用户>  /history  /stats  /quit")
	default:
		fmt.Printf("未知命令: %s\n", fields[0])
	}
	return false
}

func openPeer(ctx context.Context, cm *chat.ChatManager, peerID string) {
	fmt.Printf("🔑 正在与 %s 交换密钥...\n", peerID)
	if err := cm.OpenChat(ctx, peerID); err != nil {
		fmt.Printf("❌ 无法与 %s 建立加密通道: %v\n", peerID, err)
	}
}

func printHistory(cm *chat.ChatManager) {
	peerID := cm.Session().PeerID()
	if peerID == "" {
		fmt.Println("尚未选择对端")
		return
	}
	items, err := cm.Session().History(peerID)
	if err != nil {
		fmt.Printf("❌ 读取记录失败: %v\n", err)
		return
	}
	if len(items) == 0 {
		fmt.Println("暂无聊天记录")
		return
	}
	for _, item := range items {
		ts := item.Message.Timestamp.Format("01-02 15:04:05")
		if item.Err != nil {
			fmt.Printf("[%s] %s: 🔒 无法解密\n", ts, item.Message.SenderID)
			continue
		}
		fmt.Printf("[%s] %s: %s\n", ts, item.Message.SenderID, item.Message.Plaintext)
	}
}

// printEvent 在终端显示会话事件
func printEvent(e chat.Event) {
	switch e.Type {
	case chat.EventStatus:
		if e.Err != nil {
			fmt.Printf("[状态] %s (%v)\n", e.Status, e.Err)
		} else {
			fmt.Printf("[状态] %s\n", e.Status)
		}
	case chat.EventMessage:
		if e.Outgoing {
			return
		}
		fmt.Printf("[%s] %s\n", e.Message.SenderID, e.Message.Plaintext)
	case chat.EventMessageStatus:
		if e.Message != nil && e.Message.Status == chat.MessageStatusFailed {
			fmt.Printf("❌ 消息 %s 发送失败\n", e.Message.ID)
		}
	case chat.EventMessageError:
		fmt.Printf("⚠️  无法解密来自 %s 的消息\n", e.PeerID)
	case chat.EventUnread:
		fmt.Printf("📩 %s 发来新消息（/open %s 查看）\n", e.PeerID, e.PeerID)
	case chat.EventTyping:
		if e.IsTyping {
			fmt.Printf("✏️  %s 正在输入...\n", e.PeerID)
		}
	case chat.EventPeerStatus:
		fmt.Printf("[%s] 加密状态: %s\n", e.PeerID, e.Status)
	}
}

func init() {
	RootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatUser, "username", "u", "", "本地账户")
	chatCmd.Flags().StringVarP(&chatPassword, "password", "p", "", "账户口令（不建议在命令行传入）")
	chatCmd.Flags().StringVar(&chatPeer, "peer", "", "启动后立即打开的对端")
	chatCmd.Flags().StringVar(&chatGateway, "gateway", "", "网关地址，覆盖配置中的 gateway_url")
	chatCmd.Flags().StringVar(&chatMetrics, "metrics-listen", "", "暴露客户端加密和握手指标的地址，如 127.0.0.1:9100")
}
