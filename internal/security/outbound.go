// Package security はアプリケーションのセキュリティ機能を提供する。
//
// OutboundGuardService は運用者が設定するWebhook URLへの送信を保護する。
// 設定ミスや悪意ある設定値によって内部ネットワークへリクエストが
// 飛ばないよう、URLの静的検証とSSRF防止付きHTTPクライアントを提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuardService は外部送信の保護機能のインターフェースを定義する。
type OutboundGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlライブラリにより、プライベートIP、ループバック、リンクローカル、
	// メタデータIPへのリクエストが自動的にブロックされる。
	// DNS再バインディング攻撃への対策も有効化される。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateWebhookURL はWebhook URLの安全性を起動時に検証する。
	// httpsスキームのみ許可し、内部アドレスを指すURLはエラーを返す。
	ValidateWebhookURL(rawURL string) error
}

// allowedSchemes はWebhook URLで許可されるスキーム。
// Webhookは常にTLS経由で送信する。
var allowedSchemes = []string{"https"}

// blockedNetworks は送信をブロックするネットワーク範囲。
// パッケージ初期化時に1回だけパースする。safeurlはnet.Dialerレベルで
// DNS解決後のIPアドレスも検証するため、ここでの静的検証とあわせて
// DNS再バインディング攻撃にも対応できる。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
	"metadata.google.internal",
}

// outboundGuard はOutboundGuardServiceの実装。
type outboundGuard struct{}

// NewOutboundGuard はOutboundGuardServiceの新しいインスタンスを生成する。
func NewOutboundGuard() *outboundGuard {
	return &outboundGuard{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlのデフォルト設定により以下がブロックされる:
//   - プライベートIPアドレス (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
//   - ループバックアドレス (127.0.0.0/8, ::1)
//   - リンクローカルアドレス (169.254.0.0/16, fe80::/10)
//   - メタデータIPアドレス (169.254.169.254)
func (g *outboundGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// ValidateWebhookURL はWebhook URLの安全性を検証する。
// DNS解決を伴わない静的な検証で、起動時の設定チェックとして使用する。
// DNS再バインディング攻撃はNewSafeClientが生成するクライアント側の
// Dialer検証で防止される。
func (g *outboundGuard) ValidateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	// IPアドレス直書きの場合: ブロック対象CIDRとの照合
	ip := net.ParseIP(host)
	if ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}
