// Package discord はDiscord連携機能を提供する。
// ユーザー表示メタデータの取得とWebhookによる入退室通知を含む。
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/roomkeeper/internal/model"
)

const (
	// defaultAPIBase はDiscord REST APIのベースURL。
	defaultAPIBase = "https://discord.com/api/v10"
	// cdnBase はDiscord CDNのベースURL。アバター画像の取得に使う。
	cdnBase = "https://cdn.discordapp.com"
)

// Client はDiscord REST APIのクライアント。
// Botトークンでユーザーオブジェクトを取得し、表示名とアイコンURLに変換する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	botToken   string
	apiBase    string // テスト用に差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, botToken string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		botToken:   botToken,
		apiBase:    defaultAPIBase,
	}
}

// discordUser はDiscordユーザーオブジェクトの必要なフィールドのみを表す。
type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

// FetchUserInfo は指定DiscordIDのユーザーの表示名とアイコンURLを取得する。
// 表示名はグローバル名を優先し、未設定ならユーザー名を使う。
// アバター未設定のユーザーにはデフォルトアバターのURLを返す。
func (c *Client) FetchUserInfo(ctx context.Context, discordID string) (*model.UserInfo, error) {
	reqURL := fmt.Sprintf("%s/users/%s", c.apiBase, discordID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("User-Agent", "Roomkeeper/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Discord APIの呼び出しに失敗しました",
			slog.String("discord_id", discordID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Discord APIがエラーステータスを返しました",
			slog.String("discord_id", discordID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("Discord APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var user discordUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	name := user.GlobalName
	if name == "" {
		name = user.Username
	}

	iconURL := fmt.Sprintf("%s/embed/avatars/0.png", cdnBase)
	if user.Avatar != "" {
		iconURL = fmt.Sprintf("%s/avatars/%s/%s.png", cdnBase, user.ID, user.Avatar)
	}

	return &model.UserInfo{
		Name:    name,
		IconURL: iconURL,
	}, nil
}
