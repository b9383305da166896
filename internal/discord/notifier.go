package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// 埋め込みメッセージの色
const (
	colorEntry   = 0x57F287 // 緑
	colorExit    = 0xED4245 // 赤
	colorExitAll = 0xFEE75C // 黄
)

// TouchNotification は入退室1件分の通知内容を表す。
type TouchNotification struct {
	DiscordID   string
	DisplayName string // 空の場合はメンション表記にフォールバックする
	IconURL     string
	Entered     bool
	Occupancy   int
}

// Notifier はDiscord Webhookへ入退室通知を送信する。
// httpClientにはSSRF防止付きのクライアントを渡す（WebhookURLは運用者設定値）。
type Notifier struct {
	httpClient *http.Client
	logger     *slog.Logger
	webhookURL string
}

// NewNotifier はNotifierの新しいインスタンスを生成する。
func NewNotifier(httpClient *http.Client, logger *slog.Logger, webhookURL string) *Notifier {
	return &Notifier{
		httpClient: httpClient,
		logger:     logger,
		webhookURL: webhookURL,
	}
}

// webhookPayload はDiscord Webhookのリクエストボディ。
type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Author      *embedAuthor `json:"author,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// NotifyTouch は入室（緑）または退室（赤）の埋め込みメッセージを送信する。
func (n *Notifier) NotifyTouch(ctx context.Context, note TouchNotification) error {
	name := note.DisplayName
	if name == "" {
		name = fmt.Sprintf("<@%s>", note.DiscordID)
	}

	description := fmt.Sprintf("%sさんが入室しました", name)
	color := colorEntry
	if !note.Entered {
		description = fmt.Sprintf("%sさんが退室しました", name)
		color = colorExit
	}

	e := embed{
		Description: description,
		Color:       color,
		Fields: []embedField{
			{Name: "在室人数", Value: fmt.Sprintf("%d人", note.Occupancy), Inline: true},
		},
	}
	if note.DisplayName != "" {
		e.Author = &embedAuthor{Name: note.DisplayName, IconURL: note.IconURL}
	}

	return n.send(ctx, webhookPayload{Embeds: []embed{e}})
}

// NotifyExitAll は一括退室の通知を送信する。
// mentionsには強制退室させられたユーザーのメンション表記を渡す。
func (n *Notifier) NotifyExitAll(ctx context.Context, mentions []string) error {
	e := embed{
		Description: fmt.Sprintf("在室中の全員を退室させました。\n%s", strings.Join(mentions, " ")),
		Color:       colorExitAll,
	}
	return n.send(ctx, webhookPayload{Embeds: []embed{e}})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Webhookペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("Webhookの送信に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error("Webhookがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("Webhookがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}
