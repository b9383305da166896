// Package model はドメインモデルを定義する。
package model

import "time"

// User は部屋を利用するメンバーを表す。
// Discordアカウントと1対1で対応し、カード登録時または
// 登録済みカードの初回スキャン時に遅延作成される。
type User struct {
	ID        string
	DiscordID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserInfo はDiscordから取得する表示用メタデータを表す。
// 通知メッセージの整形にのみ使用し、永続化しない。
type UserInfo struct {
	Name    string
	IconURL string
}
