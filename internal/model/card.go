package model

import "time"

// StudentCard はユーザーに紐付く学生証を表す。
// 学籍番号はシステム全体で一意で、1ユーザーにつき高々1枚。
type StudentCard struct {
	ID        string
	StudentID int
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateStudentID は学籍番号を差し替えた新しいStudentCardを返す。
// 既存の行を置き換える想定であり、レシーバは変更しない。
func (c StudentCard) UpdateStudentID(studentID int) StudentCard {
	next := c
	next.StudentID = studentID
	return next
}

// NfcCard はユーザーに紐付く登録済みNFCタグを表す。
// UnknownNfcCardの解決（コード入力による登録）を経てのみ作成される。
type NfcCard struct {
	ID        string
	Name      string
	Idm       string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnknownNfcCard は未登録のまま読み取られた物理タグを表す。
// 登録案内用の4桁表示コードを持ち、登録が完了した時点で削除される。
type UnknownNfcCard struct {
	ID        string
	Code      string
	Idm       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
