package model

import (
	"errors"
	"time"
)

// ErrAlreadyExited は退室済みの入室ログを再度閉じようとした場合のエラー。
// プログラミングエラーの検出用であり、ユーザー向けには公開しない。
var ErrAlreadyExited = errors.New("room entry log is already exited")

// RoomEntryLog は1回の入退室を表す。
// ExitAtがnilの行が「入室中」を意味し、同一ユーザーについて
// 入室中の行は高々1件しか存在しない。
type RoomEntryLog struct {
	ID        string
	UserID    string
	EntryAt   time.Time
	ExitAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen は入室中（退室していない）かどうかを返す。
func (l RoomEntryLog) IsOpen() bool {
	return l.ExitAt == nil
}

// ExitRoom は退室時刻を設定した新しいRoomEntryLogを返す。
// すでに退室済みの場合はErrAlreadyExitedを返す。レシーバは変更しない。
func (l RoomEntryLog) ExitRoom(exitAt time.Time) (RoomEntryLog, error) {
	if l.ExitAt != nil {
		return RoomEntryLog{}, ErrAlreadyExited
	}

	next := l
	next.ExitAt = &exitAt
	return next, nil
}
