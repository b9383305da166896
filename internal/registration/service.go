// Package registration はクレデンシャル登録のドメインロジックを提供する。
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/roomkeeper/internal/model"
	"github.com/hitoshi/roomkeeper/internal/repository"
)

// Status は登録操作の結果種別を表す。
type Status string

const (
	// StatusCreated は新規に登録されたことを示す。
	StatusCreated Status = "created"
	// StatusUpdated は既存の登録が更新されたことを示す。
	StatusUpdated Status = "updated"
)

// NameSanitizer はユーザー入力の表示名を無害化するインターフェース。
type NameSanitizer interface {
	Sanitize(raw string) string
}

// Collector は登録メトリクスの収集インターフェース。
type Collector interface {
	RecordRegistration(kind, status string)
}

// Service はクレデンシャル登録のサービス層。
type Service struct {
	userRepo        repository.UserRepository
	studentCardRepo repository.StudentCardRepository
	nfcCardRepo     repository.NfcCardRepository
	unknownNfcRepo  repository.UnknownNfcCardRepository
	sanitizer       NameSanitizer
	metrics         Collector
}

// NewService はServiceの新しいインスタンスを生成する。
// sanitizerとmetricsはnilを許容する。
func NewService(
	userRepo repository.UserRepository,
	studentCardRepo repository.StudentCardRepository,
	nfcCardRepo repository.NfcCardRepository,
	unknownNfcRepo repository.UnknownNfcCardRepository,
	sanitizer NameSanitizer,
	metrics Collector,
) *Service {
	return &Service{
		userRepo:        userRepo,
		studentCardRepo: studentCardRepo,
		nfcCardRepo:     nfcCardRepo,
		unknownNfcRepo:  unknownNfcRepo,
		sanitizer:       sanitizer,
		metrics:         metrics,
	}
}

// RegisterStudentCard はDiscordユーザーに学生証を紐付ける。
//
// ユーザーが未登録なら先に作成する。学籍番号が他のユーザーに登録済みの
// 場合はSTUDENT_CARD_ALREADY_REGISTEREDを返す。自分自身に登録済みの
// 番号の再登録は衝突とみなさず、更新として成功する。
// ユーザーが持てる学生証は1枚で、2回目以降の登録は番号の差し替えになる。
func (s *Service) RegisterStudentCard(ctx context.Context, discordID string, studentID int) (Status, error) {
	user, err := s.findOrCreateUser(ctx, discordID)
	if err != nil {
		return "", err
	}

	existing, err := s.studentCardRepo.FindByStudentID(ctx, studentID)
	if err != nil {
		return "", model.NewUnknownError(fmt.Errorf("failed to check student id conflict: %w", err))
	}
	if existing != nil && existing.UserID != user.ID {
		return "", model.NewStudentCardAlreadyRegisteredError()
	}

	own, err := s.studentCardRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		return "", model.NewUnknownError(fmt.Errorf("failed to find own student card: %w", err))
	}

	status := StatusUpdated
	if own == nil {
		if _, err := s.studentCardRepo.Create(ctx, studentID, user.ID); err != nil {
			if errors.Is(err, repository.ErrStudentIDConflict) {
				// 事前チェックと作成の間に他の登録が割り込んだ
				return "", model.NewStudentCardAlreadyRegisteredError()
			}
			return "", model.NewUnknownError(fmt.Errorf("failed to create student card: %w", err))
		}
		status = StatusCreated
	} else {
		if err := s.studentCardRepo.Save(ctx, own.UpdateStudentID(studentID)); err != nil {
			if errors.Is(err, repository.ErrStudentIDConflict) {
				return "", model.NewStudentCardAlreadyRegisteredError()
			}
			return "", model.NewUnknownError(fmt.Errorf("failed to update student card: %w", err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration("student_card", string(status))
	}

	slog.Info("学生証を登録しました",
		slog.String("discord_id", discordID),
		slog.String("status", string(status)),
	)

	return status, nil
}

// RegisterNfcCard は表示コードで未登録タグを引き当て、Discordユーザーの
// NFCタグとして登録する。未登録レコードは消費（削除）される。
//
// コードに対応する未登録タグがなければNFC_CARD_NOT_FOUND、
// タグのIDmが登録済みならNFC_CARD_ALREADY_REGISTEREDを返す。
// 削除と作成はトランザクションで括らない。作成に失敗した場合は
// タグを再タッチすればコードが再発行される。
func (s *Service) RegisterNfcCard(ctx context.Context, discordID, code, name string) (*model.NfcCard, error) {
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(name)
	}
	name = strings.TrimSpace(name)
	// タグだけの名前（例: "<b></b>"）はサニタイズで空になる
	if name == "" {
		return nil, model.NewInvalidCardNameError()
	}

	user, err := s.findOrCreateUser(ctx, discordID)
	if err != nil {
		return nil, err
	}

	unknown, err := s.unknownNfcRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to find unknown nfc card by code: %w", err))
	}
	if unknown == nil {
		return nil, model.NewNfcCardNotFoundError()
	}

	registered, err := s.nfcCardRepo.FindByIdm(ctx, unknown.Idm)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to check nfc idm conflict: %w", err))
	}
	if registered != nil {
		return nil, model.NewNfcCardAlreadyRegisteredError()
	}

	if err := s.unknownNfcRepo.DeleteByID(ctx, unknown.ID); err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to consume unknown nfc card: %w", err))
	}

	card, err := s.nfcCardRepo.Create(ctx, name, unknown.Idm, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrIdmConflict) {
			// チェックと作成の間に他の登録が割り込んだ
			return nil, model.NewNfcCardAlreadyRegisteredError()
		}
		return nil, model.NewUnknownError(fmt.Errorf("failed to create nfc card: %w", err))
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration("nfc_card", string(StatusCreated))
	}

	slog.Info("NFCカードを登録しました",
		slog.String("discord_id", discordID),
		slog.String("card_name", card.Name),
	)

	return card, nil
}

// findOrCreateUser はDiscordIDでユーザーを引き当て、存在しなければ作成する。
func (s *Service) findOrCreateUser(ctx context.Context, discordID string) (*model.User, error) {
	user, err := s.userRepo.FindByDiscordID(ctx, discordID)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to find user: %w", err))
	}
	if user != nil {
		return user, nil
	}

	user, err = s.userRepo.Create(ctx, discordID)
	if err != nil {
		return nil, model.NewUnknownError(fmt.Errorf("failed to create user: %w", err))
	}
	return user, nil
}
