package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lobbyserver/internal/microservices/http-api/models"
	"lobbyserver/internal/microservices/http-api/repository"
	"lobbyserver/internal/microservices/lobby"
)

var ErrBanTargetMissing = errors.New("ban requires a username or an address")

// RealtimeLobby is the slice of the lobby core the moderation service
// drives. Actions must take effect against already-open connections, not
// only on next reconnect.
type RealtimeLobby interface {
	DisconnectUser(username, reason string) bool
	BootGame(gameID string)
	MuteUser(ctx context.Context, username string, duration time.Duration) error
	UnmuteUser(ctx context.Context, username string) error
	ListGames() []lobby.GameAdvertisement
}

type ModerationService interface {
	BanUser(ctx context.Context, moderator, username, address, reason string, duration time.Duration) (*models.Ban, error)
	LiftBan(ctx context.Context, moderator, banID string) error
	ListBans(limit, offset int) ([]models.Ban, error)
	DisconnectUser(ctx context.Context, moderator, username, reason string) bool
	BootGame(ctx context.Context, moderator, gameID string)
	MuteUser(ctx context.Context, moderator, username string, duration time.Duration) error
	UnmuteUser(ctx context.Context, moderator, username string) error
	ListGames() []lobby.GameAdvertisement
	AuditLog(ctx context.Context, limit, offset int) ([]models.AuditEntry, error)
	AuditLogByActor(ctx context.Context, actor string, limit int) ([]models.AuditEntry, error)
}

type moderationService struct {
	banRepo   repository.BanRepository
	auditRepo repository.AuditRepository
	realtime  RealtimeLobby
}

func NewModerationService(
	banRepo repository.BanRepository,
	auditRepo repository.AuditRepository,
	realtime RealtimeLobby,
) ModerationService {
	return &moderationService{
		banRepo:   banRepo,
		auditRepo: auditRepo,
		realtime:  realtime,
	}
}

// BanUser records the ban and immediately force-closes any live session of
// the target. duration <= 0 means permanent.
func (s *moderationService) BanUser(ctx context.Context, moderator, username, address, reason string, duration time.Duration) (*models.Ban, error) {
	if username == "" && address == "" {
		return nil, ErrBanTargetMissing
	}

	ban := &models.Ban{
		Username: username,
		Address:  address,
		Reason:   reason,
		IssuedBy: moderator,
	}
	if duration > 0 {
		expires := time.Now().Add(duration)
		ban.ExpiresAt = &expires
	}

	if err := s.banRepo.Create(ban); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, models.AuditBanIssued, moderator, username, reason)

	// the ban gate rejects the target's next inbound frame anyway, but a
	// direct disconnect is faster and frees the identity slot right now
	if username != "" {
		s.realtime.DisconnectUser(username, "banned")
	}

	return ban, nil
}

func (s *moderationService) LiftBan(ctx context.Context, moderator, banID string) error {
	ban, err := s.banRepo.FindByID(banID)
	if err != nil {
		return err
	}
	if err := s.banRepo.Delete(banID); err != nil {
		return err
	}
	s.recordAudit(ctx, models.AuditBanLifted, moderator, ban.Username, ban.Reason)
	return nil
}

func (s *moderationService) ListBans(limit, offset int) ([]models.Ban, error) {
	return s.banRepo.ListActive(limit, offset)
}

func (s *moderationService) DisconnectUser(ctx context.Context, moderator, username, reason string) bool {
	found := s.realtime.DisconnectUser(username, reason)
	if found {
		s.recordAudit(ctx, models.AuditDisconnect, moderator, username, reason)
	}
	return found
}

// BootGame removes the advertisement and disconnects its host. Booting an
// unknown game id is a no-op; the audit entry still records the attempt.
func (s *moderationService) BootGame(ctx context.Context, moderator, gameID string) {
	s.realtime.BootGame(gameID)
	s.recordAudit(ctx, models.AuditGameBooted, moderator, gameID, "moderator boot")
}

func (s *moderationService) MuteUser(ctx context.Context, moderator, username string, duration time.Duration) error {
	if err := s.realtime.MuteUser(ctx, username, duration); err != nil {
		return err
	}
	s.recordAudit(ctx, models.AuditMute, moderator, username, duration.String())
	return nil
}

func (s *moderationService) UnmuteUser(ctx context.Context, moderator, username string) error {
	if err := s.realtime.UnmuteUser(ctx, username); err != nil {
		return err
	}
	s.recordAudit(ctx, models.AuditUnmute, moderator, username, "mute lifted")
	return nil
}

func (s *moderationService) ListGames() []lobby.GameAdvertisement {
	return s.realtime.ListGames()
}

func (s *moderationService) AuditLog(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	return s.auditRepo.List(ctx, limit, offset)
}

func (s *moderationService) AuditLogByActor(ctx context.Context, actor string, limit int) ([]models.AuditEntry, error) {
	return s.auditRepo.ListByActor(ctx, actor, limit)
}

func (s *moderationService) recordAudit(ctx context.Context, kind, actor, target, detail string) {
	entry := &models.AuditEntry{
		Kind:   kind,
		Actor:  actor,
		Target: target,
		Detail: detail,
	}
	// audit failure never fails the moderation action itself
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		slog.Warn("audit_append_failed",
			"kind", kind,
			"actor", actor,
			"error", err.Error(),
		)
	}
}
