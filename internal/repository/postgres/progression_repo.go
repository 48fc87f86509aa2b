package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/domain/repository"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

// ProgressionRepo реализует repository.ProgressionRepository
type ProgressionRepo struct {
	db *gorm.DB
}

// NewProgressionRepo создает новый репозиторий прогресса игроков
func NewProgressionRepo(db *gorm.DB) *ProgressionRepo {
	return &ProgressionRepo{db: db}
}

// GetProfile возвращает профиль игрока
func (r *ProgressionRepo) GetProfile(ctx context.Context, playerID uint) (*entity.PlayerProfile, error) {
	var profile entity.PlayerProfile
	err := r.db.WithContext(ctx).Where("player_id = ?", playerID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// ListAchievements возвращает открытые достижения игрока
func (r *ProgressionRepo) ListAchievements(ctx context.Context, playerID uint) ([]entity.PlayerAchievement, error) {
	var achievements []entity.PlayerAchievement
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("unlocked_at, id").
		Find(&achievements).Error
	return achievements, err
}

// GetLedgerEntry возвращает запись журнала наград по ID сессии
func (r *ProgressionRepo) GetLedgerEntry(ctx context.Context, sessionID string) (*entity.RewardLedgerEntry, error) {
	var entry entity.RewardLedgerEntry
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ApplyCommit записывает начисление одной транзакцией.
// Вставка в журнал идёт первой: уникальный session_id отсекает повторное начисление
// ещё до изменения профиля.
func (r *ProgressionRepo) ApplyCommit(ctx context.Context, commit *entity.ProgressionCommit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := commit.Ledger
		if err := tx.Create(&ledger).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: session %s", repository.ErrDuplicateApplication, ledger.SessionID)
			}
			return fmt.Errorf("insert reward ledger: %w", err)
		}

		if err := saveProfile(tx, commit); err != nil {
			return err
		}

		if len(commit.Achievements) > 0 {
			// Достижение могло быть открыто конкурентной сессией: повтор не ошибка
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&commit.Achievements).Error; err != nil {
				return fmt.Errorf("insert achievements: %w", err)
			}
		}

		if len(commit.ChallengeProgress) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "challenge_id"}, {Name: "player_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"progress", "completed_at", "updated_at"}),
			}).Create(&commit.ChallengeProgress).Error; err != nil {
				return fmt.Errorf("upsert challenge progress: %w", err)
			}
		}

		if commit.Archive != nil {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(commit.Archive).Error; err != nil {
				return fmt.Errorf("archive session %s: %w", commit.Archive.ID, err)
			}
		}

		return nil
	})
}

// saveProfile создаёт профиль или обновляет его с проверкой версии
func saveProfile(tx *gorm.DB, commit *entity.ProgressionCommit) error {
	profile := commit.Profile
	profile.Version = commit.ExpectedVersion + 1

	if commit.IsNewProfile {
		if err := tx.Create(&profile).Error; err != nil {
			if isUniqueViolation(err) {
				// Профиль успели создать параллельно
				return repository.ErrVersionConflict
			}
			return fmt.Errorf("create player profile: %w", err)
		}
		return nil
	}

	result := tx.Model(&entity.PlayerProfile{}).
		Where("player_id = ? AND version = ?", profile.PlayerID, commit.ExpectedVersion).
		Updates(map[string]interface{}{
			"level":            profile.Level,
			"xp":               profile.XP,
			"points":           profile.Points,
			"title":            profile.Title,
			"sessions_played":  profile.SessionsPlayed,
			"sessions_won":     profile.SessionsWon,
			"perfect_sessions": profile.PerfectSessions,
			"daily_streak":     profile.DailyStreak,
			"last_played_date": profile.LastPlayedDate,
			"win_streak":       profile.WinStreak,
			"best_win_streak":  profile.BestWinStreak,
			"version":          profile.Version,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("update player profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrVersionConflict
	}
	return nil
}

// TopByXP возвращает игроков с наибольшим опытом
func (r *ProgressionRepo) TopByXP(ctx context.Context, limit int) ([]entity.PlayerProfile, error) {
	var profiles []entity.PlayerProfile
	err := r.db.WithContext(ctx).
		Order("xp DESC, player_id").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

// GetSessionRecord возвращает архивную запись сессии
func (r *ProgressionRepo) GetSessionRecord(ctx context.Context, sessionID string) (*entity.SessionRecord, error) {
	var record entity.SessionRecord
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}
