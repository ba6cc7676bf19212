package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"neuroflash-backend/internal/models"
	"neuroflash-backend/internal/srs"
)

type userRepository interface {
	GetStudySettings(ctx context.Context, userID uuid.UUID) (*models.StudySettings, error)
	UpsertStudySettings(ctx context.Context, s *models.StudySettings) error
	GetDashboardStats(ctx context.Context, userID uuid.UUID, asOf time.Time) (*models.DashboardStats, error)
}

// settingsCache is the slice of *redis.Client the settings cache uses.
type settingsCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// UserService owns per-user study settings and dashboard numbers. Settings
// are read through a redis cache when one is configured.
type UserService struct {
	repo     userRepository
	cache    settingsCache
	cacheTTL time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewUserService(repo userRepository, cache settingsCache, cacheTTL time.Duration, loc *time.Location) *UserService {
	if loc == nil {
		loc = time.UTC
	}
	return &UserService{repo: repo, cache: cache, cacheTTL: cacheTTL, loc: loc, now: time.Now}
}

// Cached settings live under a per-user generation. Every update bumps the
// generation, so a reader that loaded the old row before the update can only
// write it under a key nobody reads anymore.
func settingsGenerationKey(userID uuid.UUID) string {
	return fmt.Sprintf("study_settings_gen:%s", userID.String())
}

func settingsCacheKey(userID uuid.UUID, gen string) string {
	return fmt.Sprintf("study_settings:%s:%s", userID.String(), gen)
}

func (s *UserService) cacheGeneration(ctx context.Context, userID uuid.UUID) (string, bool) {
	gen, err := s.cache.Get(ctx, settingsGenerationKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	if err != nil {
		log.Printf("settings cache generation read failed for %s: %v", userID, err)
		return "", false
	}
	return gen, true
}

// GetStudySettings returns the user's settings, or the defaults if none were
// saved. Cache failures fall through to the database.
func (s *UserService) GetStudySettings(ctx context.Context, userID uuid.UUID) (*models.StudySettings, error) {
	var key string
	if s.cache != nil {
		if gen, ok := s.cacheGeneration(ctx, userID); ok {
			key = settingsCacheKey(userID, gen)
			raw, err := s.cache.Get(ctx, key).Bytes()
			if err == nil {
				var cached models.StudySettings
				if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
					return &cached, nil
				}
			} else if !errors.Is(err, redis.Nil) {
				log.Printf("settings cache read failed for %s: %v", userID, err)
			}
		}
	}

	settings, err := s.repo.GetStudySettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if key != "" && s.cacheTTL > 0 {
		if data, err := json.Marshal(settings); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
				log.Printf("settings cache write failed for %s: %v", userID, err)
			}
		}
	}
	return settings, nil
}

// UpdateStudySettings validates and stores settings, then retires the cached
// copy by bumping the user's cache generation.
func (s *UserService) UpdateStudySettings(ctx context.Context, userID uuid.UUID, settings models.StudySettings) (*models.StudySettings, error) {
	settings.UserID = userID
	settings.LearningSteps = strings.TrimSpace(settings.LearningSteps)
	if settings.LearningSteps == "" {
		settings.LearningSteps = models.DefaultLearningSteps
	}
	if settings.EaseBonus == 0 {
		settings.EaseBonus = srs.DefaultEaseBonus
	}
	if err := validateStruct("Invalid study settings", settings); err != nil {
		return nil, err
	}

	if err := s.repo.UpsertStudySettings(ctx, &settings); err != nil {
		return nil, &StoreError{Op: "save study settings", Err: err}
	}

	if s.cache != nil {
		if err := s.cache.Incr(ctx, settingsGenerationKey(userID)).Err(); err != nil {
			log.Printf("settings cache invalidation failed for %s: %v", userID, err)
		}
	}
	return &settings, nil
}

func (s *UserService) Dashboard(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	stats, err := s.repo.GetDashboardStats(ctx, userID, srs.Today(s.now(), s.loc))
	if err != nil {
		return nil, &StoreError{Op: "load dashboard", Err: err}
	}
	return stats, nil
}
