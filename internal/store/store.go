package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/manor-backend/internal/engine"
)

// MatchRecord is one finished game.
type MatchRecord struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	SessionID      string        `gorm:"index;size:8;not null" json:"session_id"`
	Winner         string        `gorm:"size:16;not null" json:"winner"`
	Turns          int           `json:"turns"`
	KeysCollected  int           `json:"keys_collected"`
	KeysNeeded     int           `json:"keys_needed"`
	ConspiracyMode bool          `json:"conspiracy_mode"`
	KeyMode        string        `gorm:"size:16" json:"key_mode"`
	FinishedAt     time.Time     `gorm:"index" json:"finished_at"`
	Players        []MatchPlayer `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE" json:"players"`
	CreatedAt      time.Time     `json:"created_at"`
}

func (MatchRecord) TableName() string {
	return "matches"
}

type MatchPlayer struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	MatchID    uint   `gorm:"index;not null" json:"-"`
	PlayerID   string `gorm:"size:64;not null" json:"player_id"`
	Name       string `gorm:"size:64" json:"name"`
	Role       string `gorm:"size:16" json:"role"`
	Eliminated bool   `json:"eliminated"`
	IsHost     bool   `json:"is_host"`
}

func (MatchPlayer) TableName() string {
	return "match_players"
}

func FromSummary(m engine.MatchSummary, finishedAt time.Time) MatchRecord {
	rec := MatchRecord{
		SessionID:      m.SessionID,
		Winner:         string(m.Winner),
		Turns:          m.Turns,
		KeysCollected:  m.KeysCollected,
		KeysNeeded:     m.KeysNeeded,
		ConspiracyMode: m.ConspiracyMode,
		KeyMode:        string(m.KeyMode),
		FinishedAt:     finishedAt.UTC(),
		Players:        make([]MatchPlayer, 0, len(m.Players)),
	}
	for _, p := range m.Players {
		rec.Players = append(rec.Players, MatchPlayer{
			PlayerID:   p.PlayerID,
			Name:       p.Name,
			Role:       string(p.Role),
			Eliminated: p.Eliminated,
			IsHost:     p.IsHost,
		})
	}
	return rec
}

// Store archives finished matches in Postgres.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return New(db)
}

// New wraps an open connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&MatchRecord{}, &MatchPlayer{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) RecordMatch(ctx context.Context, m engine.MatchSummary) error {
	rec := FromSummary(m, s.now())
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record match %s: %w", m.SessionID, err)
	}
	return nil
}

// RecentMatches returns the latest finished matches, newest first.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	var out []MatchRecord
	err := s.db.WithContext(ctx).
		Preload("Players").
		Order("finished_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
