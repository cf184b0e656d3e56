package dao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"singlish-bot/model"
)

type intentRow struct {
	ID          string         `gorm:"type:varchar(36);primaryKey"`
	Name        string         `gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string         `gorm:"type:text"`
	Phrases     datatypes.JSON `gorm:"not null"`
	Responses   datatypes.JSON `gorm:"not null"`
	Category    string         `gorm:"type:varchar(50);index"`
	Priority    int            `gorm:"not null"`
	Active      bool           `gorm:"not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (intentRow) TableName() string { return "intents" }

type sessionRow struct {
	ID          string `gorm:"type:varchar(64);primaryKey"`
	OwnerID     string `gorm:"type:varchar(64);index"`
	DisplayName string `gorm:"type:varchar(255)"`
	Active      bool   `gorm:"not null"`
	CreatedAt   time.Time

	Messages []messageRow   `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Events   []analyticsRow `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (sessionRow) TableName() string { return "chat_sessions" }

type messageRow struct {
	ID         string  `gorm:"type:varchar(36);primaryKey"`
	SessionID  string  `gorm:"type:varchar(64);index;not null"`
	AuthorID   *string `gorm:"type:varchar(64)"`
	Role       string  `gorm:"type:varchar(10);not null"`
	Content    string  `gorm:"type:text;not null"`
	Intent     *string `gorm:"type:varchar(100)"`
	Confidence *float64
	LatencyMs  *int64
	CreatedAt  time.Time `gorm:"index"`
}

func (messageRow) TableName() string { return "messages" }

type analyticsRow struct {
	ID             string `gorm:"type:varchar(36);primaryKey"`
	SessionID      string `gorm:"type:varchar(64);index;not null"`
	UserID         string `gorm:"type:varchar(64);index"`
	EventType      string `gorm:"type:varchar(50);not null"`
	Intent         string `gorm:"type:varchar(100);index"`
	Confidence     float64
	ResponseTimeMs int64
	Strategy       string `gorm:"type:varchar(20)"`
	Data           datatypes.JSON
	CreatedAt      time.Time `gorm:"index"`
}

func (analyticsRow) TableName() string { return "analytics_events" }

// GormStore persists intents, sessions, messages and analytics in a SQL
// database through gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects with the named driver and migrates the schema.
func OpenGorm(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite" {
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&intentRow{}, &sessionRow{}, &messageRow{}, &analyticsRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func intentToRow(in *model.Intent) (intentRow, error) {
	phrases, err := toJSON(in.Phrases)
	if err != nil {
		return intentRow{}, fmt.Errorf("encode phrases: %w", err)
	}
	responses, err := toJSON(in.Responses)
	if err != nil {
		return intentRow{}, fmt.Errorf("encode responses: %w", err)
	}
	return intentRow{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Phrases:     phrases,
		Responses:   responses,
		Category:    in.Category,
		Priority:    in.Priority,
		Active:      in.Active,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}, nil
}

func rowToIntent(r intentRow) (model.Intent, error) {
	in := model.Intent{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Priority:    r.Priority,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Phrases, &in.Phrases); err != nil {
		return in, fmt.Errorf("decode phrases of %s: %w", r.Name, err)
	}
	if err := json.Unmarshal(r.Responses, &in.Responses); err != nil {
		return in, fmt.Errorf("decode responses of %s: %w", r.Name, err)
	}
	return in, nil
}

func rowToSession(r sessionRow) model.Session {
	return model.Session{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		DisplayName: r.DisplayName,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
	}
}

func sessionToRow(s model.Session) sessionRow {
	return sessionRow{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		DisplayName: s.DisplayName,
		Active:      s.Active,
		CreatedAt:   s.CreatedAt,
	}
}

func messageToRow(m model.Message) messageRow {
	r := messageRow{
		ID:         m.ID,
		SessionID:  m.SessionID,
		Role:       string(m.Role),
		Content:    m.Content,
		Intent:     m.Intent,
		Confidence: m.Confidence,
		LatencyMs:  m.LatencyMs,
		CreatedAt:  m.CreatedAt,
	}
	if m.AuthorID != "" {
		author := m.AuthorID
		r.AuthorID = &author
	}
	return r
}

func rowToMessage(r messageRow) model.Message {
	m := model.Message{
		ID:         r.ID,
		SessionID:  r.SessionID,
		Role:       model.Role(r.Role),
		Content:    r.Content,
		Intent:     r.Intent,
		Confidence: r.Confidence,
		LatencyMs:  r.LatencyMs,
		CreatedAt:  r.CreatedAt,
	}
	if r.AuthorID != nil {
		m.AuthorID = *r.AuthorID
	}
	return m
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

var _ Store = (*GormStore)(nil)
