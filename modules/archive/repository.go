package archive

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a room has no archived messages.
var ErrNotFound = errors.New("no archived messages for room")

// Record is one archived message row. The relay itself stays ephemeral;
// records exist for audit queries only and are never replayed to clients.
type Record struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	RoomID    string    `gorm:"index" json:"room"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"userName,omitempty"`
	Sender    string    `json:"sender"`
	Body      string    `json:"text"`
	SentAt    time.Time `gorm:"index" json:"timestamp"`
}

// Repository provides access to the message archive.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new archive repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the archive schema.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&Record{})
}

// Append stores one relayed message.
func (r *Repository) Append(record *Record) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// RecentByRoom returns the most recent records for a room, newest first.
func (r *Repository) RecentByRoom(roomID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var records []Record
	err := r.db.
		Where("room_id = ?", roomID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// CountByRoom returns the number of archived messages for a room.
func (r *Repository) CountByRoom(roomID string) (int64, error) {
	var count int64
	if err := r.db.Model(&Record{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count archive: %w", err)
	}
	return count, nil
}
