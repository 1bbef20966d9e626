package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arunvm123/ticketinventory/config"
	"github.com/arunvm123/ticketinventory/model"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewRepository(cfg *config.Database) (*PostgresRepository, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	// Auto-migrate all models
	if err := db.AutoMigrate(&model.Event{}, &model.Booking{}, &model.Category{}, &model.Tag{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	zlog.Info().Str("host", cfg.Host).Str("database", cfg.DatabaseName).Msg("database connected and tables migrated")

	return &PostgresRepository{db: db}, nil
}

// NewWithDB wraps an already opened connection.
func NewWithDB(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetEventForUpdate reads the event row with SELECT ... FOR UPDATE. Inside a
// transaction the row stays locked until commit or rollback, so concurrent
// reservations for the same event queue up here.
func (r *PostgresRepository) GetEventForUpdate(ctx context.Context, eventID string) (*model.Event, error) {
	var event model.Event
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", eventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrEventNotFound
		}
		return nil, mapError(err)
	}
	return &event, nil
}

// SaveEvent writes the engine-owned columns with a version compare-and-swap.
func (r *PostgresRepository) SaveEvent(ctx context.Context, event *model.Event, expectedVersion int64) error {
	now := time.Now().UTC()
	result := r.conn(ctx).
		Model(&model.Event{}).
		Where("id = ? AND version = ?", event.ID, expectedVersion).
		Updates(map[string]interface{}{
			"capacity":          event.Capacity,
			"available_tickets": event.AvailableTickets,
			"version":           expectedVersion + 1,
			"updated_at":        now,
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: event %s at version %d", model.ErrConflict, event.ID, expectedVersion)
	}

	event.Version = expectedVersion + 1
	event.UpdatedAt = now
	return nil
}

func (r *PostgresRepository) InsertBooking(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	if err := r.conn(ctx).Create(booking).Error; err != nil {
		return nil, mapError(err)
	}
	return booking, nil
}

func (r *PostgresRepository) GetBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	var booking model.Booking
	err := r.conn(ctx).Where("id = ?", bookingID).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrBookingNotFound
		}
		return nil, mapError(err)
	}
	return &booking, nil
}

// SaveBooking persists the mutable booking columns.
func (r *PostgresRepository) SaveBooking(ctx context.Context, booking *model.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	result := r.conn(ctx).
		Model(&model.Booking{}).
		Where("id = ?", booking.ID).
		Updates(map[string]interface{}{
			"ticket_count":      booking.TicketCount,
			"total_price_minor": booking.TotalPriceMinor,
			"status":            booking.Status,
			"cancelled_at":      booking.CancelledAt,
			"updated_at":        booking.UpdatedAt,
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrBookingNotFound
	}
	return nil
}

// Ping is used by the health check
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return mapError(err)
	}
	return mapError(sqlDB.PingContext(ctx))
}
