package merchantd

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// StoreSettings is the persisted configuration record for the connected store.
// A single row holds the full merchant configuration.
type StoreSettings struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	StoreID   string `gorm:"size:64;index"`
	APISecret string `gorm:"size:128"`
	Connected bool

	WalletType    string `gorm:"size:16"`
	WalletAddress string `gorm:"size:64"`

	PayoutMode string `gorm:"size:16"`

	Rate1 float64
	Rate2 float64
	Rate3 float64
	Rate4 float64
	Rate5 float64

	MinPayoutThreshold float64
	PayoutScheduleDays int

	CookieDays int

	AutoSignTermsAccepted bool
	AutoSignLimitsSet     bool
	AutoSignMaxSingle     float64
	AutoSignDailyLimit    float64
	AutoSignEnabled       bool

	PromoCode    string `gorm:"size:8"`
	ReferralCode string `gorm:"size:8"`
}

// TableName keeps the table singular since only one row ever exists.
func (StoreSettings) TableName() string { return "store_settings" }

// ErrSettingsNotFound indicates no settings row has been created yet.
var ErrSettingsNotFound = errors.New("merchantd: settings not initialised")

// SettingsStore persists the merchant configuration.
type SettingsStore struct {
	db *gorm.DB
}

// OpenSettingsStore connects to the configured database backend and runs
// migrations.
func OpenSettingsStore(cfg DatabaseConfig) (*SettingsStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&StoreSettings{}); err != nil {
		return nil, fmt.Errorf("migrate settings: %w", err)
	}
	return &SettingsStore{db: db}, nil
}

// NewSettingsStore wraps an existing gorm handle, used by tests.
func NewSettingsStore(db *gorm.DB) (*SettingsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database handle")
	}
	if err := db.AutoMigrate(&StoreSettings{}); err != nil {
		return nil, fmt.Errorf("migrate settings: %w", err)
	}
	return &SettingsStore{db: db}, nil
}

// Load returns the current settings row.
func (s *SettingsStore) Load() (*StoreSettings, error) {
	var record StoreSettings
	err := s.db.First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &record, nil
}

// LoadOrInit returns the settings row, creating it with defaults when absent.
func (s *SettingsStore) LoadOrInit() (*StoreSettings, error) {
	record, err := s.Load()
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrSettingsNotFound) {
		return nil, err
	}
	fresh := defaultSettings()
	if err := s.db.Create(fresh).Error; err != nil {
		return nil, fmt.Errorf("init settings: %w", err)
	}
	return fresh, nil
}

// Save persists the settings row.
func (s *SettingsStore) Save(record *StoreSettings) error {
	if record == nil {
		return fmt.Errorf("nil settings record")
	}
	if err := s.db.Save(record).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Reset deletes the settings row and recreates defaults. Used by the
// permanent-delete flow after remote deletion succeeds.
func (s *SettingsStore) Reset() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&StoreSettings{}).Error; err != nil {
			return fmt.Errorf("clear settings: %w", err)
		}
		if err := tx.Create(defaultSettings()).Error; err != nil {
			return fmt.Errorf("recreate settings: %w", err)
		}
		return nil
	})
}

func defaultSettings() *StoreSettings {
	return &StoreSettings{
		ID:                 uuid.New(),
		PayoutMode:         string(ModeManual),
		Rate1:              25,
		Rate2:              5,
		Rate3:              3,
		Rate4:              2,
		Rate5:              1,
		MinPayoutThreshold: 0,
		PayoutScheduleDays: 0,
		CookieDays:         30,
		AutoSignMaxSingle:  100,
		AutoSignDailyLimit: 1000,
	}
}

// Rates extracts the five-level commission table from the settings row.
func (r *StoreSettings) Rates() RateTable {
	return RateTable{r.Rate1, r.Rate2, r.Rate3, r.Rate4, r.Rate5}
}

// SetRates writes the five-level commission table back onto the row.
func (r *StoreSettings) SetRates(t RateTable) {
	r.Rate1, r.Rate2, r.Rate3, r.Rate4, r.Rate5 = t[0], t[1], t[2], t[3], t[4]
}

// AutoSignState derives the policy state from the persisted flags. The state
// is never stored directly so it cannot drift from the fields it summarises.
func (r *StoreSettings) AutoSignState() AutoSignState {
	switch {
	case r.AutoSignEnabled:
		return StateEnabled
	case r.AutoSignTermsAccepted && r.AutoSignLimitsSet:
		return StateLimitsSet
	case r.AutoSignTermsAccepted:
		return StateTermsAccepted
	default:
		return StateNotConfigured
	}
}
