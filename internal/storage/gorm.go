package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"borsapulse/internal/config"
	apperrors "borsapulse/internal/errors"
	"borsapulse/pkg/contracts/domain"
)

const analysisInsertBatchSize = 500

// GormStore implements Store on a relational database through gorm
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenGorm connects to the configured database and migrates the schema.
func OpenGorm(cfg config.DatabaseConfig, logger *slog.Logger) (*GormStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "storage"))

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(logger, cfg.LogLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, apperrors.NewPersistenceError("open database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.NewPersistenceError("open database", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&instrumentModel{}, &priceBarModel{}, &analysisModel{}, &batchModel{}); err != nil {
		return nil, apperrors.NewPersistenceError("migrate schema", err)
	}

	logger.Info("database ready", slog.String("driver", cfg.Driver))
	return &GormStore{db: db, logger: logger}, nil
}

// translate maps gorm errors onto the package sentinels and wraps the rest
// as persistence failures.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return apperrors.NewPersistenceError(op, err)
	}
}

func (s *GormStore) CreateInstrument(ctx context.Context, inst *domain.Instrument) error {
	m := toInstrumentModel(inst)
	return translate("create instrument", s.db.WithContext(ctx).Create(&m).Error)
}

func (s *GormStore) GetInstrument(ctx context.Context, id string) (*domain.Instrument, error) {
	var m instrumentModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate("get instrument", err)
	}
	inst := m.toDomain()
	return &inst, nil
}

func (s *GormStore) GetInstrumentBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error) {
	var m instrumentModel
	if err := s.db.WithContext(ctx).First(&m, "symbol = ?", symbol).Error; err != nil {
		return nil, translate("get instrument", err)
	}
	inst := m.toDomain()
	return &inst, nil
}

func (s *GormStore) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	var models []instrumentModel
	if err := s.db.WithContext(ctx).Order("symbol").Find(&models).Error; err != nil {
		return nil, translate("list instruments", err)
	}
	result := make([]domain.Instrument, len(models))
	for i, m := range models {
		result[i] = m.toDomain()
	}
	return result, nil
}

func (s *GormStore) UpdateInstrument(ctx context.Context, inst *domain.Instrument) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current instrumentModel
		if err := tx.First(&current, "id = ?", inst.ID).Error; err != nil {
			return err
		}
		return tx.Model(&current).Updates(map[string]any{
			"name":        inst.Name,
			"sector":      inst.Sector,
			"description": inst.Description,
			"is_active":   inst.IsActive,
		}).Error
	})
	return translate("update instrument", err)
}

func (s *GormStore) DeleteInstrument(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&instrumentModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for _, model := range []any{&priceBarModel{}, &analysisModel{}, &batchModel{}} {
			if err := tx.Where("instrument_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translate("delete instrument", err)
}

func (s *GormStore) PriceBarExists(ctx context.Context, instrumentID string, date time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&priceBarModel{}).
		Where("instrument_id = ? AND date = ?", instrumentID, domain.NormalizeDate(date)).
		Count(&count).Error
	if err != nil {
		return false, translate("check price bar", err)
	}
	return count > 0, nil
}

func (s *GormStore) UpsertPriceBar(ctx context.Context, bar domain.PriceBar) error {
	m := toPriceBarModel(bar)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "change_pct"}),
	}).Create(&m).Error
	return translate("upsert price bar", err)
}

func (s *GormStore) ListPriceBars(ctx context.Context, instrumentID string) ([]domain.PriceBar, error) {
	var models []priceBarModel
	err := s.db.WithContext(ctx).
		Where("instrument_id = ?", instrumentID).
		Order("date").
		Find(&models).Error
	if err != nil {
		return nil, translate("list price bars", err)
	}
	result := make([]domain.PriceBar, len(models))
	for i, m := range models {
		result[i] = m.toDomain()
	}
	return result, nil
}

func (s *GormStore) CountPriceBars(ctx context.Context, instrumentID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&priceBarModel{}).
		Where("instrument_id = ?", instrumentID).
		Count(&count).Error
	if err != nil {
		return 0, translate("count price bars", err)
	}
	return int(count), nil
}

// ReplaceAnalysis deletes and re-inserts the instrument's records in one
// transaction; readers never observe a partial set.
func (s *GormStore) ReplaceAnalysis(ctx context.Context, instrumentID string, records []domain.AnalysisRecord) error {
	models := make([]analysisModel, len(records))
	for i, r := range records {
		models[i] = toAnalysisModel(r)
		models[i].InstrumentID = instrumentID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("instrument_id = ?", instrumentID).Delete(&analysisModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.CreateInBatches(&models, analysisInsertBatchSize).Error
	})
	return translate("replace analysis", err)
}

func (s *GormStore) ListAnalysis(ctx context.Context, instrumentID string, q domain.AnalysisQuery) ([]domain.AnalysisRecord, error) {
	query := s.db.WithContext(ctx).Where("instrument_id = ?", instrumentID)
	if !q.From.IsZero() {
		query = query.Where("date >= ?", domain.NormalizeDate(q.From))
	}
	if !q.To.IsZero() {
		query = query.Where("date <= ?", domain.NormalizeDate(q.To))
	}

	var models []analysisModel
	if err := query.Order("date").Find(&models).Error; err != nil {
		return nil, translate("list analysis", err)
	}
	result := make([]domain.AnalysisRecord, len(models))
	for i, m := range models {
		result[i] = m.toDomain()
	}
	return result, nil
}

func (s *GormStore) CreateBatch(ctx context.Context, batch *domain.IngestionBatch) error {
	m := toBatchModel(batch)
	return translate("create batch", s.db.WithContext(ctx).Create(&m).Error)
}

func (s *GormStore) UpdateBatch(ctx context.Context, batch *domain.IngestionBatch) error {
	m := toBatchModel(batch)
	res := s.db.WithContext(ctx).Model(&batchModel{ID: m.ID}).Select("*").Updates(&m)
	if res.Error != nil {
		return translate("update batch", res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero affected rows when nothing changed
		var count int64
		if err := s.db.WithContext(ctx).Model(&batchModel{}).Where("id = ?", m.ID).Count(&count).Error; err != nil {
			return translate("update batch", err)
		}
		if count == 0 {
			return translate("update batch", gorm.ErrRecordNotFound)
		}
	}
	return nil
}

func (s *GormStore) GetBatch(ctx context.Context, id string) (*domain.IngestionBatch, error) {
	var m batchModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate("get batch", err)
	}
	batch := m.toDomain()
	return &batch, nil
}

func (s *GormStore) ListBatches(ctx context.Context, instrumentID string) ([]domain.IngestionBatch, error) {
	var models []batchModel
	err := s.db.WithContext(ctx).
		Where("instrument_id = ?", instrumentID).
		Order("uploaded_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, translate("list batches", err)
	}
	result := make([]domain.IngestionBatch, len(models))
	for i, m := range models {
		result[i] = m.toDomain()
	}
	return result, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translate("ping", err)
	}
	return translate("ping", sqlDB.PingContext(ctx))
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*GormStore)(nil)

// gormSlog routes gorm's logger through slog, keeping gorm's severities:
// failed statements at Error, slow ones at Warn and traces at Info.
type gormSlog struct {
	logger        *slog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(logger *slog.Logger, level string) gormlogger.Interface {
	lvl := gormlogger.Warn
	switch strings.ToLower(level) {
	case "silent":
		lvl = gormlogger.Silent
	case "error":
		lvl = gormlogger.Error
	case "info":
		lvl = gormlogger.Info
	}
	return &gormSlog{
		logger:        logger.With(slog.String("component", "gorm")),
		level:         lvl,
		slowThreshold: 200 * time.Millisecond,
	}
}

func (g *gormSlog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *gormSlog) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.logger.InfoContext(ctx, strings.TrimSpace(fmt.Sprintf(msg, args...)))
	}
}

func (g *gormSlog) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.logger.WarnContext(ctx, strings.TrimSpace(fmt.Sprintf(msg, args...)))
	}
}

func (g *gormSlog) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.logger.ErrorContext(ctx, strings.TrimSpace(fmt.Sprintf(msg, args...)))
	}
}

func (g *gormSlog) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.logger.ErrorContext(ctx, "query failed",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.logger.WarnContext(ctx, "slow query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.Duration("threshold", g.slowThreshold))
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.logger.InfoContext(ctx, "query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed))
	}
}
