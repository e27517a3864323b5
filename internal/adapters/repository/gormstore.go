package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/ranker/internal/domain/model"
	"github.com/okian/ranker/pkg/logger"
	"github.com/okian/ranker/pkg/metrics"
)

const ensureBatchSize = 500

type itemRow struct {
	Name   string  `gorm:"primaryKey;size:512"`
	Rating float64 `gorm:"type:double precision;not null;index"`
	Count  int64   `gorm:"column:count;not null"`
}

func (itemRow) TableName() string { return "items" }

type userRatingRow struct {
	Username string  `gorm:"primaryKey;size:255"`
	Item     string  `gorm:"primaryKey;size:512"`
	Rating   float64 `gorm:"type:double precision;not null"`
	Count    int64   `gorm:"column:count;not null"`
}

func (userRatingRow) TableName() string { return "user_item_ratings" }

type eventRow struct {
	ID       int64                       `gorm:"primaryKey;autoIncrement"`
	Username string                      `gorm:"size:255;not null;index"`
	Items    datatypes.JSONSlice[string] `gorm:"not null"`
	RatedAt  time.Time                   `gorm:"not null"`
}

func (eventRow) TableName() string { return "ranking_events" }

func (r itemRow) toModel() model.Item {
	return model.Item{Name: r.Name, Rating: r.Rating, Count: r.Count}
}

func (r userRatingRow) toModel() model.UserItemRating {
	return model.UserItemRating{Username: r.Username, Name: r.Item, Rating: r.Rating, Count: r.Count}
}

func (r eventRow) toModel() model.RankingEvent {
	return model.RankingEvent{ID: r.ID, Username: r.Username, Items: []string(r.Items), RatedAt: r.RatedAt}
}

// GormStore persists rating state in a SQL database through gorm.
type GormStore struct {
	db      *gorm.DB
	driver  string
	initial float64
	closed  atomic.Bool
	log     logger.Logger
}

var _ Store = (*GormStore)(nil)

// OpenGorm connects to the database, migrates the schema and returns a store.
// SQLite connections are limited to one so writers queue on the pool
// instead of failing with a busy database.
func OpenGorm(ctx context.Context, driver, dsn string, opts ...Option) (*GormStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Discard()
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(dsn))
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", driver, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(&itemRow{}, &userRatingRow{}, &eventRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &GormStore{db: db, driver: driver, initial: o.initialRating, log: o.log.Named("gormstore")}
	s.log.Info(ctx, "store opened", logger.String("driver", driver))
	return s, nil
}

// sqliteDSN adds a busy timeout and immediate transactions unless the
// caller already chose them.
func sqliteDSN(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if !strings.Contains(dsn, "_txlock") {
		params = append(params, "_txlock=immediate")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func (s *GormStore) conn(ctx context.Context) (*gorm.DB, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.db.WithContext(ctx), nil
}

// ListItems implements Reader.
func (s *GormStore) ListItems(ctx context.Context) ([]model.Item, error) {
	defer observeQuery("list_items", time.Now())

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []itemRow
	if err := db.Order("rating DESC, name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return itemsToModel(rows), nil
}

// TopItems implements Reader.
func (s *GormStore) TopItems(ctx context.Context, n int) ([]model.Item, error) {
	defer observeQuery("top_items", time.Now())

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []itemRow
	if err := db.Order("rating DESC, name ASC").Limit(n).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("top items: %w", err)
	}
	return itemsToModel(rows), nil
}

// ListUserRatings implements Reader.
func (s *GormStore) ListUserRatings(ctx context.Context, username string) ([]model.UserItemRating, error) {
	defer observeQuery("list_user_ratings", time.Now())

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []userRatingRow
	if err := db.Where("username = ?", username).Order("rating DESC, item ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list user ratings: %w", err)
	}
	out := make([]model.UserItemRating, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// EventCount implements Reader.
func (s *GormStore) EventCount(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&eventRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// EventCountsByUser implements Reader.
func (s *GormStore) EventCountsByUser(ctx context.Context) (map[string]int64, error) {
	defer observeQuery("event_counts_by_user", time.Now())

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Username string
		Total    int64
	}
	if err := db.Model(&eventRow{}).Select("username, COUNT(*) AS total").Group("username").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count events by user: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Username] = r.Total
	}
	return out, nil
}

// Events implements Reader.
func (s *GormStore) Events(ctx context.Context) ([]model.RankingEvent, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []eventRow
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]model.RankingEvent, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// EnsureItems implements Store.
func (s *GormStore) EnsureItems(ctx context.Context, names []string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(names))
	rows := make([]itemRow, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		rows = append(rows, itemRow{Name: name, Rating: s.initial})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, ensureBatchSize).Error; err != nil {
		return fmt.Errorf("ensure items: %w", err)
	}
	return nil
}

// Update implements Store. fn runs inside one database transaction; on
// postgres rows are read with SELECT ... FOR UPDATE.
func (s *GormStore) Update(ctx context.Context, fn func(Tx) error) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx, s: s})
	})
	if err != nil {
		metrics.RecordStoreTransactionFailure()
		s.log.Debug(ctx, "update rolled back", logger.Error(err))
		return err
	}
	return nil
}

// Count implements Store.
func (s *GormStore) Count(ctx context.Context) int {
	db, err := s.conn(ctx)
	if err != nil {
		return 0
	}
	var n int64
	if err := db.Model(&itemRow{}).Count(&n).Error; err != nil {
		s.log.Error(ctx, "count items failed", logger.Error(err))
		return 0
	}
	return int(n)
}

// Close implements Store.
func (s *GormStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return sqlDB.Close()
}

func itemsToModel(rows []itemRow) []model.Item {
	out := make([]model.Item, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out
}

type gormTx struct {
	db *gorm.DB
	s  *GormStore
}

// locked adds a row lock where the dialect supports one. SQLite already
// holds the database write lock for the whole immediate transaction.
func (t *gormTx) locked() *gorm.DB {
	if t.s.driver == DriverPostgres {
		return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return t.db
}

func (t *gormTx) GetOrCreateItem(ctx context.Context, name string) (model.Item, error) {
	db := t.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&itemRow{Name: name, Rating: t.s.initial}).Error; err != nil {
		return model.Item{}, fmt.Errorf("create item %q: %w", name, err)
	}
	var row itemRow
	if err := t.locked().WithContext(ctx).Where("name = ?", name).Take(&row).Error; err != nil {
		return model.Item{}, fmt.Errorf("get item %q: %w", name, translate(err))
	}
	return row.toModel(), nil
}

func (t *gormTx) GetOrCreateUserRating(ctx context.Context, username, name string) (model.UserItemRating, error) {
	db := t.db.WithContext(ctx)
	create := &userRatingRow{Username: username, Item: name, Rating: t.s.initial}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(create).Error; err != nil {
		return model.UserItemRating{}, fmt.Errorf("create user rating %q/%q: %w", username, name, err)
	}
	var row userRatingRow
	if err := t.locked().WithContext(ctx).Where("username = ? AND item = ?", username, name).Take(&row).Error; err != nil {
		return model.UserItemRating{}, fmt.Errorf("get user rating %q/%q: %w", username, name, translate(err))
	}
	return row.toModel(), nil
}

func (t *gormTx) SetItemRating(ctx context.Context, name string, rating float64, count int64) error {
	res := t.db.WithContext(ctx).Model(&itemRow{}).Where("name = ?", name).
		Updates(map[string]any{"rating": rating, "count": count})
	if res.Error != nil {
		return fmt.Errorf("set item %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set item %q: %w", name, ErrNotFound)
	}
	return nil
}

func (t *gormTx) SetUserRating(ctx context.Context, username, name string, rating float64, count int64) error {
	res := t.db.WithContext(ctx).Model(&userRatingRow{}).Where("username = ? AND item = ?", username, name).
		Updates(map[string]any{"rating": rating, "count": count})
	if res.Error != nil {
		return fmt.Errorf("set user rating %q/%q: %w", username, name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set user rating %q/%q: %w", username, name, ErrNotFound)
	}
	return nil
}

func (t *gormTx) AppendEvent(ctx context.Context, ev model.RankingEvent) (model.RankingEvent, error) {
	if ev.RatedAt.IsZero() {
		ev.RatedAt = time.Now().UTC()
	}
	items := ev.Items
	if items == nil {
		items = []string{}
	}
	row := eventRow{Username: ev.Username, Items: datatypes.JSONSlice[string](items), RatedAt: ev.RatedAt}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.RankingEvent{}, fmt.Errorf("append event: %w", err)
	}
	return row.toModel(), nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
