package services

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"waos/internal/events"
	"waos/internal/models"
)

// ListQuery carries pagination, equality filters and sorting for List. Filter and sort keys are
// JSON field names; unknown keys are ignored.
type ListQuery struct {
	Page     int
	Limit    int
	Filters  map[string]interface{}
	Sort     []string
	Order    string
	Includes []string
}

// BaseService interface defines common CRUD operations
type BaseService[T any] interface {
	Create(ctx context.Context, entity *T, includes ...string) error
	Get(ctx context.Context, id string, includes ...string) (*T, error)
	List(ctx context.Context, q ListQuery) ([]T, int64, error)
	Update(ctx context.Context, id string, changes map[string]interface{}, includes ...string) (*T, error)
	Delete(ctx context.Context, id string) error
}

// BaseServiceImpl implements BaseService
type BaseServiceImpl[T any] struct {
	db        *gorm.DB
	modelType T
	columns   map[string]string // json name -> column
}

func GormTableName(db *gorm.DB, v any) string {
	structName := reflect.TypeOf(v).Name()
	return db.NamingStrategy.TableName(structName)
}

// NewBaseService creates a new base service
func NewBaseService[T any](db *gorm.DB, modelType T) BaseService[T] {
	return &BaseServiceImpl[T]{
		db:        db,
		modelType: modelType,
		columns:   jsonColumns(db.NamingStrategy, reflect.TypeOf(modelType)),
	}
}

// jsonColumns maps the JSON name of every persisted scalar field to its column, walking
// embedded structs. Relations and virtual fields are skipped.
func jsonColumns(naming schema.Namer, t reflect.Type) map[string]string {
	out := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			for k, v := range jsonColumns(naming, f.Type) {
				out[k] = v
			}
			continue
		}
		if !f.IsExported() || f.Tag.Get("gorm") == "-" {
			continue
		}
		kind := f.Type.Kind()
		if kind == reflect.Ptr || (kind == reflect.Slice && f.Type.Elem().Kind() == reflect.Struct) {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		out[name] = naming.ColumnName("", f.Name)
	}
	return out
}

// Column resolves a JSON field name to its column.
func (s *BaseServiceImpl[T]) Column(field string) (string, bool) {
	col, ok := s.columns[field]
	return col, ok
}

// applyIncludes adds preload statements to the query for each include
func (s *BaseServiceImpl[T]) applyIncludes(query *gorm.DB, includes ...string) *gorm.DB {
	for _, include := range includes {
		query = query.Preload(include)
	}
	return query
}

func (s *BaseServiceImpl[T]) event(action string) string {
	return fmt.Sprintf("%s.%s", GormTableName(s.db, s.modelType), action)
}

func (s *BaseServiceImpl[T]) Create(ctx context.Context, entity *T, includes ...string) error {
	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return err
	}

	// Reload the entity with includes if any are specified
	if len(includes) > 0 {
		id := reflect.ValueOf(entity).Elem().FieldByName("ID").String()
		if err := s.applyIncludes(s.db.WithContext(ctx), includes...).First(entity, "id = ?", id).Error; err != nil {
			return err
		}
	}

	events.Emit(s.event("created"), entity)
	return nil
}

func (s *BaseServiceImpl[T]) Get(ctx context.Context, id string, includes ...string) (*T, error) {
	var entity T
	query := s.applyIncludes(s.db.WithContext(ctx), includes...)

	if err := query.Where("is_deleted = ?", false).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (s *BaseServiceImpl[T]) List(ctx context.Context, q ListQuery) ([]T, int64, error) {
	var entities []T
	var total int64

	filtered := func(db *gorm.DB) *gorm.DB {
		db = db.Where("is_deleted = ?", false)
		for key, value := range q.Filters {
			if col, ok := s.columns[key]; ok {
				db = db.Where(fmt.Sprintf("%s = ?", col), value)
			}
		}
		return db
	}

	if err := s.db.WithContext(ctx).Model(new(T)).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Scopes(filtered)

	order := "asc"
	if strings.EqualFold(q.Order, "desc") {
		order = "desc"
	}
	sorted := false
	for _, field := range q.Sort {
		if col, ok := s.columns[field]; ok {
			query = query.Order(fmt.Sprintf("%s %s", col, order))
			sorted = true
		}
	}
	if !sorted {
		query = query.Order("created_at desc")
	}

	if q.Page > 0 && q.Limit > 0 {
		query = query.Offset((q.Page - 1) * q.Limit).Limit(q.Limit)
	}

	if err := s.applyIncludes(query, q.Includes...).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return entities, total, nil
}

// Update applies changes (keyed by JSON field name) and returns the reloaded entity.
// Identity and bookkeeping columns cannot be changed.
func (s *BaseServiceImpl[T]) Update(ctx context.Context, id string, changes map[string]interface{}, includes ...string) (*T, error) {
	updates := make(map[string]interface{}, len(changes))
	for key, value := range changes {
		switch key {
		case "id", "createdAt", "updatedAt", "isDeleted", "userId":
			continue
		}
		if col, ok := s.columns[key]; ok {
			updates[col] = columnValue(value)
		}
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(new(T)).
			Where("id = ? AND is_deleted = ?", id, false).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}

	entity, err := s.Get(ctx, id, includes...)
	if err != nil {
		return nil, err
	}

	events.Emit(s.event("updated"), entity)
	return entity, nil
}

// columnValue encodes decoded JSON containers for jsonb columns.
func columnValue(value interface{}) interface{} {
	switch value.(type) {
	case map[string]interface{}, []interface{}:
		if b, err := json.Marshal(value); err == nil {
			return datatypes.JSON(b)
		}
	}
	return value
}

// Delete soft-deletes the row.
func (s *BaseServiceImpl[T]) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(new(T)).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(models.Tombstone(time.Now()))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	events.Emit(s.event("deleted"), id)
	return nil
}
