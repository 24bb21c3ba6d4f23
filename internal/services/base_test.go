package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"waos/internal/models"
)

type BaseServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	mock    sqlmock.Sqlmock
	sqlDB   *sql.DB
	service BaseService[models.Task]
}

func TestBaseServiceSuite(t *testing.T) {
	suite.Run(t, new(BaseServiceTestSuite))
}

func (s *BaseServiceTestSuite) SetupTest() {
	var err error
	s.sqlDB, s.mock, err = sqlmock.New()
	require.NoError(s.T(), err)

	dialector := postgres.New(postgres.Config{
		Conn:       s.sqlDB,
		DriverName: "postgres",
	})

	s.db, err = gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(s.T(), err)

	s.service = NewBaseService(s.db, models.Task{})
}

func (s *BaseServiceTestSuite) TearDownTest() {
	s.sqlDB.Close()
}

func taskRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "description", "user_id", "is_deleted", "created_at", "updated_at"})
}

func (s *BaseServiceTestSuite) TestColumns_MapJSONNamesToColumns() {
	impl := s.service.(*BaseServiceImpl[models.Task])

	for field, want := range map[string]string{
		"id":          "id",
		"title":       "title",
		"description": "description",
		"userId":      "user_id",
		"createdAt":   "created_at",
		"isDeleted":   "is_deleted",
	} {
		col, ok := impl.Column(field)
		s.True(ok, field)
		s.Equal(want, col)
	}

	_, ok := impl.Column("user")
	s.False(ok, "relations are not columns")
	_, ok = impl.Column("deletedAt")
	s.False(ok, "hidden fields are not columns")
}

func (s *BaseServiceTestSuite) TestGet_Success() {
	// Arrange
	now := time.Now()
	s.mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE is_deleted = \$1 AND id = \$2`).
		WithArgs(false, "t-1", 1).
		WillReturnRows(taskRows().AddRow("t-1", "write docs", "", "u-1", false, now, now))

	// Act
	task, err := s.service.Get(context.Background(), "t-1")

	// Assert
	s.NoError(err)
	s.Equal("write docs", task.Title)
	s.Equal("u-1", task.OwnerID())
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *BaseServiceTestSuite) TestGet_NotFound() {
	s.mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE is_deleted = \$1 AND id = \$2`).
		WillReturnRows(taskRows())

	task, err := s.service.Get(context.Background(), "missing")

	s.ErrorIs(err, gorm.ErrRecordNotFound)
	s.Nil(task)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *BaseServiceTestSuite) TestList_FiltersSortsAndPaginates() {
	// Arrange
	now := time.Now()
	s.mock.ExpectQuery(`SELECT count\(\*\) FROM "tasks" WHERE is_deleted = \$1 AND user_id = \$2`).
		WithArgs(false, "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	s.mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE is_deleted = \$1 AND user_id = \$2 ORDER BY title desc LIMIT \$3 OFFSET \$4`).
		WithArgs(false, "u-1", 2, 2).
		WillReturnRows(taskRows().AddRow("t-3", "c", "", "u-1", false, now, now))

	// Act
	tasks, total, err := s.service.List(context.Background(), ListQuery{
		Page:    2,
		Limit:   2,
		Filters: map[string]interface{}{"userId": "u-1", "title; DROP TABLE tasks": "x"},
		Sort:    []string{"title", "nope"},
		Order:   "DESC",
	})

	// Assert
	s.NoError(err)
	s.Equal(int64(3), total)
	s.Len(tasks, 1)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *BaseServiceTestSuite) TestUpdate_IgnoresProtectedAndUnknownFields() {
	// Arrange
	now := time.Now()
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "tasks" SET "title"=\$1,"updated_at"=\$2 WHERE id = \$3 AND is_deleted = \$4`).
		WithArgs("renamed", sqlmock.AnyArg(), "t-1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()
	s.mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE is_deleted = \$1 AND id = \$2`).
		WillReturnRows(taskRows().AddRow("t-1", "renamed", "", "u-1", false, now, now))

	// Act
	task, err := s.service.Update(context.Background(), "t-1", map[string]interface{}{
		"title":  "renamed",
		"userId": "someone-else",
		"bogus":  true,
	})

	// Assert
	s.NoError(err)
	s.Equal("renamed", task.Title)
	s.Equal("u-1", task.UserID)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *BaseServiceTestSuite) TestDelete_SoftDeletes() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "tasks" SET "deleted_at"=\$1,"is_deleted"=\$2,"updated_at"=\$3 WHERE id = \$4 AND is_deleted = \$5`).
		WithArgs(sqlmock.AnyArg(), true, sqlmock.AnyArg(), "t-1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	err := s.service.Delete(context.Background(), "t-1")

	s.NoError(err)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *BaseServiceTestSuite) TestDelete_NotFound() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "tasks" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	err := s.service.Delete(context.Background(), "missing")

	s.ErrorIs(err, gorm.ErrRecordNotFound)
	s.NoError(s.mock.ExpectationsWereMet())
}

func TestColumnValueEncodesContainers(t *testing.T) {
	obj, ok := columnValue(map[string]interface{}{"a": 1}).(datatypes.JSON)
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, string(obj))

	list, ok := columnValue([]interface{}{"x", 2}).(datatypes.JSON)
	require.True(t, ok)
	require.JSONEq(t, `["x",2]`, string(list))

	require.Equal(t, "plain", columnValue("plain"))
}
