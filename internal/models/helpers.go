package models

import (
	"strings"

	"gorm.io/gorm"
)

func findLive[T any](db *gorm.DB, dest *T, query string, args ...interface{}) (*T, error) {
	if err := db.Scopes(Live).Where(query, args...).First(dest).Error; err != nil {
		return nil, err
	}
	return dest, nil
}

func GetFileByID(id string, db *gorm.DB) (*File, error) {
	return findLive(db, &File{}, "id = ?", id)
}

func GetTaskByID(id string, db *gorm.DB) (*Task, error) {
	return findLive(db, &Task{}, "id = ?", id)
}

func GetUserByID(id string, db *gorm.DB) (*User, error) {
	return findLive(db, &User{}, "id = ?", id)
}

// GetUserByLogin matches either the lower-cased e-mail or the exact username.
func GetUserByLogin(login string, db *gorm.DB) (*User, error) {
	login = strings.TrimSpace(login)
	return findLive(db, &User{}, "email = ? OR username = ?", strings.ToLower(login), login)
}
