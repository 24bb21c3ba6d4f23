package models

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	console "waos/internal/utils/logger"
)

var log = console.New("SEEDER")

// AdminRoles are granted to the bootstrap account.
var AdminRoles = []string{"user", "admin"}

// CreateAdminFromEnv creates the bootstrap admin from ADMIN_EMAIL, ADMIN_PASSWORD and
// ADMIN_USERNAME. It does nothing when the variables are unset or an admin already exists.
func CreateAdminFromEnv(db *gorm.DB) error {
	email, ok := os.LookupEnv("ADMIN_EMAIL")
	if !ok || email == "" {
		log.Debug("ADMIN_EMAIL not set, skipping admin bootstrap")
		return nil
	}

	password, ok := os.LookupEnv("ADMIN_PASSWORD")
	if !ok || password == "" {
		return errors.New("ADMIN_PASSWORD not set")
	}

	username, ok := os.LookupEnv("ADMIN_USERNAME")
	if !ok || username == "" {
		username = "admin"
	}

	email = strings.ToLower(strings.TrimSpace(email))

	var count int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up admin: %w", err)
	}
	log.Info("Admin count: %d", count)
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := User{
		FirstName:   "Admin",
		LastName:    "Admin",
		DisplayName: "Admin",
		Email:       email,
		Username:    username,
		Password:    string(hashedPassword),
		Roles:       AdminRoles,
		Provider:    ProviderLocal,
	}

	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Success("Admin %s created", email)
	return nil
}
