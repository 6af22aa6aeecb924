package services

import (
	"fmt"
	"testing"
	"time"

	"puzzle-bar/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, puzzles int64) models.User {
	t.Helper()
	id := uuid.NewString()
	u := models.User{
		ID:       id,
		Username: "user-" + id[:8],
		Email:    id[:8] + "@bar.test",
		Role:     models.RoleUser,
		Puzzles:  puzzles,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedChallenge(t *testing.T, db *gorm.DB, maxScore, maxPayout int64, date time.Time) models.Challenge {
	t.Helper()
	game := models.Game{ID: uuid.NewString(), Name: "Escape Room"}
	if err := db.Create(&game).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}
	c := models.Challenge{
		ID:        uuid.NewString(),
		Name:      "Friday Puzzle Night",
		Date:      date,
		Time:      "19:30",
		MaxScore:  maxScore,
		MaxPayout: maxPayout,
		IsActive:  true,
		GameID:    game.ID,
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed challenge: %v", err)
	}
	return c
}

func balanceOf(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var u models.User
	if err := db.First(&u, "id = ?", userID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u.Puzzles
}
