package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/blanjamart/account-service/config"
	"github.com/blanjamart/account-service/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	email := "admin@example.com"
	username := "admin"
	password := "password123"

	hasher := helpers.NewBcryptHasher(0)
	hash, err := hasher.Hash(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (username, email, password_hash, level, photo_url)
		VALUES ($1, $2, $3, 'admin', $4)
		ON CONFLICT (email) DO UPDATE SET level = 'admin', updated_at = now()
		RETURNING id
	`, username, email, hash, cfg.DefaultPhotoURL).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed admin user: %v", err)
	}
	fmt.Printf("seeded admin: id=%s email=%s username=%s password=%s\n", id, email, username, password)
}
