package main

import (
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/NordCoder/Reelpass/migrations"
)

func main() {
	down := flag.Bool("down", false, "roll back the latest migration instead of applying all")
	flag.Parse()

	dbURL := os.Getenv("DB_DSN")
	if dbURL == "" {
		log.Fatal("DB_DSN is empty")
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}
	db, err := goose.OpenDBWithDriver("pgx", dbURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if *down {
		if err := goose.Down(db, "."); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Println("migrations: down OK")
		return
	}
	if err := goose.Up(db, "."); err != nil {
		log.Fatalf("migrate up: %v", err)
	}
	log.Println("migrations: up OK")
}
