package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"mentalspace/internal/config"
	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/repository"
	pg "mentalspace/internal/infra/db/postgres"
	"mentalspace/internal/infra/security"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	password := flag.String("password", "changeme123", "password given to every seeded account")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	hash, err := security.BcryptHasher{}.Hash(*password)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}

	users := pg.NewUserRepo(pool)
	counselors := pg.NewCounselorRepo(pool)

	// Demo clients
	for _, s := range []struct{ Email, First, Last string }{
		{"alex@example.com", "Alex", "Morgan"},
		{"sam@example.com", "Sam", "Rivera"},
	} {
		if _, err := users.FindByEmail(ctx, repository.NoTX, s.Email); err == nil {
			fmt.Printf("  = user %s already present\n", s.Email)
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			log.Fatalf("find user %s: %v", s.Email, err)
		}
		u, err := model.NewUser(s.Email, hash, s.First, s.Last)
		if err != nil {
			log.Fatalf("new user %s: %v", s.Email, err)
		}
		if err := users.Save(ctx, repository.NoTX, u); err != nil {
			log.Fatalf("save user %s: %v", s.Email, err)
		}
		fmt.Printf("  + user %s (%s)\n", s.Email, u.ID)
	}

	// Demo counselors, all starting offline
	for _, s := range []struct {
		Email, First, Last, License, Bio string
		Specs                            []string
	}{
		{"dr.chen@example.com", "Mei", "Chen", "LPC-10021", "Anxiety and stress management.", []string{"anxiety", "stress"}},
		{"dr.okafor@example.com", "Tunde", "Okafor", "LMFT-55310", "Relationships and family therapy.", []string{"relationships", "family"}},
		{"dr.novak@example.com", "Ana", "Novak", "LCSW-77812", "Grief, trauma and crisis support.", []string{"grief", "trauma", "crisis"}},
	} {
		if _, err := counselors.FindByEmail(ctx, repository.NoTX, s.Email); err == nil {
			fmt.Printf("  = counselor %s already present\n", s.Email)
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			log.Fatalf("find counselor %s: %v", s.Email, err)
		}
		c := model.NewCounselor(s.Email, hash, s.First, s.Last, s.License)
		c.Bio = s.Bio
		c.Specializations = s.Specs
		if err := counselors.Save(ctx, repository.NoTX, c); err != nil {
			log.Fatalf("save counselor %s: %v", s.Email, err)
		}
		fmt.Printf("  + counselor %s (%s)\n", s.Email, c.ID)
	}

	fmt.Println("Seed complete.")
}
