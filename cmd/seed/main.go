// Command seed fills the configured store with demo participants and donations.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"sun/internal/bootstrap"
	"sun/internal/config"
	"sun/internal/observability"
	"sun/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 12, "Number of users to create")
	numDonations := flag.Int("donations", 30, "Number of donations to create")
	force := flag.Bool("force", false, "Seed even when the store already has users")
	randSeed := flag.Int64("rand-seed", 0, "Seed for the fake data generator (0 = time based)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.Configure(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer func() { _ = store.Close(ctx) }()

	res, err := seed.Demo(ctx, store, seed.Options{
		Users:     *numUsers,
		Donations: *numDonations,
		Force:     *force,
		RandSeed:  *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	if res.Skipped {
		log.Println("Store already has users; pass -force to seed anyway")
		return
	}

	log.Printf("Seeded %d users and %d donations into the %s store", len(res.Users), len(res.Donations), store.Name())
	log.Printf("All demo accounts use the password %q", seed.DefaultPassword)
}
