package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"pantry/internal/api/services"
	"pantry/internal/app"
	"pantry/internal/config"
	"pantry/internal/domain"
)

var defaultItems = []string{"milk=2", "eggs=12", "bread=1", "apples=6"}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded, relying on environment")
	}

	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: seed [name=quantity ...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		args = defaultItems
	}

	items, err := parseItems(args)
	if err != nil {
		log.Fatalf("Invalid seed items: %v", err)
	}

	ctx := context.Background()
	cfg := config.Load()

	store, closeStore, err := app.OpenInventoryStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s inventory store: %v", cfg.InventoryBackend, err)
	}
	defer closeStore()

	log.Printf("Seeding %d item(s) into %s inventory...", len(items), cfg.InventoryBackend)

	inventory := services.NewInventoryService(store, cfg.Ingest.StoreTimeout, nil)
	applied, err := inventory.Merge(ctx, items)
	for _, item := range applied {
		log.Printf("Seeded %s: %d", item.Name, item.Quantity)
	}
	if err != nil {
		log.Fatalf("Failed to seed inventory: %v", err)
	}

	log.Println("Seed process completed!")
}

// parseItems reads name=quantity pairs. Repeated names are summed.
func parseItems(args []string) (domain.IngestionResult, error) {
	items := make(domain.IngestionResult, len(args))
	for _, arg := range args {
		name, qty, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected name=quantity", arg)
		}
		n, err := strconv.Atoi(strings.TrimSpace(qty))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		items[strings.TrimSpace(name)] += n
	}
	if err := items.Validate(); err != nil {
		return nil, err
	}
	return items, nil
}
