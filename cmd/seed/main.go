package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ArowuTest/jraffle-backend/internal/config"
	"github.com/ArowuTest/jraffle-backend/internal/models"
	mongorepo "github.com/ArowuTest/jraffle-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/jraffle-backend/internal/services"
	"github.com/ArowuTest/jraffle-backend/pkg/mongodb"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Raffles []seedRaffle `yaml:"raffles"`
}

type seedRaffle struct {
	Title          string        `yaml:"title"`
	Description    string        `yaml:"description"`
	Image          string        `yaml:"image"`
	PricePerTicket int64         `yaml:"pricePerTicket"`
	TotalTickets   int           `yaml:"totalTickets"`
	DrawDate       string        `yaml:"drawDate"`
	Status         string        `yaml:"status"`
	PremiumNumbers []seedPremium `yaml:"premiumNumbers"`
	Participants   []seedUser    `yaml:"participants"`
}

type seedPremium struct {
	Number  int  `yaml:"number"`
	Blocked bool `yaml:"blocked"`
}

type seedUser struct {
	FirstName    string `yaml:"firstName"`
	LastName     string `yaml:"lastName"`
	Email        string `yaml:"email"`
	PhoneNumber  string `yaml:"phoneNumber"`
	Payment      string `yaml:"payment"`
	Tickets      []int  `yaml:"tickets"`
	PaymentProof string `yaml:"paymentProof"`
}

func (r seedRaffle) input() models.RaffleInput {
	premium := make([]models.PremiumNumber, len(r.PremiumNumbers))
	for i, p := range r.PremiumNumbers {
		premium[i] = models.PremiumNumber{Number: p.Number, IsBlocked: p.Blocked}
	}
	return models.RaffleInput{
		Title:          r.Title,
		Description:    r.Description,
		Image:          r.Image,
		PricePerTicket: r.PricePerTicket,
		TotalTickets:   r.TotalTickets,
		DrawDate:       r.DrawDate,
		Status:         models.RaffleStatus(r.Status),
		PremiumNumbers: premium,
	}
}

func (u seedUser) user() models.User {
	return models.User{
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PhoneNumber:  u.PhoneNumber,
		Payment:      u.Payment,
		Tickets:      u.Tickets,
		PaymentProof: u.PaymentProof,
	}
}

// parseSeed decodes a seed document, rejecting unknown keys
func parseSeed(r io.Reader) (*seedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var seed seedFile
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(seed.Raffles) == 0 {
		return nil, fmt.Errorf("seed file has no raffles")
	}
	return &seed, nil
}

// applySeed creates every raffle and then adds its participants. A raffle that
// fails validation is skipped; a failing participant is skipped with a warning.
func applySeed(ctx context.Context, store *services.RaffleStore, seed *seedFile) (raffles, participants int) {
	for i, r := range seed.Raffles {
		created, err := store.CreateRaffle(ctx, r.input())
		if err != nil {
			log.Printf("Warning: Raffle %d (%q) skipped: %v", i+1, r.Title, err)
			continue
		}
		raffles++

		for j, u := range r.Participants {
			if _, err := store.AddUserToRaffle(ctx, created.ID, u.user()); err != nil {
				log.Printf("Warning: Participant %d of raffle %q skipped: %v", j+1, r.Title, err)
				continue
			}
			participants++
		}
	}
	return raffles, participants
}

func main() {
	file := flag.StringP("file", "f", "seed.yaml", "YAML file describing the raffles to create")
	configFile := flag.String("config", "", "path to a config file")
	envFile := flag.String("env-file", "", "path to a .env file")
	dryRun := flag.Bool("dry-run", false, "parse and validate the file without writing")
	flag.Parse()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open seed file: %v", err)
	}
	seed, err := parseSeed(f)
	f.Close()
	if err != nil {
		log.Fatal(err)
	}
	if *dryRun {
		log.Printf("Seed file is valid: %d raffles", len(seed.Raffles))
		return
	}

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	client, err := mongodb.NewClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDB.Database)
	store := services.NewRaffleStore(mongorepo.NewRaffleRepository(db), mongorepo.NewPurchaseRepository(db), services.RaffleStoreOptions{
		Timeout:         cfg.MongoDB.Timeout,
		WriteRetries:    cfg.Purchases.WriteRetries,
		MaxTotalTickets: cfg.Raffles.MaxTotalTickets,
	})

	raffles, participants := applySeed(ctx, store, seed)
	log.Printf("Seed imported: %d raffles, %d participants", raffles, participants)
}
