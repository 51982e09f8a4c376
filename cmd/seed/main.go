// Package main provides data seeding for the Premium Freight service.
//
// Seeding is idempotent: plants, users and approver grants are upserted,
// so the command can run on every deploy. Input comes from a YAML file;
// without one a minimal development data set is loaded.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"premium-freight.io/freight/internal/config"
	"premium-freight.io/freight/internal/domain"
	"premium-freight.io/freight/internal/infrastructure"
	"premium-freight.io/freight/internal/pkg/logger"
	"premium-freight.io/freight/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

// seedFile is the on-disk seed format.
type seedFile struct {
	Plants []seedPlant `yaml:"plants"`
	Users  []seedUser  `yaml:"users"`
	// Approvers is the approval matrix: who may sign which level at
	// which plant. An empty plant means the grant is regional.
	Approvers []seedApprover `yaml:"approvers"`
}

type seedPlant struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type seedUser struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Plant    string `yaml:"plant"`
}

type seedApprover struct {
	UserID string `yaml:"user_id"`
	Level  int    `yaml:"level"`
	Plant  string `yaml:"plant"`
}

func run() error {
	var file string
	flag.StringVar(&file, "file", "", "seed YAML file (default: built-in development data)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	seed, err := loadSeed(file)
	if err != nil {
		return err
	}
	if err := validateSeed(seed); err != nil {
		return fmt.Errorf("validate seed: %w", err)
	}

	logger.Info("Starting data seeding...")

	users := repository.NewUserRepository(db.Pool)
	approvers := repository.NewApproverRepository(db.Pool)

	for _, p := range seed.Plants {
		if err := users.UpsertPlant(ctx, p.Code, p.Name); err != nil {
			return err
		}
	}
	logger.Info("Plants seeded", zap.Int("count", len(seed.Plants)))

	for _, u := range seed.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.ID, err)
		}
		err = users.Upsert(ctx, domain.User{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
			Plant: u.Plant,
		}, string(hash), u.Role)
		if err != nil {
			return err
		}
	}
	logger.Info("Users seeded", zap.Int("count", len(seed.Users)))

	for _, a := range seed.Approvers {
		grant := domain.Approver{UserID: a.UserID, ApprovalLevel: a.Level}
		if a.Plant != "" {
			plant := a.Plant
			grant.Plant = &plant
		}
		if err := approvers.Upsert(ctx, grant); err != nil {
			return err
		}
	}
	logger.Info("Approver matrix seeded", zap.Int("count", len(seed.Approvers)))

	logger.Info("Data seeding completed successfully")
	return nil
}

func loadSeed(file string) (*seedFile, error) {
	if file == "" {
		return defaultSeed(), nil
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// validateSeed rejects files that would leave the workflow stuck: every
// approver grant must point at a seeded user and carry a level in [1,5],
// and every plant needs at least one level-1 approver (plant-bound or
// regional).
func validateSeed(seed *seedFile) error {
	userIDs := make(map[string]bool, len(seed.Users))
	for _, u := range seed.Users {
		if u.ID == "" || u.Email == "" {
			return fmt.Errorf("user %q: id and email are required", u.ID)
		}
		if userIDs[u.ID] {
			return fmt.Errorf("duplicate user id %q", u.ID)
		}
		userIDs[u.ID] = true
	}

	regionalLevel1 := false
	level1Plants := make(map[string]bool)
	for _, a := range seed.Approvers {
		if !userIDs[a.UserID] {
			return fmt.Errorf("approver grant references unknown user %q", a.UserID)
		}
		if a.Level < 1 || a.Level > domain.MaxApprovalLevel {
			return fmt.Errorf("approver %s: level %d outside [1,%d]", a.UserID, a.Level, domain.MaxApprovalLevel)
		}
		if a.Level == 1 {
			if a.Plant == "" {
				regionalLevel1 = true
			} else {
				level1Plants[a.Plant] = true
			}
		}
	}

	if !regionalLevel1 {
		for _, p := range seed.Plants {
			if !level1Plants[p.Code] {
				return fmt.Errorf("plant %s has no level-1 approver; new orders would be stuck", p.Code)
			}
		}
	}
	return nil
}

// defaultSeed is the development data set: two plants and a small
// escalation chain.
func defaultSeed() *seedFile {
	return &seedFile{
		Plants: []seedPlant{
			{Code: "3310", Name: "Queretaro"},
			{Code: "3330", Name: "Tupelo"},
		},
		Users: []seedUser{
			{ID: "u-creator", Name: "Traffic Specialist", Email: "traffic@grammer.com", Password: "changeme", Role: "user", Plant: "3310"},
			{ID: "u-supervisor", Name: "Logistics Supervisor", Email: "supervisor@grammer.com", Password: "changeme", Role: "approver", Plant: "3310"},
			{ID: "u-manager", Name: "Plant Manager", Email: "manager@grammer.com", Password: "changeme", Role: "approver", Plant: "3310"},
			{ID: "u-regional", Name: "Regional Controller", Email: "controller@grammer.com", Password: "changeme", Role: "approver", Plant: ""},
		},
		Approvers: []seedApprover{
			{UserID: "u-supervisor", Level: 1, Plant: "3310"},
			{UserID: "u-manager", Level: 2, Plant: "3310"},
			{UserID: "u-regional", Level: 1},
			{UserID: "u-regional", Level: 2},
			{UserID: "u-regional", Level: 3},
		},
	}
}
