package main

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

func TestDefaultSeed_IsValid(t *testing.T) {
	t.Parallel()

	seed := defaultSeed()
	if err := validateSeed(seed); err != nil {
		t.Fatalf("validateSeed() error = %v", err)
	}
	if len(seed.Plants) == 0 {
		t.Fatal("default seed has no plants")
	}
	if len(seed.Users) == 0 {
		t.Fatal("default seed has no users")
	}
}

func TestValidateSeed_UnknownApprover(t *testing.T) {
	t.Parallel()

	seed := &seedFile{
		Users:     []seedUser{{ID: "u1", Email: "u1@example.com"}},
		Approvers: []seedApprover{{UserID: "ghost", Level: 1}},
	}
	if err := validateSeed(seed); err == nil {
		t.Fatal("validateSeed() accepted a grant for an unknown user")
	}
}

func TestValidateSeed_LevelBounds(t *testing.T) {
	t.Parallel()

	seed := &seedFile{
		Users:     []seedUser{{ID: "u1", Email: "u1@example.com"}},
		Approvers: []seedApprover{{UserID: "u1", Level: 6}},
	}
	if err := validateSeed(seed); err == nil {
		t.Fatal("validateSeed() accepted level 6")
	}
}

func TestValidateSeed_PlantWithoutLevelOne(t *testing.T) {
	t.Parallel()

	seed := &seedFile{
		Plants:    []seedPlant{{Code: "3310"}, {Code: "3330"}},
		Users:     []seedUser{{ID: "u1", Email: "u1@example.com"}},
		Approvers: []seedApprover{{UserID: "u1", Level: 1, Plant: "3310"}},
	}
	if err := validateSeed(seed); err == nil {
		t.Fatal("validateSeed() accepted a plant with no level-1 approver")
	}

	// A regional level-1 grant covers every plant.
	seed.Approvers = append(seed.Approvers, seedApprover{UserID: "u1", Level: 1})
	if err := validateSeed(seed); err != nil {
		t.Fatalf("validateSeed() error = %v, want nil with regional grant", err)
	}
}

func TestSeedFile_YAMLRoundTrip(t *testing.T) {
	t.Parallel()

	raw := []byte(`
plants:
  - code: "3310"
    name: Queretaro
users:
  - id: u-supervisor
    name: Logistics Supervisor
    email: supervisor@grammer.com
    password: secret
    role: approver
    plant: "3310"
approvers:
  - user_id: u-supervisor
    level: 1
    plant: "3310"
`)
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if err := validateSeed(&seed); err != nil {
		t.Fatalf("validateSeed() error = %v", err)
	}
	if seed.Approvers[0].Plant != "3310" {
		t.Errorf("approver plant = %q, want 3310", seed.Approvers[0].Plant)
	}
}

func TestPasswordHashing_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte("changeme")); err != nil {
		t.Errorf("CompareHashAndPassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte("wrong")); err == nil {
		t.Error("CompareHashAndPassword() accepted a wrong password")
	}
}
