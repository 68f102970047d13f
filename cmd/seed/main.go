package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/medsched/confirmlink/pkg/config"
	"github.com/medsched/confirmlink/pkg/database"
)

type sample struct {
	givenName  string
	familyName string
	phone      string
	date       time.Time
	startTime  string
}

// Seeds a tenant's store with encrypted test confirmations and prints the
// confirmation links. Development helper only.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	tenantID := cfg.Tenants.DefaultTenant
	if len(os.Args) > 1 {
		tenantID = os.Args[1]
	}

	var tc *config.TenantConfig
	for i := range cfg.Tenants.Tenants {
		if cfg.Tenants.Tenants[i].ID == tenantID {
			tc = &cfg.Tenants.Tenants[i]
		}
	}
	if tc == nil {
		log.Fatalf("tenant %s not configured", tenantID)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, tc.DatabaseURL, cfg.Database)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	now := time.Now()
	samples := []sample{
		{"teodor", "simionescu", "+40721000001", now.AddDate(0, 0, 7), "10:00"},
		{"teodor", "simionescu", "+40721000001", now.AddDate(0, 0, 14), "14:30"},
		{"maria", "popescu", "+40721000002", now.AddDate(0, 0, 8), "11:00"},
	}

	const q = `INSERT INTO patient_confirmations
(token, given_name, family_name, phone, appointment_date, start_time, status)
VALUES ($1, pgp_sym_encrypt($2, $7), pgp_sym_encrypt($3, $7), pgp_sym_encrypt($4, $7), $5, $6, 'unconfirmed')`

	for _, s := range samples {
		token := uuid.NewString()
		_, err := pool.Exec(ctx, q,
			token, s.givenName, s.familyName, s.phone,
			s.date.Format("2006-01-02"), s.startTime, tc.PGPKey,
		)
		if err != nil {
			log.Fatalf("insert: %v", err)
		}
		fmt.Printf("/c/%s/%s  (%s %s, %s %s)\n",
			tenantID, token, s.givenName, s.familyName,
			s.date.Format("02/01/2006"), s.startTime)
	}
}
