package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"courtmaster/internal/config"
	"courtmaster/internal/database"
	"courtmaster/internal/domain"
	"courtmaster/internal/repo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and seed the time slots",
		Long: `Apply the embedded schema. Safe to run repeatedly.

Examples:
  courtmaster migrate
  courtmaster migrate --seed   # also insert demo courts and services`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Println("schema applied")

			if seed {
				if err := seedDemo(ctx, db); err != nil {
					return err
				}
				fmt.Println("demo data seeded")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert demo courts and services when the tables are empty")
	return cmd
}

func seedDemo(ctx context.Context, db *sql.DB) error {
	courtRepo := repo.NewCourtRepo(db)
	catalogRepo := repo.NewCatalogRepo(db)

	courts, err := courtRepo.List(ctx, false)
	if err != nil {
		return err
	}
	if len(courts) == 0 {
		now := time.Now()
		for i, price := range []int64{80000, 80000, 100000, 120000} {
			err := courtRepo.Create(ctx, &domain.Court{
				ID:           uuid.New(),
				Name:         fmt.Sprintf("Sân %d", i+1),
				Description:  "Sân cầu lông tiêu chuẩn",
				PricePerHour: decimal.NewFromInt(price),
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			if err != nil {
				return err
			}
		}
	}

	services, err := catalogRepo.ListServices(ctx, "", false)
	if err != nil {
		return err
	}
	if len(services) > 0 {
		return nil
	}
	demo := []domain.Service{
		{Name: "Nước suối", Category: domain.CategoryDrink, Price: decimal.NewFromInt(10000), Stock: 100},
		{Name: "Nước tăng lực", Category: domain.CategoryDrink, Price: decimal.NewFromInt(20000), Stock: 50},
		{Name: "Thuê vợt", Category: domain.CategoryEquipment, Price: decimal.NewFromInt(30000), Stock: 20},
		{Name: "Ống cầu", Category: domain.CategoryEquipment, Price: decimal.NewFromInt(250000), Stock: 15},
		{Name: "Khăn lạnh", Category: domain.CategoryOther, Price: decimal.NewFromInt(5000), Stock: 200},
	}
	for _, s := range demo {
		s.ID = uuid.New()
		s.Available = true
		if err := catalogRepo.CreateService(ctx, &s); err != nil {
			return fmt.Errorf("seed service %s: %w", s.Name, err)
		}
	}
	return nil
}
