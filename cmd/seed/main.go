// Command seed prepares a database for local development: it applies the
// schema and can load a demo tenant with a published expense-approval
// definition.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"approvalflow/backend/internal/config"
	"approvalflow/backend/internal/domain"
	"approvalflow/backend/internal/engine"
	"approvalflow/backend/internal/logging"
	"approvalflow/backend/internal/repository"
)

var demoDefinition = json.RawMessage(`{
	"form": {
		"fields": [
			{"id": "amount", "type": "number", "label": "Amount", "required": true},
			{"id": "reason", "type": "textarea", "label": "Reason", "required": true}
		]
	},
	"steps": [
		{"id": "start", "type": "start", "name": "Start"},
		{"id": "manager_review", "type": "approval", "name": "Manager Review"},
		{"id": "finance_review", "type": "approval", "name": "Finance Review"},
		{"id": "end_approved", "type": "end", "name": "Approved", "status": "approved"},
		{"id": "end_rejected", "type": "end", "name": "Rejected", "status": "rejected"}
	],
	"transitions": [
		{"from": "start", "to": "manager_review"},
		{"from": "manager_review", "to": "finance_review", "trigger": "approve"},
		{"from": "manager_review", "to": "end_rejected", "trigger": "reject"},
		{"from": "finance_review", "to": "end_approved", "trigger": "approve"},
		{"from": "finance_review", "to": "end_rejected", "trigger": "reject"}
	]
}`)

func main() {
	logger := logging.New("info", true)

	var tenantFlag string

	root := &cobra.Command{
		Use:   "seed",
		Short: "Prepare an approvalflow database for development",
	}

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				if _, err := pool.Exec(ctx, repository.Schema); err != nil {
					return err
				}
				logger.Info().Msg("schema applied")
				return nil
			})
		},
	}

	demo := &cobra.Command{
		Use:   "demo",
		Short: "Load a demo tenant with a published expense-approval definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(tenantFlag)
			if err != nil {
				return err
			}
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				defs := engine.NewDefinitionService(repository.NewPostgresDefinitionRepository(pool), domain.SystemClock{})
				def, err := defs.Create(ctx, engine.CreateDefinitionInput{
					TenantID:    tenantID,
					Name:        "Expense Approval",
					Description: "Two-stage expense approval: manager, then finance.",
					Definition:  demoDefinition,
					UserID:      uuid.Must(uuid.NewV7()),
				})
				if err != nil {
					return err
				}
				if _, err := defs.Publish(ctx, tenantID, def.ID, def.Version); err != nil {
					return err
				}
				logger.Info().
					Str("tenant_id", tenantID.String()).
					Str("definition_id", def.ID.String()).
					Msg("demo definition published")
				return nil
			})
		},
	}
	demo.Flags().StringVar(&tenantFlag, "tenant", uuid.Nil.String(), "tenant id to seed")

	root.AddCommand(schema, demo)
	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}
}

func withPool(ctx context.Context, fn func(context.Context, *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}
