package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/GoPolymarket/hookgate/internal/config"
	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/GoPolymarket/hookgate/internal/repository"
	"go.jetify.com/typeid/v2"
)

const apiKeyPrefix = "hg_"

// GenerateAPIKey returns a new opaque credential.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

// Seed creates the tenants, keys and endpoints listed in configuration.
// Existing records are left alone so restarts are harmless.
func Seed(ctx context.Context, tenants TenantStore, keys KeyStore, endpoints EndpointStore, seeds []config.TenantConfig) error {
	for _, tc := range seeds {
		if tc.ID == "" {
			return fmt.Errorf("seed tenant without id")
		}
		plan := model.PlanFree
		if tc.Plan != "" {
			p, err := model.ParsePlan(tc.Plan)
			if err != nil {
				return fmt.Errorf("seed tenant %s: %w", tc.ID, err)
			}
			plan = p
		}

		_, err := tenants.Get(ctx, tc.ID)
		switch {
		case errors.Is(err, repository.ErrTenantNotFound):
			t := &model.Tenant{ID: tc.ID, Name: tc.Name, Plan: plan, SubscriptionState: model.SubscriptionActive}
			if err := tenants.Create(ctx, t); err != nil {
				return fmt.Errorf("seed tenant %s: %w", tc.ID, err)
			}
		case err != nil:
			return fmt.Errorf("seed tenant %s: %w", tc.ID, err)
		}

		for _, key := range tc.APIKeys {
			_, err := keys.GetKey(ctx, key)
			if err == nil {
				continue
			}
			if !errors.Is(err, repository.ErrKeyNotFound) {
				return fmt.Errorf("seed key for %s: %w", tc.ID, err)
			}
			if err := keys.CreateKey(ctx, &model.APIKey{Key: key, TenantID: tc.ID, Plan: plan, Active: true}); err != nil {
				return fmt.Errorf("seed key for %s: %w", tc.ID, err)
			}
		}

		for _, ec := range tc.Endpoints {
			tid, err := typeid.Generate(endpointIDPrefix)
			if err != nil {
				return err
			}
			ep := &model.Endpoint{
				ID:        tid.String(),
				TenantID:  tc.ID,
				Name:      ec.Name,
				URL:       ec.URL,
				Active:    true,
				RateLimit: ec.RateLimit,
			}
			if err := endpoints.Create(ctx, ep); err != nil && !errors.Is(err, repository.ErrEndpointConflict) {
				return fmt.Errorf("seed endpoint %s for %s: %w", ec.URL, tc.ID, err)
			}
		}
		logger.Info("tenant seeded", "tenant_id", tc.ID, "plan", plan.String(), "keys", len(tc.APIKeys), "endpoints", len(tc.Endpoints))
	}
	return nil
}
