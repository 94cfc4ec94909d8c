// Package accounts resolves which brokerage account a user's requests run against.
package accounts

import (
	"context"
	"fmt"
	"sync"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/connectors"
	"papertrader/src/model"
	"papertrader/src/security"
)

type accountRepository interface {
	GetByUser(ctx context.Context, userID string) (*model.BrokerAccount, error)
}

var (
	newClient = func(creds connectors.Credentials) connectors.Gateway {
		return connectors.NewClient(creds)
	}
	decrypt = security.DecryptString
)

// Provider hands out a gateway per user: the user's linked account when one
// exists, the shared paper account otherwise.
type Provider struct {
	repo   accountRepository
	shared connectors.Credentials

	mu      sync.Mutex
	clients map[string]connectors.Gateway
}

func NewProvider(repo accountRepository, shared connectors.Credentials) *Provider {
	return &Provider{
		repo:    repo,
		shared:  shared,
		clients: map[string]connectors.Gateway{},
	}
}

// Credentials returns the credentials requests of userID are executed with.
func (p *Provider) Credentials(ctx context.Context, userID string) (connectors.Credentials, error) {
	if p.repo == nil {
		return p.shared, nil
	}

	acc, err := p.repo.GetByUser(ctx, userID)
	if err != nil {
		return connectors.Credentials{}, err
	}
	if acc == nil {
		return p.shared, nil
	}

	key, err := decrypt(acc.APIKeyHash)
	if err != nil {
		return connectors.Credentials{}, fmt.Errorf("decrypt broker key of %s: %w", userID, err)
	}
	secret, err := decrypt(acc.APISecretHash)
	if err != nil {
		return connectors.Credentials{}, fmt.Errorf("decrypt broker secret of %s: %w", userID, err)
	}

	creds := connectors.Credentials{
		KeyID:     key,
		Secret:    secret,
		BaseURL:   acc.BaseURL,
		StreamURL: p.shared.StreamURL,
	}
	if creds.BaseURL == "" {
		creds.BaseURL = p.shared.BaseURL
	}
	return creds, nil
}

// ForUser returns the gateway for userID. Clients are reused per key id.
func (p *Provider) ForUser(ctx context.Context, userID string) (connectors.Gateway, error) {
	creds, err := p.Credentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if creds.KeyID == "" || creds.Secret == "" {
		return nil, fmt.Errorf("no broker credentials configured for user %s", userID)
	}

	cacheKey := creds.KeyID + "@" + creds.BaseURL

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[cacheKey]; ok {
		return c, nil
	}

	logger.WithFields(map[string]interface{}{
		"component": "accounts",
		"user_id":   userID,
		"base_url":  creds.BaseURL,
		"shared":    creds.KeyID == p.shared.KeyID,
	}).Info("creating broker client")

	c := newClient(creds)
	p.clients[cacheKey] = c
	return c, nil
}
