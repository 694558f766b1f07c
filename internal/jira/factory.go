package jira

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/config"
)

// NewClientFromConfig creates a Client with the authentication selected by cfg.Auth.
func NewClientFromConfig(cfg config.JiraConfig, logger claimer.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("jira url is required")
	}

	var rc *resty.Client
	switch cfg.Auth {
	case "", "basic":
		if cfg.User == "" || cfg.Token == "" {
			return nil, fmt.Errorf("jira user and token are required for basic auth")
		}
		rc = resty.New().SetBasicAuth(cfg.User, cfg.Token)
	case "oauth2":
		if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TokenURL == "" {
			return nil, fmt.Errorf("jira client_id, client_secret and token_url are required for oauth2")
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// Tokens are fetched and refreshed by the oauth2 transport.
		rc = resty.NewWithClient(cc.Client(context.Background()))
	default:
		return nil, fmt.Errorf("unknown jira auth: %s", cfg.Auth)
	}

	return New(rc, cfg.URL, Options{
		Timeout:      cfg.Timeout.Duration,
		LookbackDays: cfg.LookbackDays,
		MaxResults:   cfg.MaxResults,
	}, logger), nil
}
