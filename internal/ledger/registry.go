package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"fairdrop-auction-go/internal/models"

	"gopkg.in/yaml.v2"
)

type TokenConfig struct {
	Symbol string `yaml:"symbol"`
	AppId  string `yaml:"app_id"`
}

type TokensConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

// Registry maps application ids to known fungible tokens. Auctions may only
// reference tokens that are registered here.
type Registry struct {
	byAppId map[string]models.AssetHandle
}

func NewRegistry(tokens []TokenConfig) *Registry {
	registry := &Registry{byAppId: make(map[string]models.AssetHandle, len(tokens))}
	for _, token := range tokens {
		registry.byAppId[token.AppId] = models.AssetHandle{
			Symbol: token.Symbol,
			AppId:  token.AppId,
		}
	}
	return registry
}

// Resolve returns the handle for a registered token application id.
func (r *Registry) Resolve(appId string) (models.AssetHandle, error) {
	handle, ok := r.byAppId[appId]
	if !ok {
		return models.AssetHandle{}, fmt.Errorf("%w: %s", ErrUnknownToken, appId)
	}
	return handle, nil
}

// Tokens lists every registered token.
func (r *Registry) Tokens() []models.AssetHandle {
	handles := make([]models.AssetHandle, 0, len(r.byAppId))
	for _, handle := range r.byAppId {
		handles = append(handles, handle)
	}
	return handles
}

// LoadRegistry reads the token registry from a YAML file.
func LoadRegistry(tokensFile string) (*Registry, error) {
	var tokensPath string
	if filepath.IsAbs(tokensFile) {
		tokensPath = tokensFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		tokensPath = filepath.Join(wd, tokensFile)
	}

	data, err := os.ReadFile(tokensPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", tokensFile, err)
	}

	var config TokensConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", tokensFile, err)
	}

	for i, token := range config.Tokens {
		if token.Symbol == "" {
			return nil, fmt.Errorf("token at index %d missing symbol", i)
		}
		if token.AppId == "" {
			return nil, fmt.Errorf("token at index %d missing app_id", i)
		}
	}

	return NewRegistry(config.Tokens), nil
}
