package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/services"
	"github.com/jackkerouac/aphrodite-sub000/internal/settings"
)

// ConfigService exposes typed settings categories over the API.
type ConfigService struct {
	store *settings.Store
}

// NewConfigService constructs a ConfigService around the settings store.
func NewConfigService(store *settings.Store) *ConfigService {
	return &ConfigService{store: store}
}

// Category returns all settings within a category.
func (s *ConfigService) Category(ctx context.Context, category string) (ConfigCategoryResponse, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return ConfigCategoryResponse{}, services.Wrap(services.ErrConfigInvalid, "api", "config_get", "category required", nil)
	}
	stored, err := s.store.Category(ctx, category)
	if err != nil {
		return ConfigCategoryResponse{}, err
	}
	values := make(map[string]ConfigValue, len(stored))
	for key, setting := range stored {
		values[key] = ConfigValue{Value: setting.Value, Type: string(setting.Type)}
	}
	return ConfigCategoryResponse{Category: category, Values: values}, nil
}

// Update writes settings into a category atomically. Every value must carry
// a known type tag; unknown types reject the whole request.
func (s *ConfigService) Update(ctx context.Context, category string, req ConfigUpdateRequest) (ConfigCategoryResponse, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return ConfigCategoryResponse{}, services.Wrap(services.ErrConfigInvalid, "api", "config_put", "category required", nil)
	}
	if len(req.Values) == 0 {
		return ConfigCategoryResponse{}, services.Wrap(services.ErrConfigInvalid, "api", "config_put", "no values provided", nil)
	}

	values := make(map[string]settings.Setting, len(req.Values))
	for key, value := range req.Values {
		typ, ok := settings.ParseValueType(value.Type)
		if !ok {
			return ConfigCategoryResponse{}, services.Wrap(services.ErrConfigInvalid, "api", "config_put",
				fmt.Sprintf("setting %q: unknown value type %q", key, value.Type), nil)
		}
		values[key] = settings.Setting{Key: key, Value: value.Value, Type: typ, Category: category}
	}
	if err := s.store.SetCategory(ctx, category, values); err != nil {
		return ConfigCategoryResponse{}, err
	}
	return s.Category(ctx, category)
}
