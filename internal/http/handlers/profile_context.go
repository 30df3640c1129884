package handlers

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/gabriel/anime-watchlist/backend/internal/models"
	"github.com/gabriel/anime-watchlist/backend/internal/repository"
	"github.com/gofiber/fiber/v2"
)

// profileContextResolver picks the profile a request operates on. Selection
// order: the profile query parameter, then the X-Profile-ID / X-Profile-Key
// headers, then the first profile as the default.
type profileContextResolver struct {
	repo *repository.ProfileRepository
}

func newProfileContextResolver(db *sql.DB) *profileContextResolver {
	return &profileContextResolver{repo: repository.NewProfileRepository(db)}
}

func (r *profileContextResolver) Resolve(c *fiber.Ctx) (*models.Profile, error) {
	selectors := []struct {
		source string
		value  string
	}{
		{"profile", c.Query("profile")},
		{"X-Profile-ID", c.Get("X-Profile-ID")},
		{"X-Profile-Key", c.Get("X-Profile-Key")},
	}

	for _, selector := range selectors {
		value := strings.TrimSpace(selector.value)
		if value == "" {
			continue
		}
		profile, err := r.lookup(value)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, fmt.Errorf("invalid %s", selector.source)
		}
		return profile, nil
	}

	profile, err := r.repo.GetDefault()
	if err != nil {
		return nil, fmt.Errorf("resolve default profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("no profiles available")
	}
	return profile, nil
}

// lookup treats a numeric selector as a profile id and anything else as a key.
func (r *profileContextResolver) lookup(value string) (*models.Profile, error) {
	if id, err := strconv.ParseInt(value, 10, 64); err == nil && id > 0 {
		profile, lookupErr := r.repo.GetByID(id)
		if lookupErr != nil {
			return nil, fmt.Errorf("lookup profile by id: %w", lookupErr)
		}
		return profile, nil
	}

	profile, err := r.repo.GetByKey(value)
	if err != nil {
		return nil, fmt.Errorf("lookup profile by key: %w", err)
	}
	return profile, nil
}
