package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
	"github.com/gabriel/anime-watchlist/backend/internal/resolve"
	"github.com/gofiber/fiber/v2"
)

const (
	catalogRequestTimeout  = 12 * time.Second
	yearListRequestTimeout = 90 * time.Second
)

// CatalogResolver is the slice of the resolution service the catalog
// endpoints use.
type CatalogResolver interface {
	Search(ctx context.Context, title string, limit int, opts resolve.ResolveOptions) ([]catalog.SearchCandidate, error)
	ResolveOne(ctx context.Context, title string, opts resolve.ResolveOptions) (*catalog.Record, error)
	Lookup(ctx context.Context, id int, opts resolve.ResolveOptions) (*catalog.Record, error)
	ListByYear(ctx context.Context, year int, page int, opts resolve.YearListOptions) (resolve.YearPage, error)
	ListByYearAll(ctx context.Context, year int, opts resolve.YearListOptions) ([]catalog.Record, error)
}

type CatalogHandler struct {
	resolver CatalogResolver
}

func NewCatalogHandler(resolver CatalogResolver) *CatalogHandler {
	return &CatalogHandler{resolver: resolver}
}

func (h *CatalogHandler) Search(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "query parameter q is required"})
	}

	limit := c.QueryInt("limit", 10)
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(c.Context(), catalogRequestTimeout)
	defer cancel()

	candidates, err := h.resolver.Search(ctx, query, limit, resolve.ResolveOptions{})
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "catalog search unavailable"})
	}

	items := make([]fiber.Map, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, fiber.Map{
			"media": candidate.Record,
			"score": candidate.Score,
		})
	}

	return c.JSON(fiber.Map{"items": items})
}

func (h *CatalogHandler) Resolve(c *fiber.Ctx) error {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "query parameter title is required"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), catalogRequestTimeout)
	defer cancel()

	record, err := h.resolver.ResolveOne(ctx, title, resolve.ResolveOptions{})
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "catalog resolution unavailable"})
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "no matching title found"})
	}

	return c.JSON(record)
}

func (h *CatalogHandler) GetByID(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid media id"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), catalogRequestTimeout)
	defer cancel()

	record, err := h.resolver.Lookup(ctx, id, resolve.ResolveOptions{})
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "catalog lookup unavailable"})
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "media not found"})
	}

	return c.JSON(record)
}

func (h *CatalogHandler) ListByYear(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil || year < 1900 || year > 2200 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid year"})
	}

	opts := resolve.YearListOptions{
		Season:          c.Query("season"),
		PerPage:         c.QueryInt("perPage", 0),
		IncludeStatuses: splitListParam(c.Query("includeStatus")),
		ExcludeStatuses: splitListParam(c.Query("excludeStatus")),
	}

	if c.QueryBool("all", false) {
		ctx, cancel := context.WithTimeout(c.Context(), yearListRequestTimeout)
		defer cancel()

		items, err := h.resolver.ListByYearAll(ctx, year, opts)
		if err != nil && len(items) == 0 {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "year listing unavailable"})
		}
		response := fiber.Map{"items": items}
		if err != nil {
			response["truncated"] = true
		}
		return c.JSON(response)
	}

	page := c.QueryInt("page", 1)
	if page <= 0 {
		page = 1
	}

	ctx, cancel := context.WithTimeout(c.Context(), catalogRequestTimeout)
	defer cancel()

	result, err := h.resolver.ListByYear(ctx, year, page, opts)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "year listing unavailable"})
	}
	if !result.OK {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "upstream catalog error",
			"status":  result.Status,
		})
	}

	return c.JSON(fiber.Map{
		"items":    result.Items,
		"pageInfo": result.PageInfo,
	})
}

func splitListParam(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			values = append(values, value)
		}
	}
	return values
}
