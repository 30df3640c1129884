package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/models"
	"github.com/gabriel/anime-watchlist/backend/internal/repository"
	"github.com/gabriel/anime-watchlist/backend/internal/resolve"
	"github.com/gofiber/fiber/v2"
)

var validEntryStatuses = map[string]bool{
	"watched":  true,
	"bookmark": true,
}

type createEntryRequest struct {
	Title   string   `json:"title"`
	Status  string   `json:"status"`
	Rating  *float64 `json:"rating"`
	MediaID *int     `json:"mediaId"`
}

type updateEntryRequest struct {
	Title  string   `json:"title"`
	Status string   `json:"status"`
	Rating *float64 `json:"rating"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type setRatingRequest struct {
	Rating *float64 `json:"rating"`
}

type LibraryHandler struct {
	repo            *repository.LibraryRepository
	resolver        CatalogResolver
	profileResolver *profileContextResolver
}

func NewLibraryHandler(db *sql.DB, resolver CatalogResolver) *LibraryHandler {
	return &LibraryHandler{
		repo:            repository.NewLibraryRepository(db),
		resolver:        resolver,
		profileResolver: newProfileContextResolver(db),
	}
}

// Create saves a show to the library. When the request names a media id the
// snapshot comes from a direct lookup; otherwise the free-text title goes
// through resolution and an unresolved title is still saved, just without a
// snapshot.
func (h *LibraryHandler) Create(c *fiber.Ctx) error {
	profile, err := h.profileResolver.Resolve(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	var req createEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid json body"})
	}

	entry, err := validateAndBuildEntry(req.Title, req.Status, req.Rating)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	entry.ProfileID = profile.ID

	ctx, cancel := context.WithTimeout(c.Context(), catalogRequestTimeout)
	defer cancel()

	if req.MediaID != nil {
		record, lookupErr := h.resolver.Lookup(ctx, *req.MediaID, resolve.ResolveOptions{})
		if lookupErr != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "catalog lookup unavailable"})
		}
		if record == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "mediaId does not exist or is not eligible"})
		}
		repository.ApplySnapshot(entry, record)
	} else {
		record, resolveErr := h.resolver.ResolveOne(ctx, entry.Title, resolve.ResolveOptions{})
		if resolveErr == nil {
			repository.ApplySnapshot(entry, record)
		}
	}

	if entry.MediaID != nil {
		existing, err := h.repo.GetByMediaID(profile.ID, *entry.MediaID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to check for duplicates"})
		}
		if existing != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "entry for this media already exists", "existingId": existing.ID})
		}
	}

	created, err := h.repo.Create(entry)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to create library entry"})
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *LibraryHandler) List(c *fiber.Ctx) error {
	profile, err := h.profileResolver.Resolve(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	statuses := splitListParam(c.Query("status"))
	if err := validateEntryStatuses(statuses); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	options := repository.LibraryListOptions{
		ProfileID: profile.ID,
		Statuses:  statuses,
		Seasons:   splitListParam(c.Query("season")),
		Year:      c.QueryInt("year", 0),
		SortBy:    c.Query("sort", "updated_at"),
		Order:     c.Query("order", "desc"),
		Query:     c.Query("q"),
		Limit:     c.QueryInt("limit", 0),
		Offset:    c.QueryInt("offset", 0),
	}

	entries, err := h.repo.List(options)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to list library entries"})
	}

	total, err := h.repo.Count(options)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to count library entries"})
	}

	return c.JSON(fiber.Map{"items": entries, "total": total})
}

func (h *LibraryHandler) GetByID(c *fiber.Ctx) error {
	profile, err := h.profileResolver.Resolve(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	id, err := parseEntryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	entry, err := h.repo.GetByID(profile.ID, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to get library entry"})
	}
	if entry == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "library entry not found"})
	}

	return c.JSON(entry)
}

func (h *LibraryHandler) Update(c *fiber.Ctx) error {
	profile, err := h.profileResolver.Resolve(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	id, err := parseEntryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	var req updateEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid json body"})
	}

	entry, err := validateAndBuildEntry(req.Title, req.Status, req.Rating)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	updated, err := h.repo.Update(profile.ID, id, entry)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to update library entry"})
	}
	if updated == nil {
		existing, getErr := h.repo.GetByID(profile.ID, id)
		if getErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to update library entry"})
		}
		if existing == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "library entry not found"})
		}
		return c.JSON(existing)
	}

	return c.JSON(updated)
}

func (h *LibraryHandler) SetStatus(c *fiber.Ctx) error {
	profile, err := h.profileResolver.Resolve(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	id, err := parseEntryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	var req setStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid json body"})
	}
	status := strings.TrimSpace(req.Status)
	if !validEntryStatuses[status] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid status"})
	}

	if _, err := h.repo.SetStatus(profile.ID, id, status); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to set status"})
	}

	entry, err := h.repo.GetByID(profile.ID, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to get library entry"})
	}
	if entry == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "library entry not found"})
	}

	return c.JSON(entry)
}

func (h *LibraryHandler) SetRating(c *fiber.Ctx) error {
	profile, err := h.profileResolver.Resolve(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	id, err := parseEntryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	var req setRatingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid json body"})
	}
	if err := validateEntryRating(req.Rating); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if _, err := h.repo.SetRating(profile.ID, id, req.Rating); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to set rating"})
	}

	entry, err := h.repo.GetByID(profile.ID, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to get library entry"})
	}
	if entry == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "library entry not found"})
	}

	return c.JSON(entry)
}

func (h *LibraryHandler) Delete(c *fiber.Ctx) error {
	profile, err := h.profileResolver.Resolve(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	id, err := parseEntryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	deleted, err := h.repo.Delete(profile.ID, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to delete library entry"})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "library entry not found"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Refresh re-resolves an entry's catalog snapshot on demand.
func (h *LibraryHandler) Refresh(c *fiber.Ctx) error {
	profile, err := h.profileResolver.Resolve(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	id, err := parseEntryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	entry, err := h.repo.GetByID(profile.ID, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to get library entry"})
	}
	if entry == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "library entry not found"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), catalogRequestTimeout)
	defer cancel()

	if entry.MediaID != nil {
		resolved, lookupErr := h.resolver.Lookup(ctx, *entry.MediaID, resolve.ResolveOptions{})
		if lookupErr != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "catalog lookup unavailable"})
		}
		if resolved != nil {
			if err := h.repo.UpdateAiringState(entry.ID, resolved.Episodes, resolved.Status, resolved.AverageScore, time.Now()); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to refresh entry"})
			}
		}
	} else {
		resolved, resolveErr := h.resolver.ResolveOne(ctx, entry.Title, resolve.ResolveOptions{})
		if resolveErr != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "catalog resolution unavailable"})
		}
		if resolved != nil {
			repository.ApplySnapshot(entry, resolved)
			if _, err := h.repo.Update(profile.ID, entry.ID, entry); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to refresh entry"})
			}
		}
	}

	refreshed, err := h.repo.GetByID(profile.ID, id)
	if err != nil || refreshed == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to get refreshed entry"})
	}

	return c.JSON(refreshed)
}

func parseEntryID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid library entry id")
	}
	return id, nil
}

func validateAndBuildEntry(title string, status string, rating *float64) (*models.LibraryEntry, error) {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		return nil, fmt.Errorf("title is required")
	}
	trimmedStatus := strings.TrimSpace(status)
	if !validEntryStatuses[trimmedStatus] {
		return nil, fmt.Errorf("invalid status")
	}
	if err := validateEntryRating(rating); err != nil {
		return nil, err
	}

	return &models.LibraryEntry{
		Title:  trimmedTitle,
		Status: trimmedStatus,
		Rating: rating,
	}, nil
}

func validateEntryStatuses(statuses []string) error {
	for _, status := range statuses {
		if !validEntryStatuses[status] {
			return fmt.Errorf("invalid status filter")
		}
	}
	return nil
}
