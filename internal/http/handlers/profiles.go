package handlers

import (
	"database/sql"
	"strings"

	"github.com/gabriel/anime-watchlist/backend/internal/repository"
	"github.com/gofiber/fiber/v2"
)

type createProfileRequest struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type ProfilesHandler struct {
	repo *repository.ProfileRepository
}

func NewProfilesHandler(db *sql.DB) *ProfilesHandler {
	return &ProfilesHandler{repo: repository.NewProfileRepository(db)}
}

func (h *ProfilesHandler) List(c *fiber.Ctx) error {
	profiles, err := h.repo.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to list profiles"})
	}
	return c.JSON(fiber.Map{"items": profiles})
}

func (h *ProfilesHandler) Create(c *fiber.Ctx) error {
	var req createProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid json body"})
	}
	if strings.TrimSpace(req.Key) == "" || strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "key and name are required"})
	}

	existing, err := h.repo.GetByKey(strings.TrimSpace(req.Key))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to check profile key"})
	}
	if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "profile key already exists"})
	}

	created, err := h.repo.Create(req.Key, req.Name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to create profile"})
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}
