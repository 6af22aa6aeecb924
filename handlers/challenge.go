package handlers

import (
	"puzzle-bar/middleware"
	"puzzle-bar/services"

	"github.com/gofiber/fiber/v2"
)

type ChallengeHandlers struct {
	Challenges *services.ChallengeService
	Roster     *services.RosterService
	Settlement *services.SettlementService
}

func SetupChallengeRoutes(router fiber.Router, h *ChallengeHandlers) {
	router.Get("/challenges/upcoming", h.Challenges.GetUpcoming)
	router.Get("/challenges/past", h.Challenges.GetPast)
	router.Get("/challenges/next", h.Challenges.GetNext)
	router.Get("/challenges/:id", h.Challenges.GetChallenge)
	router.Get("/challenges/:id/participants", h.ListParticipants)
	router.Post("/challenges/:id/join", h.JoinNext)
	router.Delete("/challenges/:id/participants/:participantId/leave", h.Leave)

	staff := router.Group("/staff", middleware.RequireStaff())
	staff.Post("/challenges", h.Challenges.CreateChallenge)
	staff.Put("/challenges/:id", h.Challenges.UpdateChallenge)
	staff.Delete("/challenges/:id", h.Challenges.DeleteChallenge)
	staff.Put("/challenges/:id/complete", h.Complete)
	staff.Post("/challenges/:id/participants", h.AddParticipant)
	staff.Delete("/challenges/:id/participants/:participantId", h.RemoveParticipant)
	staff.Put("/challenges/:id/participants/:participantId/score", h.SetScore)
	staff.Put("/challenges/:id/participants/:participantId/confirm", h.ConfirmCompletion)
}

func (h *ChallengeHandlers) ListParticipants(c *fiber.Ctx) error {
	roster, err := h.Roster.List(c.UserContext(), c.Params("id"), services.ParseRosterFilter(c.Query("filter")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(roster)
}

// JoinNext lets customers join only the nearest active challenge.
func (h *ChallengeHandlers) JoinNext(c *fiber.Ctx) error {
	next, err := h.Challenges.NextActive(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	if next.ID != c.Params("id") {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "only the next upcoming challenge can be joined",
			"entity": "challenge",
			"next":   next.ID,
		})
	}

	userID, _ := c.Locals("user_id").(string)
	p, err := h.Roster.Join(c.UserContext(), next.ID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ChallengeHandlers) Leave(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	challenge, err := h.Roster.Leave(c.UserContext(), c.Params("id"), c.Params("participantId"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(challenge)
}

// AddParticipant is the staff join: any challenge, any user.
func (h *ChallengeHandlers) AddParticipant(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}
	p, err := h.Roster.Join(c.UserContext(), c.Params("id"), body.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ChallengeHandlers) RemoveParticipant(c *fiber.Ctx) error {
	challenge, err := h.Roster.Remove(c.UserContext(), c.Params("id"), c.Params("participantId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(challenge)
}

func (h *ChallengeHandlers) SetScore(c *fiber.Ctx) error {
	var body struct {
		Score *int64 `json:"score"`
	}
	if err := c.BodyParser(&body); err != nil || body.Score == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "score is required"})
	}
	p, err := h.Settlement.SetScore(c.UserContext(), c.Params("id"), c.Params("participantId"), *body.Score)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

func (h *ChallengeHandlers) ConfirmCompletion(c *fiber.Ctx) error {
	res, err := h.Settlement.ConfirmCompletion(c.UserContext(), c.Params("id"), c.Params("participantId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *ChallengeHandlers) Complete(c *fiber.Ctx) error {
	challenge, err := h.Settlement.MarkComplete(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(challenge)
}
