package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
	"github.com/ayushgupta1777/f-vite-backend/internal/models"
	"github.com/ayushgupta1777/f-vite-backend/internal/service"
)

type Handlers struct {
	chat *service.ChatService
	auth *service.AuthService
	dev  bool
	log  *zap.SugaredLogger
}

func NewHandlers(chat *service.ChatService, auth *service.AuthService, dev bool, log *zap.SugaredLogger) *Handlers {
	return &Handlers{chat: chat, auth: auth, dev: dev, log: log}
}

// respondErr maps the error taxonomy onto HTTP statuses. Only the
// stable kind and public message leave the process.
func (h *Handlers) respondErr(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.KindValidation:
		status = fiber.StatusBadRequest
	case errs.KindNotFound:
		status = fiber.StatusNotFound
	case errs.KindConflict:
		status = fiber.StatusConflict
	default:
		h.log.Errorw("request failed", "err", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   string(errs.KindOf(err)),
		"message": errs.PublicMessage(err),
	})
}

func reqCtx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context(), 10*time.Second)
}

func caller(c *fiber.Ctx) string {
	mobile, _ := c.Locals("mobile").(string)
	return mobile
}

func (h *Handlers) signup(c *fiber.Ctx) error {
	var req struct {
		Mobile string `json:"mobile"`
	}
	if err := c.BodyParser(&req); err != nil {
		return h.respondErr(c, errs.Validation("invalid body"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	token, user, err := h.auth.Signup(ctx, req.Mobile)
	if err != nil {
		return h.respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token, "user": user})
}

func (h *Handlers) login(c *fiber.Ctx) error {
	var req struct {
		Mobile string `json:"mobile"`
	}
	if err := c.BodyParser(&req); err != nil {
		return h.respondErr(c, errs.Validation("invalid body"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	token, user, err := h.auth.Login(ctx, req.Mobile)
	if err != nil {
		return h.respondErr(c, err)
	}
	return c.JSON(fiber.Map{"token": token, "user": user})
}

func (h *Handlers) requestOTP(c *fiber.Ctx) error {
	var req struct {
		Mobile string `json:"mobile"`
	}
	if err := c.BodyParser(&req); err != nil {
		return h.respondErr(c, errs.Validation("invalid body"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	code, err := h.auth.RequestOTP(ctx, req.Mobile)
	if err != nil {
		return h.respondErr(c, err)
	}
	resp := fiber.Map{"status": "sent"}
	if h.dev {
		// There is no SMS gateway in development.
		resp["otp"] = code
	}
	return c.JSON(resp)
}

func (h *Handlers) verifyOTP(c *fiber.Ctx) error {
	var req struct {
		Mobile string `json:"mobile"`
		OTP    string `json:"otp"`
	}
	if err := c.BodyParser(&req); err != nil {
		return h.respondErr(c, errs.Validation("invalid body"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	token, user, err := h.auth.VerifyOTP(ctx, req.Mobile, req.OTP)
	if err != nil {
		return h.respondErr(c, err)
	}
	return c.JSON(fiber.Map{"token": token, "user": user})
}

func (h *Handlers) me(c *fiber.Ctx) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	user, err := h.auth.Me(ctx, caller(c))
	if err != nil {
		return h.respondErr(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *Handlers) updateProfilePicture(c *fiber.Ctx) error {
	var req struct {
		ProfilePicture string `json:"profilePicture"`
	}
	if err := c.BodyParser(&req); err != nil {
		return h.respondErr(c, errs.Validation("invalid body"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	user, err := h.auth.UpdateProfilePicture(ctx, caller(c), req.ProfilePicture)
	if err != nil {
		return h.respondErr(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *Handlers) findUser(c *fiber.Ctx) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	user, err := h.chat.FindUser(ctx, c.Params("mobile"))
	if err != nil {
		return h.respondErr(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *Handlers) listChats(c *fiber.Ctx) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	chats, err := h.chat.ListChats(ctx, caller(c))
	if err != nil {
		return h.respondErr(c, err)
	}
	return c.JSON(chats)
}

// fetchMessages returns the history with the counterparty and, as a
// deliberate side effect, acknowledges everything addressed to the
// caller.
func (h *Handlers) fetchMessages(c *fiber.Ctx) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	msgs, conv, err := h.chat.FetchConversation(ctx, caller(c), c.Params("mobile"))
	if err != nil {
		return h.respondErr(c, err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return c.JSON(fiber.Map{"messages": msgs, "conversationId": conv.ID})
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		Receiver       string `json:"receiver"`
		Text           string `json:"text"`
		ConversationID string `json:"conversationId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return h.respondErr(c, errs.Validation("invalid body"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	msg, conv, err := h.chat.SendMessage(ctx, caller(c), req.Receiver, req.Text, req.ConversationID)
	if err != nil {
		return h.respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg, "conversationId": conv.ID})
}
