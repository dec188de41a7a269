package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/refera-net/refera/internal/api"
)

// Registrations under this domain are declined by the simulated processor,
// for exercising the failure path end to end.
const declineDomain = "@decline.test"

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type handlers struct {
	users   UserRepository
	intents IntentStore
	issuer  *TokenIssuer
	logger  *slog.Logger
}

type registrationRequest struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode"`
}

func (r registrationRequest) validate() error {
	if r.Email == "" || r.Username == "" || r.Password == "" || r.ReferralCode == "" {
		return fiber.NewError(http.StatusBadRequest, "All fields are required.")
	}
	if !emailShape.MatchString(r.Email) {
		return fiber.NewError(http.StatusBadRequest, "Please enter a valid email address.")
	}
	if len(r.Password) < 8 {
		return fiber.NewError(http.StatusBadRequest, "Password must be at least 8 characters long.")
	}
	return nil
}

// initiateRegistration reserves the account shell and issues a payment
// intent whose client secret goes back to the client.
func (h *handlers) initiateRegistration(c *fiber.Ctx) error {
	var req registrationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return err
	}

	if _, err := h.users.FindByIdentifier(c.UserContext(), req.Email); err == nil {
		return fiber.NewError(http.StatusConflict, "An account with this email already exists.")
	}
	if _, err := h.users.FindByIdentifier(c.UserContext(), req.Username); err == nil {
		return fiber.NewError(http.StatusConflict, "This username is already taken.")
	}

	intentID := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := Intent{
		ID:           intentID,
		ClientSecret: intentID + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Email:        strings.ToLower(req.Email),
		Decline:      strings.HasSuffix(strings.ToLower(req.Email), declineDomain),
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.intents.Save(c.UserContext(), intent); err != nil {
		return fiber.NewError(http.StatusInternalServerError, "Could not create payment intent.")
	}

	h.logger.Info("registration intent created", slog.String("intent_id", intent.ID))
	return c.Status(http.StatusOK).JSON(fiber.Map{"clientSecret": intent.ClientSecret})
}

// processorConfirm simulates the payment processor's confirmation endpoint.
// Its responses use the processor's error vocabulary, not the backend's.
func (h *handlers) processorConfirm(c *fiber.Ctx) error {
	// Params is backed by fasthttp's reusable request buffer; the intent
	// store keeps the id past this handler.
	intentID := utils.CopyString(c.Params("id"))
	secret := c.FormValue("client_secret")

	intent, err := h.intents.Find(c.UserContext(), intentID)
	if err != nil || intent.ClientSecret != secret {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": fiber.Map{"message": "No such payment_intent or secret mismatch."},
		})
	}
	if intent.Decline {
		return c.Status(http.StatusPaymentRequired).JSON(fiber.Map{
			"error": fiber.Map{"message": "card_declined"},
		})
	}
	if err := h.intents.MarkPaid(c.UserContext(), intentID); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{"message": "intent update failed"},
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"id": intentID, "status": "succeeded"})
}

type confirmRequest struct {
	registrationRequest
	PaymentIntentID string `json:"paymentIntentId"`
}

// confirmRegistration converts a paid intent into a permanent account.
// Idempotent per payment intent id: a retried confirm reports success
// without creating a second account.
func (h *handlers) confirmRegistration(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.PaymentIntentID == "" {
		return fiber.NewError(http.StatusBadRequest, "paymentIntentId is required.")
	}

	intent, err := h.intents.Find(c.UserContext(), req.PaymentIntentID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "Unknown payment intent.")
	}
	if !strings.EqualFold(intent.Email, req.Email) {
		// A secret is single-use and bound to the attempt that created it.
		return fiber.NewError(http.StatusBadRequest, "Payment intent does not match this registration.")
	}
	if !intent.Paid {
		return fiber.NewError(http.StatusBadRequest, "Payment has not completed for this registration.")
	}

	first, err := h.intents.Consume(c.UserContext(), req.PaymentIntentID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "Could not finalize registration.")
	}
	if !first {
		// Already finalized by an earlier call with the same intent.
		return c.SendStatus(http.StatusNoContent)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.release(c, req.PaymentIntentID)
		return fiber.NewError(http.StatusInternalServerError, "Could not finalize registration.")
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(req.Email),
		Username:     req.Username,
		PasswordHash: hash,
		ReferralCode: "REF-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]),
		ReferredBy:   req.ReferralCode,
		Role:         api.RoleUser,
		Status:       api.StatusActive,
		Balance:      "0.00",
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.Create(c.UserContext(), user); err != nil {
		h.release(c, req.PaymentIntentID)
		if errors.Is(err, ErrUserExists) {
			return fiber.NewError(http.StatusConflict, "An account with this email already exists.")
		}
		return fiber.NewError(http.StatusInternalServerError, "Could not finalize registration.")
	}

	h.logger.Info("registration finalized",
		slog.String("user_id", user.ID),
		slog.String("intent_id", req.PaymentIntentID))
	return c.SendStatus(http.StatusNoContent)
}

// release returns the consumption slot so a finalize that created nothing can
// be retried honestly instead of reporting success for a missing account.
func (h *handlers) release(c *fiber.Ctx, intentID string) {
	if err := h.intents.Release(c.UserContext(), intentID); err != nil {
		h.logger.Error("release intent", slog.String("intent_id", intentID), slog.Any("error", err))
	}
}

type loginRequest struct {
	LoginIdentifier string `json:"login_identifier"`
	Password        string `json:"password"`
}

func (h *handlers) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.users.FindByIdentifier(c.UserContext(), req.LoginIdentifier)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "Invalid credentials.")
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)); err != nil {
		return fiber.NewError(http.StatusUnauthorized, "Invalid credentials.")
	}

	access, refresh, err := h.issuer.Issue(user.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "Could not issue credentials.")
	}

	return c.Status(http.StatusOK).JSON(api.LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Identity:     user.Identity(),
	})
}

// requireAuth verifies the bearer credential and stashes the user id.
func (h *handlers) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return fiber.NewError(http.StatusUnauthorized, "Could not validate credentials.")
	}
	userID, err := h.issuer.Verify(token)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "Could not validate credentials.")
	}
	c.Locals("user_id", userID)
	return c.Next()
}

func (h *handlers) profile(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	user, err := h.users.FindByID(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "Could not validate credentials.")
	}
	return c.JSON(user.Identity())
}

func (h *handlers) dashboardStats(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	user, err := h.users.FindByID(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "Could not validate credentials.")
	}

	referrals, err := h.users.CountReferredBy(c.UserContext(), user.ReferralCode)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "Could not compute stats.")
	}

	// Flat sandbox commission per direct referral.
	return c.JSON(api.DashboardStats{
		TotalEarnings:   fmt.Sprintf("%d.00", referrals*25),
		TotalTeamSize:   referrals,
		DirectReferrals: referrals,
	})
}
