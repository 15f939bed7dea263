package controller

import (
	"relatim-chat/middleware"
	"relatim-chat/service"

	"github.com/gofiber/fiber/v2"
)

type AuthLoginInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type AuthRenewTokenInput struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthOtpSecretInput struct {
	Password string `json:"password"`
}

type AuthOtpVerifyInput struct {
	Token string `json:"token"`
}

type AuthOtpValidateInput struct {
	Token string `json:"token"`
}

type AuthOtpDisableInput struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (h *Controller) AuthSignup(c *fiber.Ctx) error {
	input := service.SignupInput{}
	if err := c.BodyParser(&input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	user, err := h.Auth.Signup(ctx, input)
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusCreated, fiber.Map{
		"id": user.ID,
	})
}

func (h *Controller) AuthSignin(c *fiber.Ctx) error {
	input := AuthLoginInput{}
	if err := c.BodyParser(&input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.Auth.Signin(ctx, input.Login, input.Password)
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"access":  res.Tokens.Access,
		"refresh": res.Tokens.Refresh,
		"2fa":     res.TwoFactor,
	})
}

func (h *Controller) AuthTokenRenew(c *fiber.Ctx) error {
	renew := AuthRenewTokenInput{}
	if err := c.BodyParser(&renew); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.Auth.Renew(ctx, renew.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"access":  res.Tokens.Access,
		"refresh": res.Tokens.Refresh,
		"2fa":     res.TwoFactor,
	})
}

func (h *Controller) AuthOtpSecret(c *fiber.Ctx) error {
	secret := AuthOtpSecretInput{}
	if err := c.BodyParser(&secret); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	otp, err := h.Auth.OtpSecret(ctx, middleware.UserID(c), secret.Password)
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, otp)
}

func (h *Controller) AuthOtpVerify(c *fiber.Ctx) error {
	verify := AuthOtpVerifyInput{}
	if err := c.BodyParser(&verify); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	if err := h.Auth.OtpVerify(ctx, middleware.UserID(c), verify.Token); err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, nil)
}

func (h *Controller) AuthOtpValidate(c *fiber.Ctx) error {
	validate := AuthOtpValidateInput{}
	if err := c.BodyParser(&validate); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	tokens, err := h.Auth.OtpValidate(ctx, middleware.UserID(c), validate.Token)
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
	})
}

func (h *Controller) AuthOtpDisable(c *fiber.Ctx) error {
	disable := AuthOtpDisableInput{}
	if err := c.BodyParser(&disable); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	if err := h.Auth.OtpDisable(ctx, middleware.UserID(c), disable.Password, disable.Token); err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, nil)
}
