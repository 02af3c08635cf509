package controllers

import (
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/goupclub/goup/internal/pkg/database"
	"github.com/goupclub/goup/internal/pkg/metrics/counter"
	"github.com/goupclub/goup/internal/pkg/payment"
)

var (
	gatewayOnce   sync.Once
	wechatGateway *payment.WechatClient
	alipayGateway *payment.AlipayClient
	gatewayErr    error
)

// paymentService builds the payment service with the configured provider
// clients. Client construction parses the PEM material once.
func paymentService() (*payment.Service, error) {
	gatewayOnce.Do(func() {
		wechatGateway, gatewayErr = payment.NewWechatClient(payment.WechatConfigFromEnv())
		if gatewayErr != nil {
			return
		}
		alipayGateway, gatewayErr = payment.NewAlipayClient(payment.AlipayConfigFromEnv())
	})
	if gatewayErr != nil {
		return nil, gatewayErr
	}
	return payment.NewServiceFromDB(database.GetDB(), wechatGateway, alipayGateway), nil
}

// HandlePrepay starts a gateway payment for an order and returns the client
// pay parameters together with the amount breakdown.
func HandlePrepay(c *fiber.Ctx) error {
	var req payment.PrepayRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	svc, err := paymentService()
	if err != nil {
		return internalError(c, err)
	}
	res, err := svc.Prepay(c.Context(), req)
	if err != nil {
		return paymentError(c, err)
	}
	return c.JSON(res)
}

type pointsOnlyRequest struct {
	OrderID  uint `json:"order_id" validate:"required"`
	MemberID uint `json:"member_id" validate:"required"`
}

// HandlePayWithPoints settles an order entirely from the member's points
// balance, no gateway involved.
func HandlePayWithPoints(c *fiber.Ctx) error {
	var req pointsOnlyRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	svc, err := paymentService()
	if err != nil {
		return internalError(c, err)
	}
	pay, err := svc.PayWithPoints(c.Context(), req.OrderID, req.MemberID)
	if err != nil {
		return paymentError(c, err)
	}
	return c.JSON(pay)
}

// HandleWechatNotify processes an asynchronous WeChat Pay notification. The
// response shape follows the v3 notification contract.
func HandleWechatNotify(c *fiber.Ctx) error {
	svc, err := paymentService()
	if err != nil {
		_ = counter.AddNotifyOutcome("wechat", counter.OutcomeFailed)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"code": "FAIL", "message": "service unavailable"})
	}

	res, err := svc.ProcessWechatNotify(
		c.Context(),
		c.Get("Wechatpay-Timestamp"),
		c.Get("Wechatpay-Nonce"),
		c.Get("Wechatpay-Signature"),
		c.Body(),
	)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			_ = counter.AddNotifyOutcome("wechat", counter.OutcomeInvalid)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"code": "FAIL", "message": "invalid signature"})
		}
		_ = counter.AddNotifyOutcome("wechat", counter.OutcomeFailed)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"code": "FAIL", "message": err.Error()})
	}

	if res.Skipped {
		_ = counter.AddNotifyOutcome("wechat", counter.OutcomeSkipped)
	} else {
		_ = counter.AddNotifyOutcome("wechat", counter.OutcomeProcessed)
	}
	return c.JSON(fiber.Map{"code": "SUCCESS", "message": "ok"})
}

// HandleAlipayNotify processes an asynchronous Alipay notification. Alipay
// expects the literal body "success" on acceptance.
func HandleAlipayNotify(c *fiber.Ctx) error {
	svc, err := paymentService()
	if err != nil {
		_ = counter.AddNotifyOutcome("alipay", counter.OutcomeFailed)
		return c.Status(fiber.StatusInternalServerError).SendString("fail")
	}

	params := make(map[string]string)
	c.Context().PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})

	res, err := svc.ProcessAlipayNotify(c.Context(), params)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			_ = counter.AddNotifyOutcome("alipay", counter.OutcomeInvalid)
			return c.Status(fiber.StatusUnauthorized).SendString("fail")
		}
		_ = counter.AddNotifyOutcome("alipay", counter.OutcomeFailed)
		return c.Status(fiber.StatusInternalServerError).SendString("fail")
	}

	if res.Skipped {
		_ = counter.AddNotifyOutcome("alipay", counter.OutcomeSkipped)
	} else {
		_ = counter.AddNotifyOutcome("alipay", counter.OutcomeProcessed)
	}
	return c.SendString("success")
}

// HandlePaymentErrors lists recorded gateway failures for operators.
func HandlePaymentErrors(c *fiber.Ctx) error {
	svc, err := paymentService()
	if err != nil {
		return internalError(c, err)
	}
	offset, limit := pagination(c)
	items, total, err := svc.Errors(offset, limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "total": total, "offset": offset, "limit": limit})
}

// HandleOrderRefund marks a paid order refunded and records the reversing
// payment. Money movement at the provider happens out of band.
func HandleOrderRefund(c *fiber.Ctx) error {
	orderID := paramUint(c, "id")
	if orderID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid order id")
	}

	svc, err := paymentService()
	if err != nil {
		return internalError(c, err)
	}
	pay, err := svc.Refund(c.Context(), orderID)
	if err != nil {
		return paymentError(c, err)
	}
	return c.JSON(pay)
}

func paymentError(c *fiber.Ctx, err error) error {
	var insufficient *payment.InsufficientPointsError
	switch {
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":     "insufficient_points",
			"message":   err.Error(),
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.Is(err, payment.ErrOrderNotFound):
		return jsonError(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, payment.ErrOrderNotPayable),
		errors.Is(err, payment.ErrUnsupportedProvider),
		errors.Is(err, payment.ErrOpenIDRequired):
		return jsonError(c, fiber.StatusUnprocessableEntity, "rejected", err.Error())
	default:
		return internalError(c, err)
	}
}
