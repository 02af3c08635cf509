package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/goupclub/goup/app/controllers"
	"github.com/goupclub/goup/internal/pkg/env"
	"github.com/goupclub/goup/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// Gateway callbacks stay outside the limiter so provider retries are
	// never throttled away.
	app.Post("/api/payments/wechat/notify", controllers.HandleWechatNotify)
	app.Post("/api/payments/alipay/notify", controllers.HandleAlipayNotify)

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Storage:    newLimiterStorage(),
	}))

	// member-facing routes
	api.Post("/activity/signup", controllers.HandleActivitySignup)
	api.Post("/user/activity/cancel", controllers.HandleActivityCancel)
	api.Post("/payments/prepay", controllers.HandlePrepay)
	api.Post("/payments/points-only", controllers.HandlePayWithPoints)
	api.Get("/members/:id/vouchers", controllers.HandleMemberVouchers)
	api.Get("/members/:id/points", controllers.HandleMemberPoints)
	api.Get("/members/:id/points/transactions", controllers.HandleMemberPointsTransactions)
	api.Get("/referral/code/:memberId", controllers.HandleReferralCode)
	api.Post("/referral/bind", controllers.HandleReferralBind)
	api.Get("/voucher", controllers.HandleGetVoucherConfig)

	// operator routes
	api.Post("/admin/login", controllers.HandleAdminLogin)

	requireAdmin := middleware.RequireAdmin()
	api.Post("/points/grant", requireAdmin, controllers.HandlePointsGrant)
	api.Post("/points/adjust", requireAdmin, controllers.HandlePointsAdjust)
	api.Get("/points/transactions", requireAdmin, controllers.HandlePointsTransactions)
	api.Post("/points/settlement/run", requireAdmin, controllers.HandleSettlementRun)
	api.Post("/vouchers/promo", requireAdmin, controllers.HandleIssuePromoVoucher)
	api.Get("/payments/errors", requireAdmin, controllers.HandlePaymentErrors)
	api.Get("/stats/overview", requireAdmin, controllers.HandleStatsOverview)
	api.Get("/stats/daily", requireAdmin, controllers.HandleStatsDaily)
	api.Put("/voucher", requireAdmin, controllers.HandleUpdateVoucherConfig)
	api.Get("/orders", requireAdmin, controllers.HandleAdminOrders)
	api.Get("/payments", requireAdmin, controllers.HandleAdminPayments)
	api.Post("/orders/:id/refund", requireAdmin, controllers.HandleOrderRefund)
}

// newLimiterStorage backs the rate limiter with Redis so limits hold across
// instances. Database 1 keeps limiter keys away from the cache in DB 0.
func newLimiterStorage() *redis.Storage {
	return redis.New(redis.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     env.GetEnvAsInt("CACHE_PORT", 6379),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 1,
		Reset:    false,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
