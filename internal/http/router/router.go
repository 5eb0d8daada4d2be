package router

import (
	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/config"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/middleware"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Contractor   *handlers.ContractorHandler
	Agreement    *handlers.AgreementHandler
	MagicLink    *handlers.MagicLinkHandler
	Attachment   *handlers.AttachmentHandler
	Milestone    *handlers.MilestoneHandler
	Invoice      *handlers.InvoiceHandler
	Dispute      *handlers.DisputeHandler
	Conversation *handlers.ConversationHandler
	Notification *handlers.NotificationHandler
	WS           *handlers.WSHandler
	Webhook      *handlers.WebhookHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessParser) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	// Stripe posts here directly, without auth or CORS.
	r.POST("/stripe/webhook/", h.Webhook.Stripe)

	api := r.Group("/api")

	api.GET("/ws", h.WS.Notifications)
	api.GET("/ws/conversations/:id", h.WS.Conversation)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.POST("/password-reset", h.Auth.RequestPasswordReset)
		authGroup.POST("/password-reset/confirm", h.Auth.ConfirmPasswordReset)
		authGroup.POST("/verify-email/confirm", h.Auth.ConfirmEmail)
	}

	magic := api.Group("/magic/agreements/:token")
	magic.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit*3, cfg.RateLimitPeriod), middleware.UUIDValidator("token"))
	{
		magic.GET("", h.MagicLink.Get)
		magic.POST("/sign", h.MagicLink.Sign)
		magic.POST("/fund-escrow", h.MagicLink.FundEscrow)
		magic.GET("/pdf", h.MagicLink.DownloadPDF)
		magic.GET("/invoices", h.MagicLink.ListInvoices)
		magic.POST("/invoices/:id/approve", middleware.UUIDValidator("id"), h.MagicLink.ApproveInvoice)
		magic.POST("/invoices/:id/dispute", middleware.UUIDValidator("id"), h.MagicLink.DisputeInvoice)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/auth/me", h.Auth.Me)
		protected.GET("/auth/sessions", h.Auth.ListSessions)
		protected.POST("/auth/verify-email", h.Auth.RequestEmailVerification)

		contractor := protected.Group("/")
		contractor.Use(middleware.RequireRole(string(valueobject.RoleContractor)))
		{
			contractor.GET("/contractors/me", h.Contractor.GetProfile)
			contractor.PATCH("/contractors/me", h.Contractor.UpdateProfile)
			contractor.POST("/contractors/me/onboarding", h.Contractor.StartOnboarding)
			contractor.GET("/contractors/me/onboarding", h.Contractor.OnboardingStatus)
			contractor.GET("/homeowners", h.Contractor.ListHomeowners)
			contractor.POST("/agreements", h.Agreement.Create)
			contractor.POST("/agreements/merge", h.Agreement.Merge)
		}

		protected.GET("/agreements", h.Agreement.List)
		protected.GET("/agreements/:id", middleware.UUIDValidator("id"), h.Agreement.Get)
		protected.POST("/agreements/:id/sign", middleware.UUIDValidator("id"), h.Agreement.Sign)
		protected.POST("/agreements/:id/fund-escrow", middleware.UUIDValidator("id"), h.Agreement.FundEscrow)
		protected.POST("/agreements/:id/amend", middleware.UUIDValidator("id"), h.Agreement.Amend)
		protected.GET("/agreements/:id/amendments", middleware.UUIDValidator("id"), h.Agreement.ListAmendments)
		protected.POST("/agreements/:id/invite", middleware.UUIDValidator("id"), h.Agreement.SendInvite)
		protected.GET("/agreements/:id/pdf", middleware.UUIDValidator("id"), h.Agreement.DownloadPDF)
		protected.GET("/agreements/:id/pdf/preview", middleware.UUIDValidator("id"), h.Agreement.PreviewPDF)
		protected.GET("/agreements/:id/conversation", middleware.UUIDValidator("id"), h.Conversation.ForAgreement)

		protected.POST("/agreements/:id/attachments", middleware.UUIDValidator("id"), h.Attachment.Upload)
		protected.GET("/agreements/:id/attachments", middleware.UUIDValidator("id"), h.Attachment.List)
		protected.GET("/attachments/:id", middleware.UUIDValidator("id"), h.Attachment.Download)
		protected.DELETE("/attachments/:id", middleware.UUIDValidator("id"), h.Attachment.Delete)

		protected.POST("/agreements/:id/expenses", middleware.UUIDValidator("id"), h.Milestone.AddExpense)
		protected.GET("/agreements/:id/expenses", middleware.UUIDValidator("id"), h.Milestone.Expenses)
		protected.DELETE("/agreements/:id/expenses/:expenseId", middleware.UUIDValidator("id", "expenseId"), h.Milestone.DeleteExpense)

		protected.GET("/calendar", h.Milestone.Calendar)
		protected.POST("/milestones/:id/complete", middleware.UUIDValidator("id"), h.Milestone.Complete)
		protected.POST("/milestones/:id/comments", middleware.UUIDValidator("id"), h.Milestone.AddComment)
		protected.GET("/milestones/:id/comments", middleware.UUIDValidator("id"), h.Milestone.Comments)
		protected.POST("/milestones/:id/files", middleware.UUIDValidator("id"), h.Milestone.AddFile)
		protected.GET("/milestones/:id/files", middleware.UUIDValidator("id"), h.Milestone.Files)

		protected.GET("/invoices", h.Invoice.List)
		protected.GET("/invoices/:id", middleware.UUIDValidator("id"), h.Invoice.Get)
		protected.POST("/invoices/:id/approve", middleware.UUIDValidator("id"), h.Invoice.Approve)
		protected.POST("/invoices/:id/dispute", middleware.UUIDValidator("id"), h.Invoice.Dispute)
		protected.POST("/invoices/:id/mark-paid", middleware.UUIDValidator("id"), h.Invoice.MarkPaid)

		protected.POST("/disputes", h.Dispute.CreateDispute)
		protected.GET("/disputes", h.Dispute.ListDisputes)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), h.Dispute.GetDispute)
		protected.POST("/disputes/:id/pay-fee", middleware.UUIDValidator("id"), h.Dispute.PayFee)
		protected.POST("/disputes/:id/attachments", middleware.UUIDValidator("id"), h.Dispute.AddAttachment)
		protected.GET("/disputes/:id/attachments", middleware.UUIDValidator("id"), h.Dispute.ListAttachments)

		protected.GET("/conversations", h.Conversation.ListMine)
		protected.GET("/conversations/:conversationId/messages", middleware.UUIDValidator("conversationId"), h.Conversation.ListMessages)
		protected.POST("/conversations/:conversationId/messages", middleware.UUIDValidator("conversationId"), h.Conversation.SendMessage)

		protected.GET("/notifications", h.Notification.ListNotifications)
		protected.GET("/notifications/unread/count", h.Notification.CountUnread)
		protected.PUT("/notifications/read-all", h.Notification.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkAsRead)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole(string(valueobject.RoleAdmin)))
		{
			admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), h.Dispute.Resolve)
			admin.GET("/webhooks/failed", h.Admin.FailedWebhooks)
			admin.POST("/invoices/release-due", h.Admin.RunReleaseSweep)
		}
	}

	return r
}
