// Package app wires repositories, external clients and services together.
// The HTTP server and the admin CLI share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/alert"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/config"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/router"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/legal"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/mail"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/payments"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pdf"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/scheduler"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/storage"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/ws"
)

// JobReleaseDue is the scheduler name of the auto-release sweep.
const JobReleaseDue = "invoices.release_due"

type Repositories struct {
	Users         *repository.UserRepository
	Contractors   *repository.ContractorRepository
	Homeowners    *repository.HomeownerRepository
	Agreements    *repository.AgreementRepository
	Milestones    *repository.MilestoneRepository
	Attachments   *repository.AttachmentRepository
	Invoices      *repository.InvoiceRepository
	Disputes      *repository.DisputeRepository
	Expenses      *repository.ExpenseRepository
	Conversations *repository.ConversationRepository
	Notifications *repository.NotificationRepository
	Webhooks      *repository.WebhookEventRepository
}

type Services struct {
	Tokens        *service.TokenManager
	Auth          *service.AuthService
	Notifications *service.NotificationService
	Contractors   *service.ContractorService
	Agreements    *service.AgreementService
	Documents     *service.DocumentService
	Attachments   *service.AttachmentService
	Milestones    *service.MilestoneService
	Invoices      *service.InvoiceService
	Disputes      *service.DisputeService
	Chat          *service.ChatService
	Webhooks      *service.WebhookService
}

// App is the assembled backend.
type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Hub    *ws.Hub
	Repos  Repositories
	Svc    Services
}

// New builds every component on top of an open database.
func New(cfg *config.Config, conn *sqlx.DB) (*App, error) {
	catalog, err := legal.Default()
	if err != nil {
		return nil, fmt.Errorf("app: legal catalog: %w", err)
	}
	files, err := storage.NewDocumentStorage(cfg.DocumentStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		return nil, fmt.Errorf("app: document storage: %w", err)
	}

	repos := Repositories{
		Users:         repository.NewUserRepository(conn),
		Contractors:   repository.NewContractorRepository(conn),
		Homeowners:    repository.NewHomeownerRepository(conn),
		Agreements:    repository.NewAgreementRepository(conn),
		Milestones:    repository.NewMilestoneRepository(conn),
		Attachments:   repository.NewAttachmentRepository(conn),
		Invoices:      repository.NewInvoiceRepository(conn),
		Disputes:      repository.NewDisputeRepository(conn),
		Expenses:      repository.NewExpenseRepository(conn),
		Conversations: repository.NewConversationRepository(conn),
		Notifications: repository.NewNotificationRepository(conn),
		Webhooks:      repository.NewWebhookEventRepository(conn),
	}

	mailer := newMailer(cfg)
	alerter := newAlerter(cfg)
	gateway := payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
	hub := ws.NewHub()

	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	access := service.NewAccess(repos.Users, repos.Contractors, repos.Homeowners)
	notifications := service.NewNotificationService(repos.Notifications, hub, mailer, repos.Users, repos.Contractors, repos.Homeowners)
	documents := service.NewDocumentService(
		repos.Agreements, repos.Milestones, repos.Attachments, repos.Contractors,
		repos.Users, repos.Homeowners, access, pdf.NewAssembler(catalog), files,
	)
	disputes := service.NewDisputeService(repos.Disputes, repos.Agreements, repos.Milestones, access, gateway, files, notifications, cfg.DisputeFee)

	svc := Services{
		Tokens:        tokens,
		Auth:          service.NewAuthService(repos.Users, service.RepositoryProfiles{Contractors: repos.Contractors, Homeowners: repos.Homeowners}, tokens, mailer, cfg.FrontendURL),
		Notifications: notifications,
		Contractors:   service.NewContractorService(repos.Contractors, repos.Homeowners, repos.Users, access, gateway, cfg.FrontendURL),
		Agreements: service.NewAgreementService(
			repos.Agreements, repos.Milestones, repos.Homeowners, access, catalog,
			gateway, notifications, mailer, documents, cfg.FrontendURL,
		),
		Documents:   documents,
		Attachments: service.NewAttachmentService(repos.Attachments, repos.Agreements, access, files),
		Milestones:  service.NewMilestoneService(repos.Milestones, repos.Expenses, repos.Agreements, access, files),
		Invoices:    service.NewInvoiceService(repos.Invoices, repos.Agreements, repos.Contractors, access, gateway, notifications, cfg.AutoReleaseWindow),
		Disputes:    disputes,
		Chat:        service.NewChatService(repos.Conversations, repos.Agreements, repos.Contractors, repos.Homeowners, access, hub),
		Webhooks:    service.NewWebhookService(cfg.Stripe.WebhookSecret, repos.Webhooks, repos.Agreements, repos.Contractors, disputes, notifications, alerter),
	}

	return &App{Config: cfg, DB: conn, Hub: hub, Repos: repos, Svc: svc}, nil
}

// Router mounts the HTTP API.
func (a *App) Router() *gin.Engine {
	s := a.Svc
	return router.SetupRouter(a.Config, router.Handlers{
		Auth:         handlers.NewAuthHandler(s.Auth),
		Contractor:   handlers.NewContractorHandler(s.Contractors),
		Agreement:    handlers.NewAgreementHandler(s.Agreements, s.Documents),
		MagicLink:    handlers.NewMagicLinkHandler(s.Agreements, s.Documents, s.Invoices),
		Attachment:   handlers.NewAttachmentHandler(s.Attachments),
		Milestone:    handlers.NewMilestoneHandler(s.Milestones),
		Invoice:      handlers.NewInvoiceHandler(s.Invoices),
		Dispute:      handlers.NewDisputeHandler(s.Disputes),
		Conversation: handlers.NewConversationHandler(s.Chat),
		Notification: handlers.NewNotificationHandler(s.Notifications),
		WS:           handlers.NewWSHandler(a.Hub, s.Tokens, s.Chat, a.Config.AllowedOrigins),
		Webhook:      handlers.NewWebhookHandler(s.Webhooks),
		Admin:        handlers.NewAdminHandler(a.Repos.Webhooks, s.Invoices),
		Health:       handlers.NewHealthHandler(a.DB),
	}, s.Tokens)
}

// Scheduler registers the periodic jobs. The caller starts and stops it.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(10 * time.Minute)
	err := sched.Add(JobReleaseDue, a.Config.AutoReleaseSchedule, func(ctx context.Context) error {
		released, err := a.Svc.Invoices.ReleaseDue(ctx)
		if err != nil {
			return err
		}
		if released > 0 {
			logger.L().WithField("released", released).Info("auto-release sweep")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("app: schedule %s: %w", JobReleaseDue, err)
	}
	return sched, nil
}

func newMailer(cfg *config.Config) mail.Mailer {
	if cfg.SMTP.Host == "" {
		logger.L().Warn("SMTP_HOST not set, emails are only logged")
		return mail.LogMailer{}
	}
	return mail.New(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

func newAlerter(cfg *config.Config) alert.Alerter {
	if cfg.Slack.BotToken == "" || cfg.Slack.ChannelID == "" {
		return alert.LogOnly{}
	}
	return alert.NewSlack(cfg.Slack.BotToken, cfg.Slack.ChannelID)
}
