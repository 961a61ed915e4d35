package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/poofware/backoffice-service/internal/config"
	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/utils"
)

// Notifier receives fire-and-forget notices after a commit. Implementations
// must return immediately and never report failures to the caller.
type Notifier interface {
	WorkOrderCompleted(order *models.WorkOrder)
	ChargeFailed(sub *models.Subscription, payment *models.Payment)
}

type NotificationService struct {
	cfg       *config.Config
	customers repositories.CustomerRepository
	twClient  *twilio.RestClient
	sgClient  *sendgrid.Client
	timeout   time.Duration
}

// NewTwilioClient builds a REST client whose requests give up after
// timeout. The Twilio message API takes no context.
func NewTwilioClient(accountSID, authToken string, timeout time.Duration) *twilio.RestClient {
	c := &twclient.Client{Credentials: twclient.NewCredentials(accountSID, authToken)}
	c.SetAccountSid(accountSID)
	c.SetTimeout(timeout)
	return twilio.NewRestClientWithParams(twilio.ClientParams{Client: c})
}

// NewNotificationService accepts nil clients; the matching channel is then
// skipped.
func NewNotificationService(
	cfg *config.Config,
	customers repositories.CustomerRepository,
	twClient *twilio.RestClient,
	sgClient *sendgrid.Client,
) *NotificationService {
	return &NotificationService{
		cfg:       cfg,
		customers: customers,
		twClient:  twClient,
		sgClient:  sgClient,
		timeout:   constants.NotificationTimeout,
	}
}

func (s *NotificationService) WorkOrderCompleted(order *models.WorkOrder) {
	detach("work order completion notice", s.timeout, func(ctx context.Context) error {
		return s.sendWorkOrderCompleted(ctx, order)
	})
}

func (s *NotificationService) ChargeFailed(sub *models.Subscription, payment *models.Payment) {
	detach("failed charge notice", s.timeout, func(ctx context.Context) error {
		return s.sendChargeFailed(ctx, sub, payment)
	})
}

func (s *NotificationService) sendWorkOrderCompleted(ctx context.Context, order *models.WorkOrder) error {
	completed := ""
	if order.CompletedAt != nil {
		loc := utils.LoadLocation(order.TimeZone, constants.DefaultTimeZone)
		completed = order.CompletedAt.In(loc).Format("02/01/2006 15:04")
	}
	return s.deliver(ctx, order.CustomerID, notice{
		subject: "Trabajo finalizado: " + order.ServiceCategory,
		body:    "Tu orden de trabajo fue finalizada por nuestro equipo.",
		rows: [][2]string{
			{"Orden", order.ID.String()},
			{"Servicio", order.ServiceCategory},
			{"Dirección", order.Address},
			{"Finalizada", completed},
		},
	})
}

func (s *NotificationService) sendChargeFailed(ctx context.Context, sub *models.Subscription, payment *models.Payment) error {
	reason := ""
	if payment.Note != nil {
		reason = *payment.Note
	}
	return s.deliver(ctx, sub.CustomerID, notice{
		subject: "No pudimos cobrar tu suscripción",
		body:    "El cobro de tu suscripción fue rechazado. Actualizá tu medio de pago para evitar la suspensión del servicio.",
		rows: [][2]string{
			{"Suscripción", sub.ID.String()},
			{"Monto", payment.Amount.StringFixed(2) + " " + payment.Currency},
			{"Período", payment.PeriodStart.Format("02/01/2006") + " - " + payment.PeriodEnd.Format("02/01/2006")},
			{"Motivo", reason},
		},
	})
}

type notice struct {
	subject string
	body    string
	rows    [][2]string
}

func (n notice) plainText() string {
	var b strings.Builder
	b.WriteString(n.body)
	b.WriteString("\n")
	for _, r := range n.rows {
		fmt.Fprintf(&b, "\n%s: %s", r[0], r[1])
	}
	return b.String()
}

func (n notice) html(name, org string, year int) string {
	var rows strings.Builder
	for _, r := range n.rows {
		fmt.Fprintf(&rows, noticeRowHTML, html.EscapeString(r[0]), html.EscapeString(r[1]))
	}
	return fmt.Sprintf(
		noticeEmailHTML,
		html.EscapeString(n.subject),
		html.EscapeString(name),
		html.EscapeString(n.body),
		rows.String(),
		year,
		html.EscapeString(org),
	)
}

// deliver sends n to the customer over every configured channel. A channel
// failure is logged and does not stop the other one.
func (s *NotificationService) deliver(ctx context.Context, customerID uuid.UUID, n notice) error {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return fmt.Errorf("loading customer %s: %w", customerID, err)
	}
	if customer == nil {
		return fmt.Errorf("%w: %s", utils.ErrCustomerNotFound, customerID)
	}
	log := utils.Logger.WithFields(logrus.Fields{"customerID": customer.ID, "subject": n.subject})
	plain := n.plainText()

	// ---------- Twilio SMS ----------
	if s.twClient != nil && customer.Phone != nil && *customer.Phone != "" {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(*customer.Phone)
		params.SetFrom(s.cfg.LDFlag_TwilioFromPhone)
		params.SetBody(n.subject + " :: " + plain)
		if _, smsErr := s.twClient.Api.CreateMessage(params); smsErr != nil {
			log.WithError(smsErr).Warn("Failed to send SMS notice")
		}
	} else if s.twClient == nil {
		log.Debug("Twilio client is nil, skipping SMS notice")
	}

	// ---------- SendGrid Email ----------
	if s.sgClient == nil {
		log.Debug("SendGrid client is nil, skipping email notice")
		return nil
	}
	org := s.cfg.LDFlag_OrganizationName
	from := mail.NewEmail(org, s.cfg.LDFlag_SendgridFromEmail)
	to := mail.NewEmail(customer.Name, customer.Email)
	msg := mail.NewSingleEmail(from, n.subject, to, plain, n.html(customer.Name, org, time.Now().Year()))
	msg.TrackingSettings = &mail.TrackingSettings{
		ClickTracking: &mail.ClickTrackingSetting{
			Enable: utils.Ptr(false),
		},
	}
	if s.cfg.LDFlag_SendgridSandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	resp, sgErr := s.sgClient.SendWithContext(ctx, msg)
	if sgErr != nil {
		return fmt.Errorf("sendgrid send: %w", sgErr)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	log.Info("Email notice sent")
	return nil
}
