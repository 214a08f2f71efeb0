package bootstrap

import (
	"strings"
	"time"

	"spark/app/http/controllers/api/health"
	paymentController "spark/app/http/controllers/api/v1/payment"
	receiptController "spark/app/http/controllers/api/v1/receipt"
	"spark/app/repositories"
	"spark/pkg/app"
	"spark/pkg/config"
	"spark/pkg/daraja"
	"spark/pkg/database"
	"spark/pkg/limiter"
	"spark/pkg/logger"
	"spark/pkg/payment"
	"spark/pkg/payment/mpesa"
	"spark/pkg/payment/types"
	"spark/pkg/queue"
	"spark/pkg/receipt"
	"spark/routes"
)

// DarajaConfig reads the mpesa config group
func DarajaConfig() daraja.Config {
	return daraja.Config{
		BaseURL:          config.GetString("mpesa.base_url"),
		ConsumerKey:      config.GetString("mpesa.consumer_key"),
		ConsumerSecret:   config.GetString("mpesa.consumer_secret"),
		ShortCode:        config.GetString("mpesa.shortcode"),
		Passkey:          config.GetString("mpesa.passkey"),
		CallbackURL:      config.GetString("mpesa.callback_url"),
		AccountReference: config.GetString("mpesa.account_reference"),
		Timeout:          time.Duration(config.GetInt("mpesa.timeout", 30)) * time.Second,
	}
}

// SetupPayment wires the ledger, limiter, notifier and controllers. q is the
// receipt queue and may be nil.
func SetupPayment(q *queue.QueueService) routes.Handlers {
	repo := repositories.NewPaymentRepository(database.DB)

	dcfg := DarajaConfig()
	if missing := dcfg.Missing(); len(missing) > 0 {
		// the service still starts; initiation answers 500 until these are set
		logger.WarnString("Payment", "Config", "mpesa settings missing: "+strings.Join(missing, ", "))
	}

	phoneLimiter := limiter.NewPhoneLimiter(
		repo,
		time.Duration(config.GetInt("mpesa.rate_limit_window_minutes", 5))*time.Minute,
		config.GetInt64("mpesa.rate_limit_max", limiter.DefaultPhoneMaxAttempts),
		config.GetBool("mpesa.rate_limit_fail_open", true),
	)

	secret := config.GetString("receipt.internal_secret")
	var notifier types.Notifier
	if q != nil {
		notifier = q
	} else {
		notifier = receipt.NewHTTPNotifier(
			config.GetString("receipt.url"),
			secret,
			time.Duration(config.GetInt("receipt.timeout", 15))*time.Second,
			true,
		)
	}

	service, err := payment.NewPaymentService(types.ProviderMpesa, dcfg, payment.Options{
		Repository: repo,
		Limiter:    phoneLimiter,
		Notifier:   notifier,
	})
	if err != nil {
		logger.ErrorString("Payment", "Setup", err.Error())
		panic(err)
	}

	verifier := mpesa.NewIPAllowList(config.GetStringSlice("mpesa.allowed_ips"), !app.IsProduction())

	mailer := receipt.NewMailer(receipt.SMTPConfig{
		Host:        config.GetString("mail.host"),
		Port:        config.GetInt("mail.port"),
		Username:    config.GetString("mail.username"),
		Password:    config.GetString("mail.password"),
		FromAddress: config.GetString("mail.from.address"),
		FromName:    config.GetString("mail.from.name"),
	})

	logger.InfoString("Payment", "Setup", "mpesa payments ready against "+dcfg.BaseURL)

	return routes.Handlers{
		Payment: paymentController.NewPaymentController(service, verifier),
		Receipt: receiptController.NewReceiptController(mailer),
		Health:  health.NewHealthController(repo, q),
	}
}
