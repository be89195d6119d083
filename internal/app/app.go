// Package app assembles OrderPipe from its components and runs it until the
// context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/api"
	"github.com/BTreeMap/OrderPipe/internal/catalog"
	"github.com/BTreeMap/OrderPipe/internal/contact"
	"github.com/BTreeMap/OrderPipe/internal/flow"
	"github.com/BTreeMap/OrderPipe/internal/lockfile"
	"github.com/BTreeMap/OrderPipe/internal/messaging"
	"github.com/BTreeMap/OrderPipe/internal/order"
	"github.com/BTreeMap/OrderPipe/internal/store"
	"github.com/BTreeMap/OrderPipe/internal/telegram"
	"github.com/BTreeMap/OrderPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/OrderPipe/internal/whatsapp"
	"golang.org/x/sync/errgroup"
)

// Transport names.
const (
	TransportTelegram = "telegram"
	TransportWhatsApp = "whatsapp"
)

// ErrTransportClosed is returned when the chat transport stops delivering
// events while the application is still running.
var ErrTransportClosed = errors.New("chat transport closed unexpectedly")

// Config is the immutable runtime configuration.
type Config struct {
	Transport     string
	BotToken      string
	TelegramDebug bool
	PollTimeout   int

	WhatsAppDSN string
	QRPath      string
	NumericCode bool

	OperatorChatID string
	OperatorPhone  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	StateDir      string
	DatabaseDSN   string
	CatalogFile   string
	ImageDir      string
	ContactPolicy contact.Policy
	SinkTimeout   time.Duration

	APIAddr          string
	StrictInvariants bool
}

// Validate reports configuration that prevents startup.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportTelegram:
		if c.BotToken == "" {
			return telegram.ErrMissingToken
		}
	case TransportWhatsApp:
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportTelegram, TransportWhatsApp)
	}
	if _, err := contact.ParsePolicy(string(c.ContactPolicy)); err != nil {
		return err
	}
	return nil
}

func (c Config) twilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != "" && c.OperatorPhone != ""
}

// Run locks the state directory, opens the order log and the chat transport,
// then serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	lock, err := lockfile.AcquireLock(cfg.StateDir, cfg.Transport)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.New(store.WithDSN(cfg.DatabaseDSN))
	if err != nil {
		return fmt.Errorf("failed to open order log: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("app.Run: closing store failed", "error", err)
		}
	}()

	svc, closeTransport, err := openTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeTransport()

	return Serve(ctx, cfg, svc, st)
}

// openTransport connects the configured chat transport.
func openTransport(ctx context.Context, cfg Config) (messaging.Service, func(), error) {
	switch cfg.Transport {
	case TransportWhatsApp:
		var opts []whatsapp.Option
		if cfg.WhatsAppDSN != "" {
			opts = append(opts, whatsapp.WithDBDSN(cfg.WhatsAppDSN))
		}
		if cfg.QRPath != "" {
			opts = append(opts, whatsapp.WithQRCodeOutput(cfg.QRPath))
		}
		if cfg.NumericCode {
			opts = append(opts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect whatsapp: %w", err)
		}
		return messaging.NewWhatsAppService(client, cfg.ImageDir), client.Disconnect, nil
	default:
		opts := []telegram.Option{telegram.WithToken(cfg.BotToken), telegram.WithDebug(cfg.TelegramDebug)}
		if cfg.PollTimeout > 0 {
			opts = append(opts, telegram.WithPollTimeout(cfg.PollTimeout))
		}
		bot, err := telegram.NewClient(opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect telegram: %w", err)
		}
		slog.Info("app.openTransport: telegram bot authorized", "username", bot.Username())
		return messaging.NewTelegramService(bot, cfg.ImageDir), func() {}, nil
	}
}

// notifyTargets builds the operator notification targets. Missing
// destinations only degrade the service.
func notifyTargets(cfg Config, svc messaging.Service) []order.Target {
	var targets []order.Target
	if cfg.OperatorChatID != "" {
		targets = append(targets, order.Target{Name: cfg.Transport, Notifier: svc, Destination: cfg.OperatorChatID})
	} else {
		slog.Warn("app.notifyTargets: no operator destination configured, orders will not be forwarded")
	}
	if cfg.twilioEnabled() {
		tw, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(cfg.TwilioAccountSID),
			twiliowhatsapp.WithAuthToken(cfg.TwilioAuthToken),
			twiliowhatsapp.WithFromNumber(cfg.TwilioFromNumber),
		)
		if err != nil {
			slog.Error("app.notifyTargets: twilio disabled", "error", err)
		} else {
			targets = append(targets, order.Target{Name: "twilio", Notifier: tw, Destination: cfg.OperatorPhone})
		}
	}
	return targets
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	slog.Info("app.loadCatalog: catalog loaded", "path", path, "models", cat.Len())
	return cat, nil
}

// Serve runs the conversation over svc with st as the order log until ctx
// is cancelled or the transport closes.
func Serve(ctx context.Context, cfg Config, svc messaging.Service, st store.Store) error {
	cat, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}

	var dispatchOpts []order.Option
	if cfg.SinkTimeout > 0 {
		dispatchOpts = append(dispatchOpts, order.WithSinkTimeout(cfg.SinkTimeout))
	}
	dispatcher := order.NewDispatcher(st, notifyTargets(cfg, svc), dispatchOpts...)

	policy := cfg.ContactPolicy
	if policy == "" {
		policy = contact.DefaultPolicy
	}
	orders := flow.NewOrderFlow(cat, svc, dispatcher, flow.WithContactParser(contact.NewParser(policy)))
	router := messaging.NewEventRouter(orders,
		messaging.WithDedup(st),
		messaging.WithStrictInvariants(cfg.StrictInvariants),
	)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		router.Run(gctx, svc.Events())
		if gctx.Err() != nil {
			return nil
		}
		return ErrTransportClosed
	})
	g.Go(func() error {
		<-gctx.Done()
		return svc.Stop()
	})
	if cfg.APIAddr != "" {
		server := api.NewServer(orders.Sessions(), st, api.WithAddr(cfg.APIAddr))
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	slog.Info("app.Serve: OrderPipe running", "transport", cfg.Transport, "policy", policy, "models", cat.Len(), "api", cfg.APIAddr != "")
	err = g.Wait()
	slog.Info("app.Serve: OrderPipe stopped", "error", err)
	return err
}
