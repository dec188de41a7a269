// Command refera is the headless client for the platform: it drives the paid
// registration flow and basic session operations against a backend, by
// default the local sandbox.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/refera-net/refera/internal/api"
	"github.com/refera-net/refera/internal/config"
	"github.com/refera-net/refera/internal/gateway"
	"github.com/refera-net/refera/internal/infra"
	"github.com/refera-net/refera/internal/logging"
	"github.com/refera-net/refera/internal/processor"
	"github.com/refera-net/refera/internal/registration"
	"github.com/refera-net/refera/internal/session"
)

const usage = `usage: refera <command> [flags]

commands:
  register   run the paid registration flow end to end
  login      authenticate and persist the credential pair
  logout     destroy the current session
  whoami     print the identity for the persisted session
  stats      print the referral dashboard summary
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	app, cleanup, err := buildApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()
	switch os.Args[1] {
	case "register":
		err = app.register(ctx, os.Args[2:])
	case "login":
		err = app.login(ctx, os.Args[2:])
	case "logout":
		err = app.manager.Logout(ctx)
	case "whoami":
		err = app.whoami(ctx)
	case "stats":
		err = app.stats(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliApp struct {
	logger    *slog.Logger
	api       *api.Client
	manager   *session.Manager
	confirmer processor.Confirmer
}

// buildApp wires the client stack: credential store, gateway, API client,
// session manager and payment confirmer.
func buildApp(cfg config.Config) (*cliApp, func(), error) {
	logger := logging.New(cfg.LogLevel)
	cleanup := func() {}

	var store session.CredentialStore = session.NewFileStore(cfg.CredentialsFile)
	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect redis: %w", err)
		}
		cleanup = func() { cache.Close() }
		store = session.NewRedisStore(cache)
	}

	gw := gateway.New(cfg.APIBaseURL, session.NewTokenSource(store), logger)
	apic := api.NewClient(gw)

	return &cliApp{
		logger:    logger,
		api:       apic,
		manager:   session.NewManager(apic, store, logger),
		confirmer: processor.NewHTTPConfirmer(cfg.ProcessorURL),
	}, cleanup, nil
}

func (a *cliApp) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	var draft registration.Draft
	fs.StringVar(&draft.Username, "username", "", "desired username")
	fs.StringVar(&draft.Email, "email", "", "email address")
	fs.StringVar(&draft.Password, "password", "", "password")
	fs.StringVar(&draft.ConfirmPassword, "confirm-password", "", "password confirmation (defaults to -password)")
	fs.StringVar(&draft.ReferralCode, "referral-code", "", "sponsor's referral code")

	var card processor.CardForm
	fs.StringVar(&card.Number, "card-number", "4242424242424242", "card number")
	fs.StringVar(&card.Expiry, "card-expiry", "12/30", "card expiry MM/YY")
	fs.StringVar(&card.CVC, "card-cvc", "123", "card verification code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if draft.ConfirmPassword == "" {
		draft.ConfirmPassword = draft.Password
	}

	flow := registration.New(a.api, a.confirmer, a.manager, a.logger,
		registration.WithNotify(func(tr registration.Transition) {
			if tr.Err == nil && tr.From != tr.To {
				fmt.Printf("-> %s\n", tr.To)
			}
		}))

	if err := flow.SubmitDetails(ctx, draft); err != nil {
		return describeFlowError(err)
	}
	if err := flow.SubmitPayment(ctx, card); err != nil {
		return describeFlowError(err)
	}

	identity, ok := flow.Identity()
	if !ok {
		return errors.New("registration did not reach an authenticated session")
	}
	fmt.Printf("registered and signed in as %s (referral code %s)\n", identity.Username, identity.ReferralCode)
	return nil
}

// describeFlowError renders a stage-tagged failure with its field errors.
func describeFlowError(err error) error {
	flowErr, ok := registration.AsFlowError(err)
	if !ok {
		return err
	}
	for field, msg := range flowErr.Fields {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
	}
	return fmt.Errorf("registration failed at %s: %s", flowErr.Stage, flowErr.Reason)
}

func (a *cliApp) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	identifier := fs.String("identifier", "", "email or username")
	password := fs.String("password", "", "password")
	totp := fs.String("totp", "", "two-factor code, when the account requires one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	identity, err := a.manager.Login(ctx, *identifier, *password)
	var twoFactor *session.TwoFactorRequiredError
	if errors.As(err, &twoFactor) {
		if *totp == "" {
			return errors.New("this account requires a two-factor code; pass -totp")
		}
		identity, err = a.manager.CompleteTwoFactor(ctx, twoFactor.UserID, *totp)
	}
	if err != nil {
		return err
	}

	fmt.Printf("signed in as %s\n", identity.Username)
	return nil
}

func (a *cliApp) whoami(ctx context.Context) error {
	identity, err := a.manager.RefreshFromServer(ctx)
	if err != nil {
		return err
	}
	if identity == nil {
		fmt.Println("not signed in")
		return nil
	}
	fmt.Printf("%s <%s> role=%s status=%s balance=%s\n",
		identity.Username, identity.Email, identity.Role, identity.Status, identity.Balance)
	return nil
}

func (a *cliApp) stats(ctx context.Context) error {
	stats, err := a.api.GetDashboardStats(ctx)
	if err != nil {
		if a.manager.DropIfUnauthorized(ctx, err) {
			return errors.New("not signed in")
		}
		return err
	}
	fmt.Printf("earnings: %s\nteam size: %d\ndirect referrals: %d\n",
		stats.TotalEarnings, stats.TotalTeamSize, stats.DirectReferrals)
	return nil
}
