package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/trimed/hospital/internal/config"
	"github.com/trimed/hospital/internal/domain/billing"
	"github.com/trimed/hospital/internal/domain/identity"
	"github.com/trimed/hospital/internal/domain/inventory"
	"github.com/trimed/hospital/internal/domain/medical"
	"github.com/trimed/hospital/internal/domain/notifications"
	"github.com/trimed/hospital/internal/domain/patients"
	"github.com/trimed/hospital/internal/domain/scheduling"
	"github.com/trimed/hospital/internal/domain/tenancy"
	"github.com/trimed/hospital/internal/platform/auth"
	"github.com/trimed/hospital/internal/platform/db"
	"github.com/trimed/hospital/internal/platform/middleware"
	"github.com/trimed/hospital/internal/platform/notification"
	"github.com/trimed/hospital/pkg/apperror"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hospital-server",
		Short: "Multi-tenant hospital management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage hospitals",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a hospital and provision its schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			subdomain, _ := cmd.Flags().GetString("subdomain")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := tenancy.NewService(
				tenancy.NewTenantRepoPG(pool),
				tenancy.NewSettingsRepoPG(pool),
				func(ctx context.Context, tenantID string) error {
					return db.CreateTenantSchema(ctx, pool, tenantID, dir)
				},
			)

			t := &tenancy.Tenant{Name: name, Subdomain: subdomain}
			if err := svc.CreateTenant(ctx, t); err != nil {
				return err
			}
			fmt.Printf("Hospital %q created with schema tenant_%s (id %s)\n", t.Name, t.Subdomain, t.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Hospital display name")
	createCmd.Flags().String("subdomain", "", "Subdomain, doubles as the schema suffix")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(createCmd)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user in a hospital",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")
			role, _ := cmd.Flags().GetString("role")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, release, err := db.WithTenantConn(context.Background(), pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.AuthIssuer)
			svc := identity.NewService(identity.NewUserRepoPG(pool), issuer, logger)

			u, err := svc.Register(ctx, identity.RegisterInput{
				Email:     email,
				Password:  password,
				FirstName: firstName,
				LastName:  lastName,
				Role:      role,
			})
			if err != nil {
				return err
			}
			fmt.Printf("User %s created (id %s, role %s)\n", u.Email, u.ID, u.Role)
			return nil
		},
	}
	createCmd.Flags().String("tenant", "default", "Hospital subdomain")
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("first-name", "", "First name")
	createCmd.Flags().String("last-name", "", "Last name")
	createCmd.Flags().String("role", string(auth.RoleSecretary), "Role")
	cmd.AddCommand(createCmd)

	return cmd
}

// schedulingPatients adapts the patients service to what the scheduling
// package expects from a patient directory.
type schedulingPatients struct {
	svc *patients.Service
}

func (d *schedulingPatients) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.svc.PatientExists(ctx, id)
}

func (d *schedulingPatients) PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	p, err := d.svc.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// doctorDirectory adapts the medical service for booking checks.
type doctorDirectory struct {
	svc *medical.Service
}

func (d *doctorDirectory) DoctorBookable(ctx context.Context, id uuid.UUID) (bool, bool, error) {
	doc, err := d.svc.GetDoctor(ctx, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, doc.IsAvailable, nil
}

// settingsHours sources booking hours from the tenant's hospital
// settings, falling back to server config for what settings do not
// carry.
type settingsHours struct {
	tenants *tenancy.Service
	cfg     *config.Config
}

func (h *settingsHours) Hours(ctx context.Context) (scheduling.Hours, error) {
	s, err := h.tenants.GetSettings(ctx)
	if err != nil {
		return scheduling.Hours{}, err
	}

	start, err := config.ParseClock(s.BusinessHoursStart)
	if err != nil {
		return scheduling.Hours{}, err
	}
	end, err := config.ParseClock(s.BusinessHoursEnd)
	if err != nil {
		return scheduling.Hours{}, err
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = h.cfg.Location()
	}

	return scheduling.Hours{
		StartMinutes:       start.Minutes(),
		EndMinutes:         end.Minutes(),
		SlotStepMin:        h.cfg.SlotStepMinutes,
		DefaultDurationMin: s.DefaultConsultationDuration,
		Location:           loc,
	}, nil
}

// settingsTVA sources the default tax rate from hospital settings.
type settingsTVA struct {
	tenants *tenancy.Service
}

func (t *settingsTVA) DefaultTVARate(ctx context.Context) (float64, error) {
	s, err := t.tenants.GetSettings(ctx)
	if err != nil {
		return 0, err
	}
	return s.TVARate, nil
}

// reminderFeed flattens upcoming appointments into the shape the
// notifications service sends reminders from.
type reminderFeed struct {
	sched    *scheduling.Service
	patients *patients.Service
	medical  *medical.Service
	users    *identity.Service
}

func (f *reminderFeed) DueReminders(ctx context.Context, within time.Duration) ([]*notifications.ReminderAppointment, error) {
	appts, err := f.sched.PendingReminders(ctx, within)
	if err != nil {
		return nil, err
	}

	out := make([]*notifications.ReminderAppointment, 0, len(appts))
	for _, a := range appts {
		p, err := f.patients.Get(ctx, a.PatientID)
		if err != nil {
			continue
		}

		r := &notifications.ReminderAppointment{
			ID:            a.ID,
			PatientUserID: p.UserID,
			PatientName:   p.FullName(),
			Phone:         p.Phone,
			StartAt:       a.StartAt,
		}
		if p.Email != nil {
			r.Email = *p.Email
		}
		if doc, err := f.medical.GetDoctor(ctx, a.DoctorID); err == nil {
			if u, err := f.users.Get(ctx, doc.UserID); err == nil {
				r.DoctorName = "Dr " + u.LastName
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *reminderFeed) MarkSent(ctx context.Context, appointmentID uuid.UUID) error {
	return f.sched.MarkReminderSent(ctx, appointmentID)
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Services
	tenancySvc := tenancy.NewService(
		tenancy.NewTenantRepoPG(pool),
		tenancy.NewSettingsRepoPG(pool),
		func(ctx context.Context, tenantID string) error {
			return db.CreateTenantSchema(ctx, pool, tenantID, "./migrations")
		},
	)

	tokenIssuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.AuthIssuer)
	identitySvc := identity.NewService(identity.NewUserRepoPG(pool), tokenIssuer, logger)

	patientSvc := patients.NewService(
		patients.NewPatientRepoPG(pool),
		patients.NewFollowUpRepoPG(pool),
		logger,
	)

	medicalSvc := medical.NewService(
		medical.NewSpecialtyRepoPG(pool),
		medical.NewDoctorRepoPG(pool),
		medical.NewConsultationRepoPG(pool),
		medical.NewPrescriptionRepoPG(pool),
		patientSvc,
		logger,
	)

	schedulingSvc := scheduling.NewService(
		scheduling.NewTypeRepoPG(pool),
		scheduling.NewStatusRepoPG(pool),
		scheduling.NewAppointmentRepoPG(pool),
		&schedulingPatients{svc: patientSvc},
		&doctorDirectory{svc: medicalSvc},
		&settingsHours{tenants: tenancySvc, cfg: cfg},
		logger,
	)

	billingSvc := billing.NewService(
		billing.NewPlanRepoPG(pool),
		billing.NewSubscriptionRepoPG(pool),
		billing.NewFreeTrialRepoPG(pool),
		billing.NewInvoiceRepoPG(pool),
		billing.NewPaymentRepoPG(pool),
		billing.NewCouponRepoPG(pool),
		billing.NewTariffRepoPG(pool),
		patientSvc,
		&settingsTVA{tenants: tenancySvc},
		logger,
	)

	inventorySvc := inventory.NewService(
		inventory.NewCategoryRepoPG(pool),
		inventory.NewMedicationRepoPG(pool),
		inventory.NewMovementRepoPG(pool),
		logger,
	)

	dispatcher := notification.NewDispatcher(
		&notification.LogEmailSender{Logger: logger},
		&notification.LogSMSSender{Logger: logger},
		notification.NewTemplateEngine(),
	)
	notificationSvc := notifications.NewService(
		notifications.NewNotificationRepoPG(pool),
		notifications.NewPreferenceRepoPG(pool),
		dispatcher,
		logger,
	)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	if cfg.IsDev() && cfg.JWTSecret == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}

	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Routes
	identityHandler := identity.NewHandler(identitySvc, logger)
	identityHandler.RegisterPublicRoutes(apiV1)
	identityHandler.RegisterRoutes(apiV1)
	tenancy.NewHandler(tenancySvc, logger).RegisterRoutes(apiV1)
	patients.NewHandler(patientSvc, logger).RegisterRoutes(apiV1)
	medical.NewHandler(medicalSvc, logger).RegisterRoutes(apiV1)
	scheduling.NewHandler(schedulingSvc, logger).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc, logger).RegisterRoutes(apiV1)
	inventory.NewHandler(inventorySvc, logger).RegisterRoutes(apiV1)
	notifications.NewHandler(notificationSvc, logger).RegisterRoutes(apiV1)

	// Appointment reminder loop
	feed := &reminderFeed{
		sched:    schedulingSvc,
		patients: patientSvc,
		medical:  medicalSvc,
		users:    identitySvc,
	}
	go runReminderLoop(ctx, pool, tenancySvc, notificationSvc, feed, logger)

	// Serve
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(":" + cfg.Port)
	}()
	logger.Info().Str("port", cfg.Port).Msg("server started")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// runReminderLoop walks every active hospital on a fixed interval and
// dispatches due appointment reminders within its schema.
func runReminderLoop(ctx context.Context, pool *pgxpool.Pool, tenants *tenancy.Service, svc *notifications.Service, feed *reminderFeed, logger zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			all, _, err := tenants.ListTenants(ctx, 500, 0)
			if err != nil {
				logger.Error().Err(err).Msg("reminder loop: failed to list hospitals")
				continue
			}
			for _, t := range all {
				if !t.IsActive() {
					continue
				}
				tctx, release, err := db.WithTenantConn(ctx, pool, t.Subdomain)
				if err != nil {
					logger.Error().Err(err).Str("tenant", t.Subdomain).Msg("reminder loop: tenant connection failed")
					continue
				}
				sent, err := svc.DispatchReminders(tctx, feed, 24*time.Hour)
				release()
				if err != nil {
					logger.Error().Err(err).Str("tenant", t.Subdomain).Msg("reminder loop: dispatch failed")
					continue
				}
				if sent > 0 {
					logger.Info().Str("tenant", t.Subdomain).Int("sent", sent).Msg("appointment reminders dispatched")
				}
			}
		}
	}
}
