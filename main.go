package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"relatim-chat/config"
	"relatim-chat/controller"
	"relatim-chat/database"
	"relatim-chat/event"
	"relatim-chat/event/listener"
	"relatim-chat/metrics"
	"relatim-chat/realtime"
	"relatim-chat/router"
	"relatim-chat/service"
	"relatim-chat/socketio"
	"relatim-chat/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "relatim-chat: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.NewLogger(config.Config("LOG_LEVEL"), config.Config("LOG_FORMAT"))

	if err := run(log); err != nil {
		log.WithError(err).Fatal("relatim-chat stopped")
	}
}

func run(log *logrus.Logger) error {
	metrics.Register()

	db, err := database.Open(log)
	if err != nil {
		return err
	}

	redisClients, err := database.RedisConnect(log)
	if err != nil {
		return err
	}

	enforcer, err := database.Casbin(db)
	if err != nil {
		return err
	}

	events, closeEvents, err := connectEvents(log)
	if err != nil {
		return err
	}
	defer closeEvents()

	issuer := &utils.TokenIssuer{
		AccessKey:     []byte(config.Config("JWT_ACCESS_KEY")),
		RefreshKey:    []byte(config.Config("JWT_REFRESH_KEY")),
		AccessExpire:  time.Duration(config.Int("JWT_ACCESS_EXPIRE")) * time.Minute,
		RefreshExpire: time.Duration(config.Int("JWT_REFRESH_EXPIRE")) * time.Minute,
	}

	users := service.NewUserService(db, log)
	chats := service.NewChatDirectory(db, log)
	messages := service.NewMessageLedger(db, log)
	contacts := service.NewContactService(db, log)
	auth := service.NewAuthService(
		db,
		issuer,
		service.NewRedisTokenStore(redisClients[database.RedisTokens]),
		enforcer,
		config.Config("OTP_ISSUER"),
		log,
	)

	core := realtime.New(realtime.Options{
		Auth:      auth,
		Ledger:    messages,
		Directory: chats,
		Status:    users,
		Events:    events,
		Log:       log,
	})

	timeout := config.Duration("STORE_TIMEOUT")

	if bus, ok := events.(*event.Bus); ok {
		commands := listener.NewCommands(core, log, timeout)
		if err := bus.Subscribe(event.QueueCommands, commands.Handle); err != nil {
			return err
		}
	}

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         false,
		AppName:               "relatim-chat",
	})

	rest.Use(recover.New())
	rest.Use(cors.New(cors.Config{
		AllowOrigins:     config.Config("CORS_ORIGIN"),
		AllowCredentials: true,
	}))

	socket := socketio.Init(rest, core, redisClients[database.RedisAdapter], log)

	router.Rest(rest, &controller.Controller{
		Auth:     auth,
		Users:    users,
		Chats:    chats,
		Messages: messages,
		Contacts: contacts,
		Core:     core,
		Events:   events,
		Notices:  socket,
		Log:      log,
		Timeout:  timeout,
	}, enforcer, log)
	router.Socket(socket, core, log, timeout)

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%s", config.Config("SERVER_PORT"))
		log.WithField("addr", addr).Info("relatim-chat listening")
		errs <- rest.Listen(addr)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-errs:
		return err
	case s := <-signals:
		log.WithField("signal", s.String()).Info("Shutting down")
	}

	socket.Close()
	if err := rest.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.WithError(err).Warn("HTTP shutdown")
	}
	for _, client := range redisClients {
		client.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}

// connectEvents dials RabbitMQ when RABBITMQ_HOST is set. Without a broker
// domain events are dropped.
func connectEvents(log *logrus.Logger) (event.Publisher, func(), error) {
	if config.Config("RABBITMQ_HOST") == "" {
		log.Info("RabbitMQ disabled")
		return event.Nop{}, func() {}, nil
	}

	var journal *event.Journal
	if config.Config("EVENT_MODE") == "LOG" {
		var err error
		journal, err = event.OpenJournal(filepath.Clean(config.Config("EVENT_LOG_DIR")))
		if err != nil {
			return nil, nil, err
		}
	}

	bus, err := event.Dial(event.Options{
		URL: event.URL(
			config.Config("RABBITMQ_USER"),
			config.Config("RABBITMQ_PASSWORD"),
			config.Config("RABBITMQ_HOST"),
			config.Config("RABBITMQ_PORT"),
		),
		Queues:  []string{event.QueueEvents, event.QueueCommands},
		Journal: journal,
	}, log)
	if err != nil {
		journal.Close()
		return nil, nil, err
	}

	return bus, func() {
		if err := bus.Close(); err != nil {
			log.WithError(err).Warn("Failed to close RabbitMQ connection")
		}
	}, nil
}
