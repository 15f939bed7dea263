package socketio

import (
	"context"
	"strings"
	"time"

	"relatim-chat/config"
	"relatim-chat/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/log"
	"github.com/zishang520/socket.io-go-redis/adapter"
	r_type "github.com/zishang520/socket.io-go-redis/types"
	"github.com/zishang520/socket.io/v2/socket"
)

// Conn adapts a socket.io client to the delivery core.
type Conn struct {
	client *socket.Socket
}

func (c *Conn) ID() string {
	return string(c.client.Id())
}

func (c *Conn) Emit(event string, payload interface{}) error {
	return c.client.Emit(event, payload)
}

type handshakeAuth struct {
	Token string `mapstructure:"token"`
}

type Server struct {
	io  *socket.Server
	log *logrus.Logger
}

// Init mounts socket.io on app. Every connection must present an access
// token in its handshake auth; rejected connections never reach the
// "connection" handlers.
func Init(app *fiber.App, core *realtime.Core, redisClient *redis.Client, logger *logrus.Logger) *Server {
	log.DEBUG = config.Config("LOG_LEVEL") == "debug"

	options := socket.DefaultServerOptions()
	options.SetServeClient(false)
	options.SetAllowEIO3(true)
	options.SetPingInterval(config.Duration("SOCKET_PING_INTERVAL"))
	options.SetPingTimeout(config.Duration("SOCKET_PING_TIMEOUT"))
	options.SetMaxHttpBufferSize(1000000)
	options.SetConnectTimeout(10 * time.Second)
	options.SetAdapter(&adapter.RedisAdapterBuilder{
		Redis: r_type.NewRedisClient(context.Background(), redisClient),
		Opts:  &adapter.RedisAdapterOptions{},
	})

	server := socket.NewServer(nil, nil)

	server.Use(func(client *socket.Socket, next func(*socket.ExtendedError)) {
		ctx, cancel := context.WithTimeout(context.Background(), config.Duration("STORE_TIMEOUT"))
		defer cancel()

		session, err := core.Authenticate(ctx, &Conn{client: client}, Token(client))
		if err != nil {
			next(socket.NewExtendedError("Authentication error", nil))
			return
		}

		client.SetData(session)
		next(nil)
	})

	app.Get("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))
	app.Post("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))

	return &Server{io: server, log: logger}
}

// Token reads the bearer token from the handshake auth payload, falling
// back to the "token" query parameter for older clients.
func Token(client *socket.Socket) string {
	auth := handshakeAuth{}
	if err := mapstructure.WeakDecode(client.Handshake().Auth, &auth); err == nil && auth.Token != "" {
		return strings.TrimPrefix(auth.Token, "Bearer ")
	}

	token, _ := client.Conn().Request().Query().Get("token")
	return strings.TrimPrefix(token, "Bearer ")
}

func (s *Server) IO() *socket.Server {
	return s.io
}

// Broadcast emits to every socket of every node sharing the adapter.
func (s *Server) Broadcast(event string, message any) {
	s.io.FetchSockets()(func(sockets []*socket.RemoteSocket, err error) {
		if err != nil {
			s.log.WithError(err).WithField("event", event).Warn("Failed to fetch sockets")
			return
		}
		for _, socket := range sockets {
			socket.Emit(event, message)
		}
	})
}

func (s *Server) Close() {
	s.io.Close(nil)
}
