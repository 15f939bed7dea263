package router

import (
	"context"
	"errors"
	"time"

	"relatim-chat/realtime"
	"relatim-chat/socketio"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/socket.io/v2/socket"
)

// Socket binds the realtime events of every authenticated connection to
// the delivery core.
func Socket(server *socketio.Server, core *realtime.Core, log *logrus.Logger, timeout time.Duration) {
	server.IO().On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		session, ok := client.Data().(*realtime.Session)
		if !ok {
			client.Disconnect(true)
			return
		}

		client.On(realtime.EventSendMessage, func(args ...interface{}) {
			req := realtime.SendMessageRequest{}
			if err := decodeArgs(args, &req); err != nil {
				log.WithError(err).WithField("conn_id", session.ID()).Debug("Malformed send_message")
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			core.SendMessage(ctx, session, req)
		})

		client.On(realtime.EventTypingStart, func(args ...interface{}) {
			req := realtime.TypingRequest{}
			if err := decodeArgs(args, &req); err != nil {
				return
			}
			core.Typing(session, req.ChatID, true)
		})

		client.On(realtime.EventTypingStop, func(args ...interface{}) {
			req := realtime.TypingRequest{}
			if err := decodeArgs(args, &req); err != nil {
				return
			}
			core.Typing(session, req.ChatID, false)
		})

		client.On("disconnect", func(...interface{}) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			core.Disconnect(ctx, session)
		})

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := core.Activate(ctx, session); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"conn_id": session.ID(),
				"user_id": session.UserID(),
			}).Warn("Failed to activate realtime session")
			client.Disconnect(true)
		}
	})
}

// decodeArgs decodes the first event argument. Numbers sent as strings are
// accepted.
func decodeArgs(args []interface{}, out interface{}) error {
	if len(args) == 0 {
		return errNoPayload
	}
	return mapstructure.WeakDecode(args[0], out)
}

var errNoPayload = errors.New("event without payload")
