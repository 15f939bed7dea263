package listener

import (
	"context"
	"errors"
	"io"
	"testing"

	"relatim-chat/event"
	"relatim-chat/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	sent   []SendMessageCommand
	joined []uint
	err    error
}

func (d *fakeDispatcher) SendAs(_ context.Context, senderID, chatID uint, content, messageType string) (*service.MessageView, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.sent = append(d.sent, SendMessageCommand{SenderID: senderID, ChatID: chatID, Content: content, MessageType: messageType})
	return &service.MessageView{ID: uint(len(d.sent)), ChatID: chatID}, nil
}

func (d *fakeDispatcher) JoinChatMembers(_ context.Context, chatID uint) (int, error) {
	d.joined = append(d.joined, chatID)
	return 2, nil
}

func newCommands(d Dispatcher) *Commands {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewCommands(d, log, 0)
}

func TestHandleSendMessage(t *testing.T) {
	d := &fakeDispatcher{}
	err := newCommands(d).Handle(context.Background(), event.Envelope{
		Action: event.ActionSendMessage,
		Data:   []byte(`{"senderId":1,"chatId":100,"content":"hi"}`),
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, SendMessageCommand{SenderID: 1, ChatID: 100, Content: "hi"}, d.sent[0])
}

func TestHandleSendMessageRequiresSender(t *testing.T) {
	d := &fakeDispatcher{}
	err := newCommands(d).Handle(context.Background(), event.Envelope{
		Action: event.ActionSendMessage,
		Data:   []byte(`{"chatId":100,"content":"hi"}`),
	})
	require.Error(t, err)
	assert.Empty(t, d.sent)
}

func TestHandleSendMessageStoreError(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("boom")}
	err := newCommands(d).Handle(context.Background(), event.Envelope{
		Action: event.ActionSendMessage,
		Data:   []byte(`{"senderId":1,"chatId":100,"content":"hi"}`),
	})
	require.Error(t, err)
}

func TestHandleJoinChat(t *testing.T) {
	d := &fakeDispatcher{}
	err := newCommands(d).Handle(context.Background(), event.Envelope{
		Action: event.ActionJoinChat,
		Data:   []byte(`{"chatId":7}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{7}, d.joined)
}

func TestHandleMalformedPayload(t *testing.T) {
	err := newCommands(&fakeDispatcher{}).Handle(context.Background(), event.Envelope{
		Action: event.ActionJoinChat,
		Data:   []byte(`{`),
	})
	require.Error(t, err)
}

func TestHandleUnknownAction(t *testing.T) {
	err := newCommands(&fakeDispatcher{}).Handle(context.Background(), event.Envelope{Action: "nope"})
	assert.NoError(t, err)
}
