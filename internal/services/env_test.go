package services

import (
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

const (
	buyerID    = "buyer-1"
	sellerID   = "seller-1"
	outsiderID = "outsider-1"

	buyerToken  = "ExponentPushToken[buyer-phone]"
	sellerToken = "ExponentPushToken[seller-phone]"
)

type testEnv struct {
	convs    *fakeConversations
	msgs     *fakeMessages
	users    *fakeUsers
	devices  *fakeDevices
	blobs    *fakeBlobStore
	pub      *fakePublisher
	presence *fakePresence
	events   *fakeEvents
	gateway  *mockGateway

	uploads       *UploadService
	notifier      *NotificationService
	conversations *ConversationService
	messages      *MessageService
	reminders     *ReminderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		convs: newFakeConversations(),
		msgs:  newFakeMessages(),
		users: newFakeUsers(
			models.User{ID: buyerID, FirstName: "Amara", LastName: "Kamara"},
			models.User{ID: sellerID, FirstName: "Ibrahim", LastName: "Sesay"},
			models.User{ID: outsiderID, Username: "lurker"},
		),
		devices: &fakeDevices{devices: []models.UserDevice{
			{ID: "d1", UserID: buyerID, PushToken: buyerToken, Platform: models.PlatformAndroid, IsActive: true},
			{ID: "d2", UserID: sellerID, PushToken: sellerToken, Platform: models.PlatformIOS, IsActive: true},
		}},
		blobs:    newFakeBlobStore(),
		pub:      &fakePublisher{},
		presence: &fakePresence{active: map[string]bool{}},
		events:   &fakeEvents{},
		gateway:  &mockGateway{},
	}

	runner := InlineRunner{}
	fanout := NewFanoutService(env.pub)
	env.uploads = NewUploadService(env.blobs, 1<<20)
	env.notifier = NewNotificationService(env.devices, env.users, env.presence, env.gateway)
	env.conversations = NewConversationService(env.convs, env.msgs, env.users, env.uploads, fanout, runner)
	env.messages = NewMessageService(env.convs, env.msgs, env.uploads, fanout, env.notifier, env.events, runner)
	env.reminders = NewReminderService(env.convs, env.notifier, 100)
	return env
}

// acceptPushes makes the gateway accept every notification.
func (e *testEnv) acceptPushes() {
	e.gateway.On("Send", mock.Anything, mock.Anything).
		Return(func(msgs []models.PushNotification) []models.PushResult { return okResults(msgs) }, nil)
}

func (e *testEnv) conversation(t *testing.T) *models.Conversation {
	t.Helper()
	return e.convs.put(models.Conversation{BuyerID: buyerID, SellerID: sellerID, ProductID: "product-1", RolesAssigned: true})
}

// pushesTo returns the notifications sent to token across all gateway calls.
func (e *testEnv) pushesTo(token string) []models.PushNotification {
	var out []models.PushNotification
	for _, call := range e.gateway.Calls {
		if call.Method != "Send" {
			continue
		}
		for _, n := range call.Arguments.Get(1).([]models.PushNotification) {
			if n.To == token {
				out = append(out, n)
			}
		}
	}
	return out
}
