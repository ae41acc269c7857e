package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0x01}, 64)...)

func pngBody() io.Reader {
	return bytes.NewReader(pngBytes)
}

func strPtr(s string) *string { return &s }

func TestSendText(t *testing.T) {
	env := newTestEnv(t)
	env.acceptPushes()
	ctx := context.Background()
	conv := env.conversation(t)

	msg, err := env.messages.SendText(ctx, models.SendTextRequest{ConversationID: conv.ID, SenderID: buyerID, Text: "  Hi there  "})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
	assert.Equal(t, models.MessageTypeText, msg.MessageType)
	assert.Equal(t, "Hi there", msg.Content.Text)
	assert.Equal(t, models.RoleBuyer, msg.Metadata.SenderRole)
	assert.NotZero(t, msg.Metadata.CreatedTimestamp)

	// fan-out reaches both participants with role context
	sent := env.pub.byEvent(models.EventSendMessage)
	require.Len(t, sent, 2)
	assert.ElementsMatch(t, []string{buyerID, sellerID}, []string{sent[0].channel, sent[1].channel})
	event := sent[0].payload.(models.SendMessageEvent)
	assert.Equal(t, msg.ID, event.MessageID)
	assert.Equal(t, models.RoleBuyer, event.RoleContext.SenderRole)
	assert.Equal(t, buyerID, event.RoleContext.BuyerID)
	assert.Equal(t, sellerID, event.RoleContext.SellerID)

	// push goes to the seller only
	pushes := env.pushesTo(sellerToken)
	require.Len(t, pushes, 1)
	assert.Equal(t, "Amara Kamara", pushes[0].Title)
	assert.Equal(t, "Hi there", pushes[0].Body)
	assert.Equal(t, map[string]string{
		"type":           "new_message",
		"conversationId": conv.ID,
		"senderId":       buyerID,
		"messageType":    "text",
	}, pushes[0].Data)
	assert.Empty(t, env.pushesTo(buyerToken))

	require.Len(t, env.events.events, 1)
	assert.Equal(t, models.MessageEventSent, env.events.events[0].Type)
	assert.Equal(t, sellerID, env.events.events[0].ReceiverID)
}

func TestSendText_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t)

	_, err := env.messages.SendText(ctx, models.SendTextRequest{ConversationID: conv.ID, SenderID: buyerID, Text: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.messages.SendText(ctx, models.SendTextRequest{ConversationID: conv.ID, SenderID: buyerID, Text: strings.Repeat("a", models.MaxTextRunes+1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.messages.SendText(ctx, models.SendTextRequest{ConversationID: conv.ID, SenderID: outsiderID, Text: "hello"})
	assert.ErrorIs(t, err, ErrPermission)

	_, err = env.messages.SendText(ctx, models.SendTextRequest{ConversationID: "missing", SenderID: buyerID, Text: "hello"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, env.msgs.rows)
	env.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendText_PresenceSuppressesPush(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t)
	env.presence.active[sellerID+"/"+conv.ID] = true

	_, err := env.messages.SendText(ctx, models.SendTextRequest{ConversationID: conv.ID, SenderID: buyerID, Text: "you there?"})
	require.NoError(t, err)

	env.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.Len(t, env.pub.byEvent(models.EventSendMessage), 2)
}

func TestSendText_SideEffectFailuresAreSwallowed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t)

	env.convs.applyErr = errors.New("db down")
	env.pub.err = errors.New("redis down")
	env.gateway.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("expo down"))

	msg, err := env.messages.SendText(ctx, models.SendTextRequest{ConversationID: conv.ID, SenderID: sellerID, Text: "Yes"})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, env.msgs.get(msg.ID).Status)
	assert.Equal(t, 0, env.convs.get(conv.ID).BuyerUnread)
}

func TestReplyResolution(t *testing.T) {
	env := newTestEnv(t)
	env.acceptPushes()
	ctx := context.Background()
	conv := env.conversation(t)
	other := env.convs.put(models.Conversation{BuyerID: buyerID, SellerID: sellerID, ProductID: "other", RolesAssigned: true})

	original, err := env.messages.SendText(ctx, models.SendTextRequest{ConversationID: conv.ID, SenderID: buyerID, Text: "Price?"})
	require.NoError(t, err)
	foreign, err := env.messages.SendText(ctx, models.SendTextRequest{ConversationID: other.ID, SenderID: buyerID, Text: "Other"})
	require.NoError(t, err)

	reply, err := env.messages.SendText(ctx, models.SendTextRequest{
		ConversationID: conv.ID, SenderID: sellerID, Text: "50k", ReplyToMessageID: strPtr(original.ID),
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, original.ID, *reply.ReplyToID)

	dropped, err := env.messages.SendText(ctx, models.SendTextRequest{
		ConversationID: conv.ID, SenderID: sellerID, Text: "huh", ReplyToMessageID: strPtr(foreign.ID),
	})
	require.NoError(t, err)
	assert.Nil(t, dropped.ReplyToID)

	missing, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: sellerID, MessageType: models.MessageTypeVoice, ReplyToMessageID: strPtr("nope"),
	})
	require.NoError(t, err)
	assert.Nil(t, missing.ReplyToID)
}

func TestPlaceholderAndAttach(t *testing.T) {
	env := newTestEnv(t)
	env.acceptPushes()
	ctx := context.Background()
	conv := env.conversation(t)

	_, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeText,
	})
	assert.ErrorIs(t, err, ErrValidation)

	msg, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeImage,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusPending, msg.Status)

	// nothing reaches the conversation or the receiver before the upload
	assert.Nil(t, env.convs.get(conv.ID).LastMessage.Timestamp)
	sellerView, err := env.messages.List(ctx, conv.ID, models.MessageListQuery{UserID: sellerID})
	require.NoError(t, err)
	assert.Empty(t, sellerView)
	buyerView, err := env.messages.List(ctx, conv.ID, models.MessageListQuery{UserID: buyerID})
	require.NoError(t, err)
	assert.Len(t, buyerView, 1)

	sent, err := env.messages.AttachContent(ctx, msg.ID, AttachRequest{
		SenderID: buyerID, Body: pngBody(), Size: int64(len(pngBytes)),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, sent.Status)
	assert.Equal(t, "image/png", sent.Content.MimeType)
	assert.Equal(t, int64(len(pngBytes)), sent.Content.Size)
	assert.NotEmpty(t, sent.Content.SizeLabel)
	assert.True(t, strings.HasPrefix(sent.Content.ObjectKey, "conversations/"+conv.ID+"/"+msg.ID+"/"))
	assert.True(t, strings.HasSuffix(sent.Content.ObjectKey, ".png"))
	assert.Equal(t, pngBytes, env.blobs.objects[sent.Content.ObjectKey])

	stored := env.convs.get(conv.ID)
	assert.Equal(t, "📷 Photo", stored.LastMessage.Text)
	assert.Equal(t, 1, stored.SellerUnread)
	assert.Equal(t, models.MessageStatusSent, env.msgs.get(msg.ID).Status)

	pushes := env.pushesTo(sellerToken)
	require.Len(t, pushes, 1)
	assert.Equal(t, "📷 Photo", pushes[0].Body)
	assert.Equal(t, "image", pushes[0].Data["messageType"])

	// a sent message cannot be uploaded again
	_, err = env.messages.AttachContent(ctx, msg.ID, AttachRequest{SenderID: buyerID, Body: pngBody(), Size: int64(len(pngBytes))})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAttach_CaptionPreview(t *testing.T) {
	env := newTestEnv(t)
	env.acceptPushes()
	ctx := context.Background()
	conv := env.conversation(t)

	msg, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: sellerID, MessageType: models.MessageTypeImage, Caption: "Brand new",
	})
	require.NoError(t, err)

	sent, err := env.messages.AttachContent(ctx, msg.ID, AttachRequest{
		SenderID: sellerID, Body: pngBody(), Size: int64(len(pngBytes)), MimeType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Brand new", sent.Content.Caption)
	assert.Equal(t, "📷 Brand new", env.convs.get(conv.ID).LastMessage.Text)
	assert.Equal(t, 1, env.convs.get(conv.ID).BuyerUnread)
}

func TestAttach_UploadFailureAndRetry(t *testing.T) {
	env := newTestEnv(t)
	env.acceptPushes()
	ctx := context.Background()
	conv := env.conversation(t)

	msg, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeVoice,
	})
	require.NoError(t, err)
	before := env.convs.get(conv.ID)

	env.blobs.putErr = errors.New("connection reset")
	duration := 12.5
	failed, err := env.messages.AttachContent(ctx, msg.ID, AttachRequest{
		SenderID: buyerID, Body: strings.NewReader("OggS-audio"), Size: 10, MimeType: "audio/ogg", DurationHint: &duration,
	})
	assert.ErrorIs(t, err, ErrUpload)
	require.NotNil(t, failed)
	assert.Equal(t, models.MessageStatusFailed, failed.Status)
	assert.Equal(t, models.MessageStatusFailed, env.msgs.get(msg.ID).Status)

	after := env.convs.get(conv.ID)
	assert.Equal(t, before.LastMessage, after.LastMessage)
	assert.Equal(t, before.UnreadCounts(), after.UnreadCounts())
	assert.Empty(t, env.pub.byEvent(models.EventSendMessage))
	env.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	// retry goes failed -> pending -> sent
	env.blobs.putErr = nil
	sent, err := env.messages.AttachContent(ctx, msg.ID, AttachRequest{
		SenderID: buyerID, Body: strings.NewReader("OggS-audio"), Size: 10, MimeType: "audio/ogg", DurationHint: &duration,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, sent.Status)
	require.NotNil(t, sent.Content.DurationSec)
	assert.Equal(t, 12.5, *sent.Content.DurationSec)
	assert.Equal(t, "🎵 Voice message", env.convs.get(conv.ID).LastMessage.Text)
}

func TestAttach_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t)

	msg, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeDocument,
	})
	require.NoError(t, err)

	_, err = env.messages.AttachContent(ctx, msg.ID, AttachRequest{SenderID: sellerID, Body: strings.NewReader("%PDF"), Size: 4})
	assert.ErrorIs(t, err, ErrPermission)

	_, err = env.messages.AttachContent(ctx, msg.ID, AttachRequest{SenderID: buyerID, Body: strings.NewReader("%PDF"), Size: 4, MimeType: "application/pdf"})
	assert.ErrorIs(t, err, ErrValidation, "documents need a file name")

	_, err = env.messages.AttachContent(ctx, msg.ID, AttachRequest{SenderID: buyerID, Body: strings.NewReader(""), Size: 0, FileName: "a.pdf"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.messages.AttachContent(ctx, msg.ID, AttachRequest{SenderID: buyerID, Body: strings.NewReader("x"), Size: 2 << 20, FileName: "a.pdf"})
	assert.ErrorIs(t, err, ErrValidation)

	// validation failures leave the placeholder retryable
	assert.Equal(t, models.MessageStatusPending, env.msgs.get(msg.ID).Status)
	assert.Empty(t, env.blobs.objects)

	_, err = env.messages.AttachContent(ctx, "missing", AttachRequest{SenderID: buyerID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttach_Document(t *testing.T) {
	env := newTestEnv(t)
	env.acceptPushes()
	ctx := context.Background()
	conv := env.conversation(t)

	msg, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: sellerID, MessageType: models.MessageTypeDocument,
	})
	require.NoError(t, err)

	sent, err := env.messages.AttachContent(ctx, msg.ID, AttachRequest{
		SenderID: sellerID, Body: strings.NewReader("%PDF-1.4 invoice"), Size: 16,
		FileName: "invoice.PDF", MimeType: "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "invoice.PDF", sent.Content.FileName)
	assert.Equal(t, "pdf", sent.Content.Extension)
	assert.Equal(t, "📄 invoice.PDF", env.convs.get(conv.ID).LastMessage.Text)
}

func TestAttach_LostRaceDeletesObject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t)

	msg, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeImage,
	})
	require.NoError(t, err)

	// another request fails the message while this upload is in flight
	env.blobs.onPut = func() {
		_, _ = env.msgs.Transition(ctx, msg.ID, models.MessageStatusFailed)
	}

	_, err = env.messages.AttachContent(ctx, msg.ID, AttachRequest{
		SenderID: buyerID, Body: pngBody(), Size: int64(len(pngBytes)), MimeType: "image/png",
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, env.blobs.objects)
	require.Len(t, env.blobs.deleted, 1)
	assert.Nil(t, env.convs.get(conv.ID).LastMessage.Timestamp)
}

func TestMarkDelivered(t *testing.T) {
	env := newTestEnv(t)
	env.acceptPushes()
	ctx := context.Background()
	conv := env.conversation(t)

	msg, err := env.messages.SendText(ctx, models.SendTextRequest{ConversationID: conv.ID, SenderID: buyerID, Text: "Hi"})
	require.NoError(t, err)

	_, err = env.messages.MarkDelivered(ctx, msg.ID, buyerID)
	assert.ErrorIs(t, err, ErrPermission)
	_, err = env.messages.MarkDelivered(ctx, msg.ID, outsiderID)
	assert.ErrorIs(t, err, ErrPermission)

	got, err := env.messages.MarkDelivered(ctx, msg.ID, sellerID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusDelivered, got.Status)
	assert.Len(t, env.pub.byEvent(models.EventMessageStatus), 2)

	again, err := env.messages.MarkDelivered(ctx, msg.ID, sellerID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusDelivered, again.Status)
	assert.Len(t, env.pub.byEvent(models.EventMessageStatus), 2)

	placeholder, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeVideo,
	})
	require.NoError(t, err)
	_, err = env.messages.MarkDelivered(ctx, placeholder.ID, sellerID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMessageDelete(t *testing.T) {
	env := newTestEnv(t)
	env.acceptPushes()
	ctx := context.Background()
	conv := env.conversation(t)

	placeholder, err := env.messages.CreatePlaceholder(ctx, models.CreatePlaceholderRequest{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeImage,
	})
	require.NoError(t, err)
	msg, err := env.messages.AttachContent(ctx, placeholder.ID, AttachRequest{
		SenderID: buyerID, Body: pngBody(), Size: int64(len(pngBytes)), MimeType: "image/png",
	})
	require.NoError(t, err)

	_, err = env.messages.Delete(ctx, msg.ID, outsiderID)
	assert.ErrorIs(t, err, ErrPermission)

	fully, err := env.messages.Delete(ctx, msg.ID, buyerID)
	require.NoError(t, err)
	assert.False(t, fully)

	buyerView, err := env.messages.List(ctx, conv.ID, models.MessageListQuery{UserID: buyerID})
	require.NoError(t, err)
	assert.Empty(t, buyerView)
	sellerView, err := env.messages.List(ctx, conv.ID, models.MessageListQuery{UserID: sellerID})
	require.NoError(t, err)
	require.Len(t, sellerView, 1)
	assert.Contains(t, env.blobs.objects, msg.Content.ObjectKey)

	fully, err = env.messages.Delete(ctx, msg.ID, sellerID)
	require.NoError(t, err)
	assert.True(t, fully)
	assert.True(t, env.msgs.get(msg.ID).IsDeleted)
	assert.NotContains(t, env.blobs.objects, msg.Content.ObjectKey)

	sellerView, err = env.messages.List(ctx, conv.ID, models.MessageListQuery{UserID: sellerID})
	require.NoError(t, err)
	assert.Empty(t, sellerView)

	_, err = env.messages.Delete(ctx, "missing", buyerID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMessages_Paging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, env.msgs.Create(ctx, &models.Message{
			ConversationID: conv.ID,
			SenderID:       buyerID,
			MessageType:    models.MessageTypeText,
			Content:        models.MessageContent{Text: string(rune('a' + i))},
			Status:         models.MessageStatusSent,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	first, err := env.messages.List(ctx, conv.ID, models.MessageListQuery{UserID: sellerID, Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "d", first[0].Content.Text)
	assert.Equal(t, "e", first[1].Content.Text)

	second, err := env.messages.List(ctx, conv.ID, models.MessageListQuery{UserID: sellerID, Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "b", second[0].Content.Text)

	_, err = env.messages.List(ctx, conv.ID, models.MessageListQuery{UserID: outsiderID})
	assert.ErrorIs(t, err, ErrPermission)
}

func TestReapPlaceholders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t)

	stale := &models.Message{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeImage,
		Status: models.MessageStatusPending, CreatedAt: time.Now().UTC().Add(-25 * time.Hour),
	}
	fresh := &models.Message{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeImage,
		Status: models.MessageStatusPending, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	oldSent := &models.Message{
		ConversationID: conv.ID, SenderID: buyerID, MessageType: models.MessageTypeText,
		Status: models.MessageStatusSent, CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	for _, m := range []*models.Message{stale, fresh, oldSent} {
		require.NoError(t, env.msgs.Create(ctx, m))
	}

	count, err := env.messages.ReapPlaceholders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.NotContains(t, env.msgs.rows, stale.ID)
	assert.Contains(t, env.msgs.rows, fresh.ID)
	assert.Contains(t, env.msgs.rows, oldSent.ID)
}
