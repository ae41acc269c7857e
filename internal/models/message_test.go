package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageStatusTransitions(t *testing.T) {
	allowed := [][2]MessageStatus{
		{MessageStatusPending, MessageStatusSent},
		{MessageStatusPending, MessageStatusFailed},
		{MessageStatusFailed, MessageStatusPending},
		{MessageStatusSent, MessageStatusDelivered},
		{MessageStatusDelivered, MessageStatusRead},
	}
	for _, tr := range allowed {
		assert.True(t, tr[0].CanTransitionTo(tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]MessageStatus{
		{MessageStatusSent, MessageStatusPending},
		{MessageStatusSent, MessageStatusRead},
		{MessageStatusFailed, MessageStatusSent},
		{MessageStatusRead, MessageStatusDelivered},
		{MessageStatusPending, MessageStatusRead},
	}
	for _, tr := range denied {
		assert.False(t, tr[0].CanTransitionTo(tr[1]), "%s -> %s", tr[0], tr[1])
	}

	assert.True(t, MessageStatusRead.IsTerminal())
	assert.False(t, MessageStatusFailed.IsTerminal())
}

func TestSourcesOf(t *testing.T) {
	assert.Equal(t, []MessageStatus{MessageStatusPending}, SourcesOf(MessageStatusSent))
	assert.Equal(t, []MessageStatus{MessageStatusFailed}, SourcesOf(MessageStatusPending))
	assert.Equal(t, []MessageStatus{MessageStatusDelivered}, SourcesOf(MessageStatusRead))
}

func TestMessageTypeClassification(t *testing.T) {
	assert.False(t, MessageTypeText.IsMedia())
	assert.True(t, MessageTypeDocument.IsMedia())
	assert.False(t, MessageType("sticker").IsMedia())
	assert.True(t, MessageTypeVoice.HasDuration())
	assert.False(t, MessageTypeImage.HasDuration())
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		content MessageContent
		want    string
	}{
		{"text verbatim", MessageTypeText, MessageContent{Text: "Is this still available?"}, "Is this still available?"},
		{"image with caption", MessageTypeImage, MessageContent{Caption: "front view"}, "📷 front view"},
		{"image without caption", MessageTypeImage, MessageContent{}, "📷 Photo"},
		{"video without caption", MessageTypeVideo, MessageContent{Caption: "  "}, "🎥 Video"},
		{"voice", MessageTypeVoice, MessageContent{Caption: "ignored"}, "🎵 Voice message"},
		{"document", MessageTypeDocument, MessageContent{FileName: "invoice.pdf"}, "📄 invoice.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.content.Preview(tt.msgType))
		})
	}
}

func TestPreviewTruncatesLongText(t *testing.T) {
	long := strings.Repeat("é", 300)
	got := MessageContent{Text: long}.Preview(MessageTypeText)
	assert.Equal(t, maxPreviewRunes, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestContentValidate(t *testing.T) {
	assert.NoError(t, MessageContent{Text: "hi"}.Validate(MessageTypeText))
	assert.Error(t, MessageContent{Text: "   "}.Validate(MessageTypeText))
	assert.Error(t, MessageContent{Text: strings.Repeat("a", MaxTextRunes+1)}.Validate(MessageTypeText))

	image := MessageContent{URL: "http://blob/a.jpg", Size: 10, MimeType: "image/jpeg"}
	assert.NoError(t, image.Validate(MessageTypeImage))
	assert.Error(t, MessageContent{Size: 10, MimeType: "image/jpeg"}.Validate(MessageTypeImage))

	doc := MessageContent{URL: "http://blob/a.pdf", Size: 10, MimeType: "application/pdf"}
	assert.Error(t, doc.Validate(MessageTypeDocument))
	doc.FileName = "a.pdf"
	assert.NoError(t, doc.Validate(MessageTypeDocument))

	assert.Error(t, image.Validate(MessageType("sticker")))
}
