package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/adapters/storage"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

// ---- conversations ----

type fakeConversations struct {
	mu       sync.Mutex
	rows     map[string]*models.Conversation
	applyErr error
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{rows: map[string]*models.Conversation{}}
}

func (f *fakeConversations) put(c models.Conversation) *models.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.ConversationStatusActive
	}
	f.rows[c.ID] = &c
	cp := c
	return &cp
}

func (f *fakeConversations) get(id string) models.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeConversations) FindOrCreate(_ context.Context, buyerID, sellerID, productID string) (*models.Conversation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.BuyerID == buyerID && c.SellerID == sellerID && c.ProductID == productID {
			cp := *c
			return &cp, false, nil
		}
	}
	now := time.Now().UTC()
	c := &models.Conversation{
		ID:            uuid.NewString(),
		BuyerID:       buyerID,
		SellerID:      sellerID,
		ProductID:     productID,
		Status:        models.ConversationStatusActive,
		RolesAssigned: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.rows[c.ID] = c
	cp := *c
	return &cp, true, nil
}

func (f *fakeConversations) FindByID(_ context.Context, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversations) ListForUser(_ context.Context, userID string, role models.Role, offset, limit int) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.rows {
		if role == models.RoleBuyer && c.BuyerID == userID && !c.DeletedByBuyer {
			out = append(out, *c)
		}
		if role == models.RoleSeller && c.SellerID == userID && !c.DeletedBySeller {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return page(out, offset, limit), nil
}

func (f *fakeConversations) ApplyNewMessage(_ context.Context, id string, receiver models.Role, last models.LastMessage) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.LastMessage = last
	switch receiver {
	case models.RoleBuyer:
		c.BuyerUnread++
	case models.RoleSeller:
		c.SellerUnread++
	default:
		return errors.New("bad receiver")
	}
	c.DeletedByBuyer, c.DeletedBySeller, c.IsDeleted = false, false, false
	c.ReminderStage = 0
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeConversations) ResetUnread(_ context.Context, id string, slot models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.rows[id]
	if slot == models.RoleBuyer {
		c.BuyerUnread = 0
	} else {
		c.SellerUnread = 0
	}
	return nil
}

func (f *fakeConversations) MarkDeletedBy(_ context.Context, id string, slot models.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if slot == models.RoleBuyer {
		c.DeletedByBuyer = true
		c.IsDeleted = c.DeletedBySeller
	} else {
		c.DeletedBySeller = true
		c.IsDeleted = c.DeletedByBuyer
	}
	return c.IsDeleted, nil
}

func (f *fakeConversations) Revive(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.rows[id]
	c.DeletedByBuyer, c.DeletedBySeller, c.IsDeleted = false, false, false
	return nil
}

func (f *fakeConversations) ListReminderCandidates(_ context.Context, cutoff time.Time, after *models.ReminderCursor, limit int) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.rows {
		ts := c.LastMessage.Timestamp
		if c.IsDeleted || ts == nil || ts.After(cutoff) {
			continue
		}
		if after != nil && (ts.Before(after.Timestamp) || (ts.Equal(after.Timestamp) && c.ID <= after.ID)) {
			continue
		}
		if c.BuyerUnread > 0 || c.SellerUnread > 0 {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := *out[i].LastMessage.Timestamp, *out[j].LastMessage.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, 0, limit), nil
}

func (f *fakeConversations) ClaimReminderStage(_ context.Context, id string, current, next int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.rows[id]
	if c.ReminderStage != current {
		return false, nil
	}
	c.ReminderStage = next
	return true, nil
}

// ---- messages ----

type fakeMessages struct {
	mu   sync.Mutex
	rows map[string]*models.Message
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{rows: map[string]*models.Message{}}
}

func (f *fakeMessages) get(id string) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeMessages) Create(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	cp := *msg
	f.rows[msg.ID] = &cp
	return nil
}

func (f *fakeMessages) FindByID(_ context.Context, id string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessages) ListForViewer(_ context.Context, convID, viewerID string, slot models.Role, offset, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.rows {
		if m.ConversationID != convID || m.DeletedFor(slot) {
			continue
		}
		unfinished := m.Status == models.MessageStatusPending || m.Status == models.MessageStatusFailed
		if unfinished && m.SenderID != viewerID {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	out = page(out, offset, limit)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (f *fakeMessages) Transition(_ context.Context, id string, to models.MessageStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok || !m.Status.CanTransitionTo(to) {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (f *fakeMessages) CompleteUpload(_ context.Context, id string, content models.MessageContent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok || m.Status != models.MessageStatusPending {
		return false, nil
	}
	m.Status = models.MessageStatusSent
	m.Content = content
	return true, nil
}

func (f *fakeMessages) MarkConversationRead(_ context.Context, convID, readerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.rows {
		if m.ConversationID != convID || m.SenderID == readerID {
			continue
		}
		if m.Status == models.MessageStatusSent || m.Status == models.MessageStatusDelivered {
			m.Status = models.MessageStatusRead
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) MarkDeletedBy(_ context.Context, id string, slot models.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	markMessageDeleted(m, slot)
	return m.IsDeleted, nil
}

func (f *fakeMessages) MarkConversationDeletedBy(_ context.Context, convID string, slot models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ConversationID == convID {
			markMessageDeleted(m, slot)
		}
	}
	return nil
}

func markMessageDeleted(m *models.Message, slot models.Role) {
	if slot == models.RoleBuyer {
		m.DeletedByBuyer = true
		m.IsDeleted = m.DeletedBySeller
	} else {
		m.DeletedBySeller = true
		m.IsDeleted = m.DeletedByBuyer
	}
}

func (f *fakeMessages) DeletedAttachmentKeys(_ context.Context, convID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for _, m := range f.rows {
		if m.ConversationID == convID && m.IsDeleted && m.Content.ObjectKey != "" {
			keys = append(keys, m.Content.ObjectKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeMessages) DeleteStalePending(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, m := range f.rows {
		if m.Status == models.MessageStatusPending && m.CreatedAt.Before(before) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func page[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

// ---- users & devices ----

type fakeUsers struct {
	users map[string]models.User
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (f *fakeUsers) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeDevices struct {
	mu          sync.Mutex
	devices     []models.UserDevice
	deactivated []string
}

func (f *fakeDevices) Upsert(_ context.Context, d *models.UserDevice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.IsActive = true
	for i := range f.devices {
		if f.devices[i].PushToken == d.PushToken {
			f.devices[i].UserID = d.UserID
			f.devices[i].Platform = d.Platform
			f.devices[i].IsActive = true
			return nil
		}
	}
	f.devices = append(f.devices, *d)
	return nil
}

func (f *fakeDevices) ListActive(_ context.Context, userID string) ([]models.UserDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.UserDevice
	for _, d := range f.devices {
		if d.UserID == userID && d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDevices) Deactivate(_ context.Context, tokens []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range tokens {
		f.deactivated = append(f.deactivated, t)
		for i := range f.devices {
			if f.devices[i].PushToken == t && f.devices[i].IsActive {
				f.devices[i].IsActive = false
				n++
			}
		}
	}
	return n, nil
}

// ---- adapters ----

type fakeBlobStore struct {
	mu      sync.Mutex
	putErr  error
	objects map[string][]byte
	deleted []string
	onPut   func()
	// duration is reported back for every put when set
	duration *float64
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string, _ map[string]string) (storage.StoredObject, error) {
	if f.onPut != nil {
		f.onPut()
	}
	if f.putErr != nil {
		return storage.StoredObject{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.StoredObject{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return storage.StoredObject{
		Key:         key,
		URL:         "http://blobs.test/chat/" + key,
		Size:        int64(len(data)),
		ContentType: contentType,
		DurationSec: f.duration,
	}, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type published struct {
	channel string
	event   string
	payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []published
}

func (f *fakePublisher) Publish(_ context.Context, channel, event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{channel: channel, event: event, payload: payload})
	return nil
}

func (f *fakePublisher) byEvent(event string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, p := range f.events {
		if p.event == event {
			out = append(out, p)
		}
	}
	return out
}

type fakePresence struct {
	active map[string]bool
	err    error
}

func (f *fakePresence) IsActive(_ context.Context, userID, conversationID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.active[userID+"/"+conversationID], nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.MessageEvent
}

func (f *fakeEvents) PublishMessageEvent(_ context.Context, e models.MessageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Send(ctx context.Context, msgs []models.PushNotification) ([]models.PushResult, error) {
	args := m.Called(ctx, msgs)
	if fn, ok := args.Get(0).(func([]models.PushNotification) []models.PushResult); ok {
		return fn(msgs), args.Error(1)
	}
	results, _ := args.Get(0).([]models.PushResult)
	return results, args.Error(1)
}

// okResults accepts every notification.
func okResults(msgs []models.PushNotification) []models.PushResult {
	out := make([]models.PushResult, len(msgs))
	for i, m := range msgs {
		out[i] = models.PushResult{Token: m.To, OK: true}
	}
	return out
}
