package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"courtmaster/internal/domain"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleEvent(kind EventKind) Event {
	return Event{
		Kind:        kind,
		PaymentID:   uuid.New(),
		UserID:      uuid.New(),
		Amount:      decimal.NewFromInt(100000),
		Currency:    "VND",
		TxnRef:      "ABCD1234",
		CourtName:   "San 1",
		BookingDate: "2030-01-01",
		Reason:      "Khách hàng hủy giao dịch",
		Source:      "ipn",
		OccurredAt:  time.Now(),
	}
}

type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) SendMail(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type stubUsers struct {
	user *domain.User
	err  error
}

func (s stubUsers) FindByID(context.Context, uuid.UUID) (*domain.User, error) {
	return s.user, s.err
}

func TestEmailNotifier_Success(t *testing.T) {
	sender := new(MockMailSender)
	users := stubUsers{user: &domain.User{Email: "an@example.com", FullName: "Nguyen Van An"}}
	n := NewEmailNotifier(sender, users)

	sender.On("SendMail", mock.Anything, "an@example.com",
		mock.MatchedBy(func(s string) bool { return s == "Thanh toán thành công - Mã ABCD1234" }),
		mock.AnythingOfType("string"),
	).Return(nil)

	require.NoError(t, n.Notify(context.Background(), sampleEvent(PaymentSucceeded)))
	sender.AssertExpectations(t)
}

func TestEmailNotifier_UserLookupFails(t *testing.T) {
	sender := new(MockMailSender)
	n := NewEmailNotifier(sender, stubUsers{err: domain.ErrUserNotFound})

	err := n.Notify(context.Background(), sampleEvent(PaymentFailed))
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	sender.AssertNotCalled(t, "SendMail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRenderEmail_EscapesAndDescribesFailure(t *testing.T) {
	subject, body := renderEmail(&domain.User{FullName: "<b>An</b>"}, sampleEvent(PaymentFailed))
	assert.Contains(t, subject, "thất bại")
	assert.Contains(t, body, "&lt;b&gt;An&lt;/b&gt;")
	assert.Contains(t, body, "Khách hàng hủy giao dịch")
	assert.Contains(t, body, "100000 VND")
}

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{}, f.err
}

func TestSNSNotifier_PublishesJSON(t *testing.T) {
	client := &fakeSNS{}
	n := NewSNSNotifier(client, "arn:aws:sns:ap-southeast-1:000000000000:payments")
	ev := sampleEvent(PaymentSucceeded)

	require.NoError(t, n.Notify(context.Background(), ev))
	require.NotNil(t, client.input)
	assert.Equal(t, "arn:aws:sns:ap-southeast-1:000000000000:payments", *client.input.TopicArn)
	assert.Equal(t, "payment_succeeded", *client.input.MessageAttributes["event_type"].StringValue)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(*client.input.Message), &decoded))
	assert.Equal(t, ev.PaymentID.String(), decoded["payment_id"])
	assert.Equal(t, "ABCD1234", decoded["txn_ref"])
}

func TestSNSNotifier_EmptyTopic(t *testing.T) {
	err := NewSNSNotifier(&fakeSNS{}, "").Notify(context.Background(), sampleEvent(PaymentSucceeded))
	assert.Error(t, err)
}

type fakeBot struct {
	params *telego.SendMessageParams
	err    error
}

func (f *fakeBot) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.params = p
	return &telego.Message{}, f.err
}

func TestTelegramNotifier(t *testing.T) {
	bot := &fakeBot{}
	n := NewTelegramNotifier(bot, 4242)

	require.NoError(t, n.Notify(context.Background(), sampleEvent(PaymentSucceeded)))
	require.NotNil(t, bot.params)
	assert.Equal(t, int64(4242), bot.params.ChatID.ID)
	assert.Contains(t, bot.params.Text, "ABCD1234")
	assert.Contains(t, bot.params.Text, "San 1")

	bot.err = errors.New("forbidden")
	assert.Error(t, n.Notify(context.Background(), sampleEvent(PaymentFailed)))
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, Event) error {
	c.calls++
	return c.err
}

func TestMulti_JoinsErrors(t *testing.T) {
	ok := &countingNotifier{}
	bad := &countingNotifier{err: errors.New("smtp down")}

	err := Multi{bad, ok}.Notify(context.Background(), sampleEvent(PaymentSucceeded))
	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, bad.calls)
}

type memoryStore struct {
	keys map[string]bool
	err  error
}

func (m *memoryStore) SetNX(ctx context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	if m.err != nil {
		return redis.NewBoolResult(false, m.err)
	}
	if m.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	m.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestDeduped_SendsOnce(t *testing.T) {
	next := &countingNotifier{}
	store := &memoryStore{keys: map[string]bool{}}
	d := NewDeduped(next, store, time.Hour, zap.NewNop())
	ev := sampleEvent(PaymentSucceeded)

	require.NoError(t, d.Notify(context.Background(), ev))
	require.NoError(t, d.Notify(context.Background(), ev))
	assert.Equal(t, 1, next.calls)

	// a different kind for the same payment is a separate message
	ev.Kind = PaymentFailed
	require.NoError(t, d.Notify(context.Background(), ev))
	assert.Equal(t, 2, next.calls)
}

func TestDeduped_ReleasesMarkerOnFailure(t *testing.T) {
	next := &countingNotifier{err: errors.New("timeout")}
	store := &memoryStore{keys: map[string]bool{}}
	d := NewDeduped(next, store, time.Hour, zap.NewNop())
	ev := sampleEvent(PaymentSucceeded)

	assert.Error(t, d.Notify(context.Background(), ev))
	assert.Empty(t, store.keys)

	next.err = nil
	require.NoError(t, d.Notify(context.Background(), ev))
	assert.Equal(t, 2, next.calls)
}

func TestDeduped_FailsOpenWhenRedisDown(t *testing.T) {
	next := &countingNotifier{}
	d := NewDeduped(next, &memoryStore{err: errors.New("dial tcp: refused")}, time.Hour, zap.NewNop())

	require.NoError(t, d.Notify(context.Background(), sampleEvent(PaymentSucceeded)))
	assert.Equal(t, 1, next.calls)
}
