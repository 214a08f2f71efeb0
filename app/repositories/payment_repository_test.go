package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"spark/app/models/payment"
	"spark/pkg/database/dbtest"
	"spark/pkg/payment/types"
)

func newPending(phone, checkoutID string) *payment.Payment {
	return &payment.Payment{
		PhoneNumber:       phone,
		Amount:            1500,
		TicketType:        "Regular (Ages 21-28)",
		MerchantRequestID: "m-" + checkoutID,
		CheckoutRequestID: checkoutID,
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := NewPaymentRepository(dbtest.NewSQLite(t))
	ctx := context.Background()

	p := newPending("254712345678", "ws_CO_1")
	require.NoError(t, repo.Create(ctx, p))
	assert.Len(t, p.ID, 36)
	assert.Equal(t, payment.StatusPending, p.Status)

	got, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.IsPending())
	assert.Nil(t, got.MpesaReceiptNumber)

	_, err = repo.GetByCheckoutRequestID(ctx, "ws_CO_missing")
	assert.ErrorIs(t, err, types.ErrPaymentNotFound)
}

func TestCreateRejectsDuplicateCheckout(t *testing.T) {
	repo := NewPaymentRepository(dbtest.NewSQLite(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newPending("254712345678", "ws_CO_1")))
	assert.Error(t, repo.Create(ctx, newPending("254712345678", "ws_CO_1")))
}

func TestCreateValidates(t *testing.T) {
	repo := NewPaymentRepository(dbtest.NewSQLite(t))
	p := newPending("254712345678", "ws_CO_1")
	p.TicketType = "Backstage"
	assert.Error(t, repo.Create(context.Background(), p))
}

func TestCountByPhoneSince(t *testing.T) {
	db := dbtest.NewSQLite(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newPending("254712345678", "ws_CO_1")))
	require.NoError(t, repo.Create(ctx, newPending("254712345678", "ws_CO_2")))
	require.NoError(t, repo.Create(ctx, newPending("254799999999", "ws_CO_3")))

	old := newPending("254712345678", "ws_CO_old")
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(old).Error)

	n, err := repo.CountByPhoneSince(ctx, "254712345678", time.Now().Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSettleOnlyOnce(t *testing.T) {
	repo := NewPaymentRepository(dbtest.NewSQLite(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newPending("254712345678", "ws_CO_1")))

	receipt, date := "NLJ7RT61SV", "20250301123015"
	ok, err := repo.Settle(ctx, "ws_CO_1", types.Settlement{
		Status:          payment.StatusCompleted,
		ResultCode:      0,
		ResultDesc:      "The service request is processed successfully.",
		ReceiptNumber:   &receipt,
		TransactionDate: &date,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Settle(ctx, "ws_CO_1", types.Settlement{Status: payment.StatusFailed, ResultCode: 1032})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.True(t, got.IsCompleted())
	require.NotNil(t, got.MpesaReceiptNumber)
	assert.Equal(t, receipt, *got.MpesaReceiptNumber)
	require.NotNil(t, got.ResultCode)
	assert.Equal(t, 0, *got.ResultCode)

	ok, err = repo.Settle(ctx, "ws_CO_unknown", types.Settlement{Status: payment.StatusFailed})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPing(t *testing.T) {
	repo := NewPaymentRepository(dbtest.NewSQLite(t))
	assert.NoError(t, repo.Ping(context.Background()))
}

func newMockRepo(t *testing.T) (*PaymentRepository, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewPaymentRepository(db), mock
}

func TestStorageErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	boom := errors.New("connection reset")

	mock.ExpectQuery(`SELECT \* FROM "payments"`).WillReturnError(boom)
	_, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, types.ErrPaymentNotFound)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "payments"`).WillReturnError(boom)
	_, err = repo.CountByPhoneSince(ctx, "254712345678", time.Now())
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec(`UPDATE "payments"`).WillReturnError(boom)
	_, err = repo.Settle(ctx, "ws_CO_1", types.Settlement{Status: payment.StatusFailed})
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}
