package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradingservice/src/broker"
	"tradingservice/src/model"
)

type stubBroker struct {
	cancelErr error
	cancelled []string
}

func (b *stubBroker) Execute(ctx context.Context, order *model.Order) (*broker.ExecutionResult, error) {
	return nil, errors.New("not used")
}

func (b *stubBroker) Cancel(ctx context.Context, orderID string, symbol string) (bool, error) {
	if b.cancelErr != nil {
		return false, b.cancelErr
	}
	b.cancelled = append(b.cancelled, orderID)
	return true, nil
}

func (b *stubBroker) GetBalance(ctx context.Context, asset string) (float64, error) {
	return 0, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Order{},
		&model.Fill{},
		&model.Position{},
		&model.RiskMetrics{},
	))

	return db
}

func seedOrder(t *testing.T, db *gorm.DB, id string, status string, createdAt time.Time) {
	t.Helper()

	require.NoError(t, db.Create(&model.Order{
		ID:             id,
		ClientID:       "client-1",
		Symbol:         "BTC/USDT",
		Side:           model.OrderSideBuy,
		Type:           model.OrderTypeMarket,
		Qty:            0.01,
		Status:         status,
		IdempotencyKey: "idem-" + id,
		CreatedAt:      createdAt,
	}).Error)
}

func newJob(db *gorm.DB, b broker.Broker, now time.Time) *Reconcile {
	return &Reconcile{
		Log:    logger.WithField("cmd", "reconcile"),
		DB:     db,
		Broker: b,
		Config: &Config{StaleAfter: 10 * time.Minute, Timeout: 30 * time.Second},
		now:    func() time.Time { return now },
	}
}

func orderStatus(t *testing.T, db *gorm.DB, id string) string {
	t.Helper()

	var order model.Order
	require.NoError(t, db.Where("id = ?", id).First(&order).Error)
	return order.Status
}

func TestReconcileCancelsStuckOrders(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	seedOrder(t, db, "ord_stale001", model.OrderStatusAccepted, now.Add(-time.Hour))
	seedOrder(t, db, "ord_stale002", model.OrderStatusPending, now.Add(-30*time.Minute))
	seedOrder(t, db, "ord_fresh001", model.OrderStatusAccepted, now.Add(-time.Minute))
	seedOrder(t, db, "ord_filled01", model.OrderStatusFilled, now.Add(-time.Hour))

	b := &stubBroker{}
	require.NoError(t, newJob(db, b, now).Start())

	assert.ElementsMatch(t, []string{"ord_stale001", "ord_stale002"}, b.cancelled)
	assert.Equal(t, model.OrderStatusCancelled, orderStatus(t, db, "ord_stale001"))
	assert.Equal(t, model.OrderStatusCancelled, orderStatus(t, db, "ord_stale002"))

	// fresh and terminal orders stay untouched
	assert.Equal(t, model.OrderStatusAccepted, orderStatus(t, db, "ord_fresh001"))
	assert.Equal(t, model.OrderStatusFilled, orderStatus(t, db, "ord_filled01"))
}

func TestReconcileKeepsOrderWhenBrokerCancelFails(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	seedOrder(t, db, "ord_stale001", model.OrderStatusAccepted, now.Add(-time.Hour))

	b := &stubBroker{cancelErr: errors.New("exchange unavailable")}
	require.NoError(t, newJob(db, b, now).Start())

	assert.Equal(t, model.OrderStatusAccepted, orderStatus(t, db, "ord_stale001"))
}

func TestReconcileSnapshotsRiskMetrics(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	// 1 BTC bought at 100, 0.5 sold at 100: net outflow of 50 today
	require.NoError(t, db.Create(&model.Fill{
		ID: "fill_0000001", OrderID: "ord_00000001", Symbol: "BTC/USDT",
		Side: model.OrderSideBuy, Qty: 1, Price: 100, ClientID: "client-1", Timestamp: now,
	}).Error)
	require.NoError(t, db.Create(&model.Fill{
		ID: "fill_0000002", OrderID: "ord_00000002", Symbol: "BTC/USDT",
		Side: model.OrderSideSell, Qty: 0.5, Price: 100, ClientID: "client-1", Timestamp: now,
	}).Error)
	require.NoError(t, db.Create(&model.Position{
		Symbol: "BTC/USDT", Qty: 0.5, AvgPrice: 100, Notional: 50,
	}).Error)

	require.NoError(t, newJob(db, &stubBroker{}, now).Start())

	var metrics model.RiskMetrics
	require.NoError(t, db.Where("date = ?", model.MetricsDate(now)).First(&metrics).Error)
	assert.InDelta(t, 50, metrics.DailyLossUSD, 1e-9)
	assert.InDelta(t, 50, metrics.TotalPositionUSD, 1e-9)
}
