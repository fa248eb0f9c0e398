package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-print-api/internal/dto"
	"github.com/noah-isme/campus-print-api/internal/models"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/jobs"
)

var orderEpoch = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type orderFixture struct {
	svc   *OrderService
	repo  *fakeOrderRepo
	store *fakeStore
	queue *fakeQueue
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	repo := newFakeOrderRepo()
	store := newFakeStore()
	queue := &fakeQueue{}
	intake := NewIntakeService(store, nil, IntakeConfig{MaxFileSizeBytes: testUploadLimit})
	svc := NewOrderService(repo, intake, nil, queue, nil, nil, nil, OrderConfig{})
	svc.now = func() time.Time { return orderEpoch }
	return &orderFixture{svc: svc, repo: repo, store: store, queue: queue}
}

func (f *orderFixture) at(offset time.Duration) {
	f.svc.now = func() time.Time { return orderEpoch.Add(offset) }
}

func validSubmit() dto.SubmitOrderRequest {
	return dto.SubmitOrderRequest{
		SubmitterID: "21CS042",
		Pages:       []int{0, 1, 2, 3},
		Copies:      2,
		Color:       true,
		PaperSize:   models.PaperA4,
		Binding:     models.BindingStaple,
	}
}

func (f *orderFixture) submit(t *testing.T) *dto.SubmitOrderResponse {
	t.Helper()
	res, err := f.svc.Submit(context.Background(), validSubmit(), upload("lab-report.pdf", 64))
	require.NoError(t, err)
	return res
}

func TestOrderSubmitPersistsPricedOrder(t *testing.T) {
	f := newOrderFixture(t)

	res := f.submit(t)

	assert.Equal(t, models.OrderStatusPending, res.Status)
	assert.Regexp(t, `^TRK-[0-9a-f]{32}$`, res.TrackingToken)
	assert.Equal(t, 8, res.Pricing.ColorPages)
	assert.Equal(t, 0, res.Pricing.BWPages)
	assert.Equal(t, 16.0, res.Pricing.Total)
	assert.Equal(t, orderEpoch.Add(30*time.Second), res.CancelDeadline)
	assert.Equal(t, "/orders/"+res.TrackingToken+"/receipt", res.ReceiptURL)

	stored, ok := f.repo.get(res.ID)
	require.True(t, ok)
	assert.Equal(t, models.SubmitterStudent, stored.SubmitterType)
	assert.Equal(t, 4, stored.TotalPages)
	assert.Equal(t, models.PaymentStateUnpaid, stored.PaymentStatus)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, orderEpoch.Add(DefaultUnpaidTTL), *stored.ExpiresAt)
	assert.True(t, f.store.has(stored.StoredFilename))
}

func TestOrderSubmitRejectsInvalidPayload(t *testing.T) {
	f := newOrderFixture(t)
	req := validSubmit()
	req.Copies = 0

	_, err := f.svc.Submit(context.Background(), req, upload("lab-report.pdf", 64))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
	assert.Zero(t, f.repo.size())
	assert.Zero(t, f.store.count())
}

func TestOrderSubmitRejectsUnsupportedFile(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.Submit(context.Background(), validSubmit(), upload("malware.exe", 64))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnsupportedFileType.Code))
	assert.Zero(t, f.repo.size())
}

func TestOrderSubmitRetriesTokenCollision(t *testing.T) {
	f := newOrderFixture(t)
	f.repo.add(models.Order{TrackingToken: "TRK-taken"})
	tokens := []string{"TRK-taken", "TRK-fresh"}
	f.svc.newToken = func() string {
		next := tokens[0]
		tokens = tokens[1:]
		return next
	}

	res := f.submit(t)
	assert.Equal(t, "TRK-fresh", res.TrackingToken)
	assert.Equal(t, 2, f.repo.size())
}

func TestOrderSubmitDiscardsFileWhenPersistFails(t *testing.T) {
	f := newOrderFixture(t)
	f.repo.createErr = errBackendDown

	_, err := f.svc.Submit(context.Background(), validSubmit(), upload("lab-report.pdf", 64))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInternal.Code))
	assert.Zero(t, f.store.count())
	assert.Empty(t, f.queue.jobs)
}

func TestOrderSubmitQueuesDeleteWhenRollbackFails(t *testing.T) {
	f := newOrderFixture(t)
	f.repo.createErr = errBackendDown
	f.store.deleteErr = errBackendDown

	_, err := f.svc.Submit(context.Background(), validSubmit(), upload("lab-report.pdf", 64))
	require.Error(t, err)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, jobs.TypeFileDelete, f.queue.jobs[0].Type)
	assert.NotEmpty(t, f.queue.jobs[0].Payload)
}

func TestOrderSubmitConcurrentTokensAreUnique(t *testing.T) {
	f := newOrderFixture(t)
	const n = 50

	var wg sync.WaitGroup
	tokens := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := validSubmit()
			req.SubmitterID = fmt.Sprintf("roll-%d", i)
			res, err := f.svc.Submit(context.Background(), req, upload("lab-report.pdf", 8))
			if err != nil {
				errs <- err
				return
			}
			tokens <- res.TrackingToken
		}(i)
	}
	wg.Wait()
	close(tokens)
	close(errs)

	for err := range errs {
		t.Fatalf("submit failed: %v", err)
	}
	seen := map[string]struct{}{}
	for token := range tokens {
		_, dup := seen[token]
		assert.False(t, dup, "duplicate token %s", token)
		seen[token] = struct{}{}
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, f.repo.size())
}

func TestOrderCancelWindow(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		wantErr *appErrors.Error
	}{
		{name: "29 seconds", elapsed: 29 * time.Second},
		{name: "exactly 30 seconds", elapsed: 30 * time.Second},
		{name: "31 seconds", elapsed: 31 * time.Second, wantErr: appErrors.ErrCancelWindowExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrderFixture(t)
			res := f.submit(t)
			stored, _ := f.repo.get(res.ID)

			f.at(tc.elapsed)
			out, err := f.svc.Cancel(context.Background(), res.TrackingToken, CancelContext{})
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, appErrors.IsCode(err, tc.wantErr.Code))
				assert.Equal(t, 1, f.repo.size())
				assert.True(t, f.store.has(stored.StoredFilename))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, res.TrackingToken, out.TrackingToken)
			assert.Zero(t, f.repo.size())
			assert.False(t, f.store.has(stored.StoredFilename))
		})
	}
}

func TestOrderCancelRejectsNonPendingOrders(t *testing.T) {
	for _, status := range []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			f := newOrderFixture(t)
			res := f.submit(t)
			f.repo.orders[res.ID].Status = status

			f.at(5 * time.Second)
			_, err := f.svc.Cancel(context.Background(), res.TrackingToken, CancelContext{})
			require.Error(t, err)
			assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidState.Code))
			assert.Equal(t, 1, f.repo.size())
		})
	}
}

func TestOrderCancelRejectsPaidOrder(t *testing.T) {
	f := newOrderFixture(t)
	res := f.submit(t)
	f.repo.orders[res.ID].PaymentStatus = models.PaymentStatePaid
	stored, _ := f.repo.get(res.ID)

	f.at(5 * time.Second)
	_, err := f.svc.Cancel(context.Background(), res.TrackingToken, CancelContext{})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidState.Code))
	assert.Equal(t, 1, f.repo.size())
	assert.True(t, f.store.has(stored.StoredFilename))
}

func TestOrderCancelChecksOwnership(t *testing.T) {
	f := newOrderFixture(t)
	res := f.submit(t)

	_, err := f.svc.Cancel(context.Background(), res.TrackingToken, CancelContext{SubmitterID: "someone-else"})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))

	_, err = f.svc.Cancel(context.Background(), "TRK-missing", CancelContext{})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestOrderAdvanceStatus(t *testing.T) {
	admin := AdminContext{UserID: "1", Role: models.RoleAdmin}

	t.Run("follows the lifecycle", func(t *testing.T) {
		f := newOrderFixture(t)
		res := f.submit(t)

		view, err := f.svc.AdvanceStatus(context.Background(), res.ID, "processing", admin)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusProcessing, view.Status)
		assert.NotNil(t, view.EstimatedCompletion)

		view, err = f.svc.AdvanceStatus(context.Background(), res.ID, "COMPLETED", admin)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCompleted, view.Status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := newOrderFixture(t)
		res := f.submit(t)

		_, err := f.svc.AdvanceStatus(context.Background(), res.ID, "archived", admin)
		require.Error(t, err)
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidStatus.Code))
		stored, _ := f.repo.get(res.ID)
		assert.Equal(t, models.OrderStatusPending, stored.Status)
	})

	t.Run("rejects leaving a terminal status", func(t *testing.T) {
		f := newOrderFixture(t)
		res := f.submit(t)
		f.repo.orders[res.ID].Status = models.OrderStatusCompleted

		_, err := f.svc.AdvanceStatus(context.Background(), res.ID, "pending", admin)
		require.Error(t, err)
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code))
	})

	t.Run("same status on a finished order keeps its timestamp", func(t *testing.T) {
		f := newOrderFixture(t)
		res := f.submit(t)
		f.repo.orders[res.ID].Status = models.OrderStatusCompleted
		before, _ := f.repo.get(res.ID)

		f.at(48 * time.Hour)
		view, err := f.svc.AdvanceStatus(context.Background(), res.ID, "completed", admin)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCompleted, view.Status)
		after, _ := f.repo.get(res.ID)
		assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	})

	t.Run("requires admin role", func(t *testing.T) {
		f := newOrderFixture(t)
		res := f.submit(t)

		_, err := f.svc.AdvanceStatus(context.Background(), res.ID, "processing", AdminContext{Role: models.RoleFaculty})
		assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
	})

	t.Run("missing order", func(t *testing.T) {
		f := newOrderFixture(t)
		_, err := f.svc.AdvanceStatus(context.Background(), 99, "processing", admin)
		assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
	})
}
