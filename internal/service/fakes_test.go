package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/internal/repository"
	"github.com/noah-isme/campus-print-api/pkg/jobs"
	"github.com/noah-isme/campus-print-api/pkg/storage"
)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	modified  map[string]time.Time
	storeErr  error
	deleteErr error
	listErr   error
	deletes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, modified: map[string]time.Time{}}
}

func (f *fakeStore) put(key string, body []byte, modified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	f.modified[key] = modified
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeStore) Store(_ context.Context, key string, r io.Reader, _ string) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; ok {
		return storage.ErrObjectExists
	}
	f.objects[key] = body
	f.modified[key] = time.Now()
	return nil
}

func (f *fakeStore) Fetch(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(f.objects, key)
	delete(f.modified, key)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	return f.has(key), nil
}

func (f *fakeStore) List(_ context.Context) ([]storage.Object, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	objects := make([]storage.Object, 0, len(f.objects))
	for key, body := range f.objects {
		objects = append(objects, storage.Object{Key: key, Size: int64(len(body)), ModifiedAt: f.modified[key]})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// fakeOrderRepo keeps orders in memory and enforces unique tracking tokens.
type fakeOrderRepo struct {
	mu        sync.Mutex
	nextID    int64
	orders    map[int64]*models.Order
	createErr error
	// sweepErrs fails DeleteSweepable for specific order ids.
	sweepErrs map[int64]error
	creates   int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[int64]*models.Order{}}
}

func (r *fakeOrderRepo) add(order models.Order) *models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	order.ID = r.nextID
	stored := order
	r.orders[order.ID] = &stored
	return &stored
}

func (r *fakeOrderRepo) get(id int64) (models.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return *o, true
}

func (r *fakeOrderRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *fakeOrderRepo) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.orders {
		if existing.TrackingToken == order.TrackingToken {
			return repository.ErrDuplicateToken
		}
	}
	r.nextID++
	order.ID = r.nextID
	stored := *order
	r.orders[order.ID] = &stored
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) FindByToken(_ context.Context, token string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.TrackingToken == token {
			copied := *o
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeOrderRepo) FindLatestBySubmitter(_ context.Context, submitterID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Order
	for _, o := range r.orders {
		if o.SubmitterID != submitterID {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) || (o.CreatedAt.Equal(latest.CreatedAt) && o.ID > latest.ID) {
			latest = o
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeOrderRepo) Transition(_ context.Context, id int64, decide func(current *models.Order) (models.OrderStatus, error), now time.Time) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	current := *o
	next, err := decide(&current)
	if err != nil {
		return nil, err
	}
	if next != o.Status {
		o.Status = next
		o.UpdatedAt = now
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) DeleteIf(_ context.Context, token string, check func(current *models.Order) error) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.orders {
		if o.TrackingToken != token {
			continue
		}
		current := *o
		if err := check(&current); err != nil {
			return nil, err
		}
		delete(r.orders, id)
		return &current, nil
	}
	return nil, sql.ErrNoRows
}

func (r *fakeOrderRepo) sorted() []models.Order {
	orders := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		orders = append(orders, *o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

func (r *fakeOrderRepo) List(_ context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Order
	all := r.sorted()
	for i := len(all) - 1; i >= 0; i-- {
		o := all[i]
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.SubmitterID != "" && o.SubmitterID != filter.SubmitterID {
			continue
		}
		matched = append(matched, o)
	}
	start := (filter.Page - 1) * filter.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func sweepable(o *models.Order, criteria models.SweepCriteria) bool {
	terminal := o.Status.Terminal() && o.UpdatedAt.Before(criteria.TerminalBefore)
	expired := o.Status == models.OrderStatusPending && o.PaymentStatus == models.PaymentStateUnpaid &&
		o.ExpiresAt != nil && o.ExpiresAt.Before(criteria.ExpiredBefore)
	return terminal || expired
}

func (r *fakeOrderRepo) FindSweepable(_ context.Context, criteria models.SweepCriteria) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.sorted() {
		if o.ID <= criteria.AfterID || !sweepable(&o, criteria) {
			continue
		}
		out = append(out, o)
		if criteria.Limit > 0 && len(out) == criteria.Limit {
			break
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) DeleteSweepable(_ context.Context, id int64, criteria models.SweepCriteria) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sweepErrs[id]; err != nil {
		return "", err
	}
	o, ok := r.orders[id]
	if !ok || !sweepable(o, criteria) {
		return "", sql.ErrNoRows
	}
	delete(r.orders, id)
	return o.StoredFilename, nil
}

func (r *fakeOrderRepo) StoredFilenamesIn(_ context.Context, keys []string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	referenced := map[string]struct{}{}
	for _, key := range keys {
		for _, o := range r.orders {
			if o.StoredFilename == key {
				referenced[key] = struct{}{}
			}
		}
	}
	return referenced, nil
}

type fakePaymentRepo struct {
	orders   *fakeOrderRepo
	mu       sync.Mutex
	payments []models.Payment
}

func (p *fakePaymentRepo) Record(ctx context.Context, token string, build func(order *models.Order) (*models.Payment, error)) (*models.Payment, error) {
	p.orders.mu.Lock()
	defer p.orders.mu.Unlock()
	for _, o := range p.orders.orders {
		if o.TrackingToken != token {
			continue
		}
		current := *o
		payment, err := build(&current)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		payment.ID = int64(len(p.payments) + 1)
		payment.OrderID = o.ID
		p.payments = append(p.payments, *payment)
		p.mu.Unlock()
		o.PaymentStatus = models.PaymentStatePaid
		return payment, nil
	}
	return nil, sql.ErrNoRows
}

func (p *fakePaymentRepo) LatestForOrder(_ context.Context, orderID int64) (*models.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.payments) - 1; i >= 0; i-- {
		if p.payments[i].OrderID == orderID {
			payment := p.payments[i]
			return &payment, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (p *fakePaymentRepo) List(_ context.Context, page, pageSize int) ([]models.PaymentListItem, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]models.PaymentListItem, 0, len(p.payments))
	for _, payment := range p.payments {
		items = append(items, models.PaymentListItem{Payment: payment})
	}
	return items, len(items), nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *fakeQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (a *fakeAudit) Create(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

var errBackendDown = errors.New("backend down")
