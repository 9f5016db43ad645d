package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/payment"
	"github.com/Folau1/WebApp/internal/repository"
)

type fakeOrderRepo struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]*entity.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*entity.Order)}
}

func cloneOrder(o *entity.Order) *entity.Order {
	c := *o
	c.Items = append([]entity.OrderItem(nil), o.Items...)
	return &c
}

func (r *fakeOrderRepo) Create(_ context.Context, o *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Number = r.seq
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) FindByPaymentID(_ context.Context, paymentID string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentID != nil && *o.PaymentID == paymentID {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeOrderRepo) FindByUser(_ context.Context, userID string) ([]entity.Order, error) {
	orders, _, _ := r.List(context.Background(), repository.OrderQuery{UserID: userID})
	return orders, nil
}

func (r *fakeOrderRepo) List(_ context.Context, q repository.OrderQuery) ([]entity.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Order
	for _, o := range r.orders {
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if q.UserID != "" && (o.UserID == nil || *o.UserID != q.UserID) {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, len(out), nil
}

func (r *fakeOrderRepo) AttachPayment(_ context.Context, orderID, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != entity.StatusPending {
		return repository.ErrNotFound
	}
	o.PaymentID = &paymentID
	return nil
}

func (r *fakeOrderRepo) Transition(_ context.Context, orderID string, from, to entity.OrderStatus) (*entity.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	return r.move(o, from, to)
}

func (r *fakeOrderRepo) TransitionByPayment(_ context.Context, orderID, paymentID string, from, to entity.OrderStatus) (*entity.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.PaymentID == nil || *o.PaymentID != paymentID {
		return nil, false, repository.ErrNotFound
	}
	return r.move(o, from, to)
}

func (r *fakeOrderRepo) move(o *entity.Order, from, to entity.OrderStatus) (*entity.Order, bool, error) {
	if o.Status != from {
		return cloneOrder(o), false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return cloneOrder(o), true, nil
}

func (r *fakeOrderRepo) status(id string) entity.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

type fakeProductRepo struct {
	products []entity.Product
	err      error
}

func (r *fakeProductRepo) FindActiveByIDs(_ context.Context, ids []string) ([]entity.Product, error) {
	if r.err != nil {
		return nil, r.err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []entity.Product
	for _, p := range r.products {
		if want[p.ID] && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) FindBySlug(_ context.Context, slug string) (*entity.Product, error) {
	for _, p := range r.products {
		if p.Slug == slug && p.Active {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeProductRepo) List(_ context.Context, q repository.ProductQuery) ([]entity.Product, int, error) {
	var out []entity.Product
	for _, p := range r.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (r *fakeProductRepo) ListCategories(context.Context) ([]entity.Category, error) {
	return []entity.Category{{ID: "c-1", Name: "Mugs", Slug: "mugs", ProductCount: 1}}, nil
}

type fakeDiscountRepo struct {
	byCode map[string]entity.Discount
}

func (r *fakeDiscountRepo) FindByCode(_ context.Context, code string) (*entity.Discount, error) {
	d, ok := r.byCode[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

type fakeEventStore struct {
	mu      sync.Mutex
	streams map[string][]entity.EventStoreRecord
	err     error
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{streams: make(map[string][]entity.EventStoreRecord)}
}

func (s *fakeEventStore) Append(_ context.Context, streamID, streamType string, events []entity.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		s.streams[streamID] = append(s.streams[streamID], entity.EventStoreRecord{
			ID:         uuid.NewString(),
			StreamID:   streamID,
			StreamType: streamType,
			Version:    len(s.streams[streamID]) + 1,
			EventType:  e.EventType(),
			Payload:    payload,
			CreatedAt:  time.Now(),
		})
	}
	return nil
}

func (s *fakeEventStore) LoadEvents(_ context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.EventStoreRecord(nil), s.streams[streamID]...), nil
}

func (s *fakeEventStore) types(streamID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.streams[streamID] {
		out = append(out, r.EventType)
	}
	return out
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []payment.Request
	err      error
	status   *payment.Status
}

func (g *fakeGateway) CreatePayment(_ context.Context, req payment.Request) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	id := "pay-" + req.Metadata["orderId"]
	return &payment.Intent{PaymentID: id, Status: "pending", ConfirmationURL: "https://pay.example/" + id}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, paymentID string) (*payment.Status, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.status != nil {
		return g.status, nil
	}
	return &payment.Status{PaymentID: paymentID, Status: "pending"}, nil
}

type published struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic, key, event})
	return nil
}

type fakeDeduper struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (d *fakeDeduper) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.keys[key], nil
}

func (d *fakeDeduper) Mark(_ context.Context, key string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if d.keys == nil {
		d.keys = make(map[string]bool)
	}
	d.keys[key] = true
	return nil
}
