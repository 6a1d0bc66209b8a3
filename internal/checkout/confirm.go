package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/angelmondragon/cartline-backend/internal/cart"
	"github.com/angelmondragon/cartline-backend/internal/notifications"
	"github.com/angelmondragon/cartline-backend/internal/orders"
	"github.com/angelmondragon/cartline-backend/internal/pricing"
	"github.com/angelmondragon/cartline-backend/pkg/db"
	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/outbox"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var errCheckoutInProgress = pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")

// confirmation carries the state accumulated while one order is confirmed.
type confirmation struct {
	input     ConfirmInput
	customer  CustomerDetails
	user      *models.User
	cart      *models.Cart
	order     *models.Order
	merchants map[uuid.UUID]models.Merchant
	groups    []pricing.MerchantGroup
	warnings  []string
	state     enums.CheckoutState
}

// Confirm turns the user's cart into an order. Persistence happens in one
// transaction before any notification is sent or the cart is emptied; side
// effects that fail afterwards are reported as warnings.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*Result, error) {
	started := s.now()
	if s.logg != nil {
		ctx = s.logg.WithUserID(ctx, input.UserID.String())
	}
	run := &confirmation{input: input}

	result, err := s.confirm(ctx, run)
	if err != nil {
		s.transition(ctx, run, enums.CheckoutStateFailed)
		s.metrics.ObserveConfirmDuration(false, s.now().Sub(started))
		return nil, err
	}
	s.metrics.IncConfirmed(result.Replayed)
	s.metrics.ObserveConfirmDuration(true, s.now().Sub(started))
	return result, nil
}

func (s *service) confirm(ctx context.Context, run *confirmation) (*Result, error) {
	s.transition(ctx, run, enums.CheckoutStateValidating)
	if replay, err := s.validate(ctx, run); err != nil || replay != nil {
		return replay, err
	}

	s.transition(ctx, run, enums.CheckoutStateEnriching)
	if err := s.enrich(ctx, run); err != nil {
		return nil, err
	}

	s.transition(ctx, run, enums.CheckoutStatePersisting)
	if err := s.persist(ctx, run); err != nil {
		if replay, ok := s.replayAfterRace(ctx, run, err); ok {
			return replay, nil
		}
		return nil, err
	}

	return s.finish(ctx, run, false), nil
}

// finish runs the steps that follow the commit of run.order: queued
// notifications, merchant linking and release of the cart claim.
func (s *service) finish(ctx context.Context, run *confirmation, replayed bool) *Result {
	// The order is durable from here on; a dropped client must not stop the
	// remaining side effects.
	ctx = context.WithoutCancel(ctx)
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, run.order.ID.String())
	}

	s.transition(ctx, run, enums.CheckoutStateNotifying)
	s.notify(ctx, run)

	s.transition(ctx, run, enums.CheckoutStateFinalizing)
	if _, err := s.carts.ReleaseClaim(ctx, run.cart.ID, run.order.ID); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "checkout.finalize_failed", err)
		}
		run.warnings = append(run.warnings, fmt.Sprintf("cart could not be cleared: %v", err))
	}

	s.transition(ctx, run, enums.CheckoutStateComplete)
	sort.Strings(run.warnings)
	return s.result(run.order, run.warnings, replayed)
}

func (s *service) validate(ctx context.Context, run *confirmation) (*Result, error) {
	user, err := s.users.FindByID(ctx, run.input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	run.user = user

	customer, err := run.input.Customer.normalized(s.cfg.DefaultCountry)
	if err != nil {
		return nil, err
	}
	run.customer = customer

	// A replayed confirm finds the cart already emptied, so the key is
	// checked before the cart.
	if existing, err := s.findByKey(ctx, run.input); err != nil {
		return nil, err
	} else if existing != nil {
		return s.replay(ctx, existing)
	}

	c, err := s.loadCheckoutCart(ctx, run.input.UserID)
	if err != nil {
		return nil, err
	}
	if c.CheckoutOrderID != nil {
		if !s.claimExpired(c) {
			return nil, errCheckoutInProgress
		}
		if res, err := s.resume(ctx, c); err != nil || res != nil {
			return res, err
		}
		if c, err = s.loadCheckoutCart(ctx, run.input.UserID); err != nil {
			return nil, err
		}
		if c.CheckoutOrderID != nil {
			return nil, errCheckoutInProgress
		}
	}
	run.cart = c
	return nil, nil
}

// replay returns an order placed earlier under the same key. When that
// checkout stopped before finishing, its remaining steps run first.
func (s *service) replay(ctx context.Context, order *models.Order) (*Result, error) {
	c, err := s.carts.FindByUser(ctx, order.UserID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	case c.CheckoutOrderID != nil && *c.CheckoutOrderID == order.ID && s.claimExpired(c):
		return s.resumeOrder(ctx, c, order), nil
	}
	return s.result(order, nil, true), nil
}

// resume finishes the checkout that left c claimed. A claim whose order was
// never stored is dropped, leaving the items in place, and nil is returned.
func (s *service) resume(ctx context.Context, c *models.Cart) (*Result, error) {
	orderID := *c.CheckoutOrderID
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load claimed order")
		}
		if err := s.carts.DropClaim(ctx, c.ID, orderID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop orphaned claim")
		}
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "checkout.claim_dropped")
		}
		return nil, nil
	}
	return s.resumeOrder(ctx, c, order), nil
}

func (s *service) resumeOrder(ctx context.Context, c *models.Cart, order *models.Order) *Result {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "checkout.resumed")
	}
	return s.finish(ctx, &confirmation{cart: c, order: order}, true)
}

// RecoverClaim finishes the checkout behind an expired claim on the user's
// cart. It reports false while the claim is still fresh.
func (s *service) RecoverClaim(ctx context.Context, userID uuid.UUID) (bool, error) {
	c, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if c.CheckoutOrderID == nil {
		return true, nil
	}
	if !s.claimExpired(c) {
		return false, nil
	}
	if _, err := s.resume(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) findByKey(ctx context.Context, input ConfirmInput) (*models.Order, error) {
	if input.IdempotencyKey == "" {
		return nil, nil
	}
	order, err := s.orders.FindByIdempotencyKey(ctx, input.UserID, input.IdempotencyKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by idempotency key")
	}
	return order, nil
}

func (s *service) enrich(ctx context.Context, run *confirmation) error {
	live, err := s.products.GetMany(ctx, productIDs(run.cart.Items))
	if err != nil {
		return err
	}

	items := make([]models.CartItem, len(run.cart.Items))
	for i, item := range run.cart.Items {
		product, ok := live[item.ProductID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": item.ProductID.String()})
		}
		item.MerchantID = product.MerchantID
		items[i] = item
	}

	lines := cart.Lines(items)
	run.groups = pricing.GroupByMerchant(lines)

	merchantIDs := make([]uuid.UUID, 0, len(run.groups))
	for _, group := range run.groups {
		merchantIDs = append(merchantIDs, group.MerchantID)
	}
	rows, err := s.merchants.FindByIDs(ctx, merchantIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchants")
	}
	run.merchants = make(map[uuid.UUID]models.Merchant, len(rows))
	for _, row := range rows {
		run.merchants[row.ID] = row
	}
	for _, id := range merchantIDs {
		if _, ok := run.merchants[id]; !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Merchant not found.").
				WithDetails(map[string]any{"merchantId": id.String()})
		}
	}

	productTotal := pricing.CartTotal(lines)
	order := &models.Order{
		ID:                  uuid.New(),
		UserID:              run.user.ID,
		ProductTotalCents:   productTotal,
		DeliveryChargeCents: s.cfg.DeliveryChargeCents,
		TotalAmountCents:    pricing.OrderTotal(productTotal, s.cfg.DeliveryChargeCents),
		Currency:            s.cfg.Currency,
		CustomerFirstName:   run.customer.FirstName,
		CustomerLastName:    run.customer.LastName,
		CustomerAddress:     run.customer.Address,
		CustomerPhoneNumber: run.customer.PhoneNumber,
		City:                run.customer.City,
		Country:             run.customer.Country,
		OrderStatus:         enums.OrderStatusProcessing,
		PaymentStatus:       enums.PaymentStatusPaid,
		OrderDate:           s.now().UTC(),
		Items:               make([]models.OrderLineItem, 0, len(items)),
	}
	if key := run.input.IdempotencyKey; key != "" {
		order.IdempotencyKey = &key
	}
	for i, item := range items {
		order.Items = append(order.Items, models.OrderLineItem{
			Position:       i,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: lines[i].Total(),
			ProductImage:   item.ProductImage,
			MerchantID:     item.MerchantID,
		})
	}
	run.order = order
	return nil
}

func (s *service) persist(ctx context.Context, run *confirmation) error {
	events := s.notificationEvents(run)
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err := s.carts.WithTx(tx).ClaimForCheckout(ctx, run.cart.ID, run.cart.Version, run.order.ID, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim cart")
		}
		if !claimed {
			return errCheckoutInProgress
		}
		if err := s.orders.WithTx(tx).Create(ctx, run.order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.users.WithTx(tx).AppendOrder(ctx, run.user.ID, run.order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link order to user")
		}
		if err := s.outbox.Emit(ctx, tx, events...); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue notifications")
		}
		return nil
	})
}

// notificationEvents lists the customer confirmation followed by one notice
// per merchant group.
func (s *service) notificationEvents(run *confirmation) []outbox.Event {
	events := make([]outbox.Event, 0, len(run.groups)+1)
	queue := func(msg notifications.Message) {
		events = append(events, outbox.Event{
			OrderID:     run.order.ID,
			Kind:        msg.Kind,
			RecipientID: msg.RecipientID,
			Data:        msg,
			OccurredAt:  run.order.OrderDate,
		})
	}

	queue(notifications.CustomerConfirmation(run.order, run.user, s.formatter))
	for _, group := range run.groups {
		merchant := run.merchants[group.MerchantID]
		lines := make([]models.OrderLineItem, 0, len(group.Indexes))
		for _, idx := range group.Indexes {
			lines = append(lines, run.order.Items[idx])
		}
		queue(notifications.MerchantNewOrder(run.order, &merchant, lines, group.SubtotalCents, s.formatter))
	}
	return events
}

// replayAfterRace resolves a lost race against a concurrent confirm that
// used the same idempotency key.
func (s *service) replayAfterRace(ctx context.Context, run *confirmation, cause error) (*Result, bool) {
	if run.input.IdempotencyKey == "" {
		return nil, false
	}
	if !pkgerrors.IsCode(cause, pkgerrors.CodeConflict) && !db.IsUniqueViolation(cause, "") {
		return nil, false
	}
	existing, err := s.findByKey(ctx, run.input)
	if err != nil || existing == nil {
		return nil, false
	}
	return s.result(existing, nil, true), true
}

// notify delivers the order's unsent notifications, customer first, then
// fans out per merchant. Every merchant of the order is linked even when its
// message failed or was already sent.
func (s *service) notify(ctx context.Context, run *confirmation) {
	var (
		mu   sync.Mutex
		errs error
	)
	record := func(kind enums.NotificationKind, recipient uuid.UUID, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", kind, recipient, err))
		run.warnings = append(run.warnings, fmt.Sprintf("%s notification to %s failed: %v", kind, recipient, err))
		s.metrics.IncNotificationFailure(string(kind))
	}

	pending, err := s.outbox.Pending(ctx, run.order.ID)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("load queued notifications: %w", err))
		run.warnings = append(run.warnings, fmt.Sprintf("queued notifications could not be loaded: %v", err))
	}

	merchantEvents := make(map[uuid.UUID]models.OutboxEvent, len(pending))
	for _, event := range pending {
		if event.Kind == enums.NotificationKindMerchantNewOrder {
			merchantEvents[event.RecipientID] = event
			continue
		}
		s.deliver(ctx, event, record)
	}

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.NotifyConcurrency)
	for _, merchantID := range orderMerchants(run.order) {
		event, queued := merchantEvents[merchantID]
		g.Go(func() error {
			if queued {
				s.deliver(ctx, event, record)
			}
			if err := s.merchants.AppendOrder(ctx, merchantID, run.order.ID); err != nil {
				record(enums.NotificationKindMerchantNewOrder, merchantID, fmt.Errorf("link order: %w", err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.notify_failed", errs)
	}
}

// deliver sends one queued message and records the outcome on its row.
func (s *service) deliver(ctx context.Context, event models.OutboxEvent, record func(enums.NotificationKind, uuid.UUID, error)) {
	var msg notifications.Message
	err := outbox.Decode(event, &msg)
	if err == nil {
		err = s.sender.Send(ctx, msg)
	}
	if err != nil {
		record(event.Kind, event.RecipientID, err)
		if markErr := s.outbox.MarkFailed(ctx, event.ID, err); markErr != nil && s.logg != nil {
			s.logg.Error(ctx, "checkout.outbox_mark_failed", markErr)
		}
		return
	}
	if err := s.outbox.MarkPublished(ctx, event.ID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.outbox_mark_failed", err)
	}
}

func orderMerchants(order *models.Order) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(order.Items))
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		if seen[item.MerchantID] {
			continue
		}
		seen[item.MerchantID] = true
		ids = append(ids, item.MerchantID)
	}
	return ids
}

func (s *service) transition(ctx context.Context, run *confirmation, state enums.CheckoutState) {
	run.state = state
	s.metrics.ObserveState(state.String())
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "state", state.String()), "checkout.state")
}

func (s *service) result(order *models.Order, warnings []string, replayed bool) *Result {
	if warnings == nil {
		warnings = []string{}
	}
	return &Result{
		OrderView: orders.NewOrderView(order, s.formatter),
		Warnings:  warnings,
		Replayed:  replayed,
	}
}
