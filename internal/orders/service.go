package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records checkout submissions and serves them back to their owners.
type Service interface {
	checkout.Submitter
	Get(ctx context.Context, userID string, orderID uuid.UUID) (*OrderDetail, error)
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds the order service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

// Submit stores the payload as a pending order. A repeated idempotency key
// from the same user returns the order created by the first attempt.
func (s *service) Submit(ctx context.Context, sub checkout.Submission) (*checkout.SubmitResult, error) {
	if strings.TrimSpace(sub.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(sub.Payload.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	if sub.Payload.AddressID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}

	if sub.IdempotencyKey != "" {
		existing, err := s.replay(ctx, sub)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	order := orderFromSubmission(uuid.New(), sub)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		if sub.IdempotencyKey != "" && db.IsUniqueViolation(err, "") {
			existing, rerr := s.replay(ctx, sub)
			if rerr != nil || existing != nil {
				return existing, rerr
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create checkout order")
	}

	ctx = s.logg.WithCheckoutID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id": sub.UserID,
		"items":   len(order.Items),
		"total":   order.Total,
	}), "checkout order created")
	return &checkout.SubmitResult{OrderID: order.ID.String(), Status: order.Status}, nil
}

func (s *service) replay(ctx context.Context, sub checkout.Submission) (*checkout.SubmitResult, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, sub.IdempotencyKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by idempotency key")
	}
	if existing.UserID != sub.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used")
	}
	s.logg.Info(s.logg.WithCheckoutID(ctx, existing.ID.String()), "replayed checkout submission")
	return &checkout.SubmitResult{OrderID: existing.ID.String(), Status: existing.Status}, nil
}

func (s *service) Get(ctx context.Context, userID string, orderID uuid.UUID) (*OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return detailFromModel(order), nil
}
