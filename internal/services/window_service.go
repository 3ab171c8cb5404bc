package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/repositories"
)

const windowIDPrefix = "win_"

var (
	// ErrWindowInvalidInput signals the caller provided invalid data.
	ErrWindowInvalidInput = errors.New("window: invalid input")
	// ErrWindowNotFound indicates the window could not be located.
	ErrWindowNotFound = errors.New("window: not found")
	// ErrWindowOrderCompleted indicates the owning order is frozen.
	ErrWindowOrderCompleted = errors.New("window: order is completed")
)

// WindowServiceDeps bundles collaborators for the window service.
type WindowServiceDeps struct {
	Windows     repositories.WindowRepository
	Orders      repositories.OrderRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
}

type windowService struct {
	windows    repositories.WindowRepository
	orders     repositories.OrderRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
}

// NewWindowService wires dependencies into a concrete WindowService implementation.
func NewWindowService(deps WindowServiceDeps) (WindowService, error) {
	if deps.Windows == nil {
		return nil, errors.New("window service: window repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("window service: order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &windowService{
		windows:    deps.Windows,
		orders:     deps.Orders,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *windowService) Create(ctx context.Context, cmd CreateWindowCommand) (Window, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	name := strings.TrimSpace(cmd.Name)
	if orderID == "" {
		return Window{}, fmt.Errorf("%w: order id is required", ErrWindowInvalidInput)
	}
	if name == "" {
		return Window{}, fmt.Errorf("%w: window name is required", ErrWindowInvalidInput)
	}

	if err := s.requireEditableOrder(ctx, orderID); err != nil {
		return Window{}, err
	}

	now := s.clock()
	window := Window{
		ID:        windowIDPrefix + s.newID(),
		OrderID:   orderID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		return s.windows.Insert(txCtx, window)
	})
	if err != nil {
		return Window{}, s.mapRepositoryError(err)
	}

	return window, nil
}

func (s *windowService) Rename(ctx context.Context, cmd RenameWindowCommand) (Window, error) {
	windowID := strings.TrimSpace(cmd.WindowID)
	name := strings.TrimSpace(cmd.Name)
	if windowID == "" {
		return Window{}, fmt.Errorf("%w: window id is required", ErrWindowInvalidInput)
	}
	if name == "" {
		return Window{}, fmt.Errorf("%w: window name is required", ErrWindowInvalidInput)
	}

	window, err := s.windows.FindByID(ctx, windowID)
	if err != nil {
		return Window{}, s.mapRepositoryError(err)
	}
	if err := s.requireEditableOrder(ctx, window.OrderID); err != nil {
		return Window{}, err
	}

	window.Name = name
	window.UpdatedAt = s.clock()

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		return s.windows.Update(txCtx, window)
	})
	if err != nil {
		return Window{}, s.mapRepositoryError(err)
	}

	return window, nil
}

func (s *windowService) Delete(ctx context.Context, windowID string) error {
	windowID = strings.TrimSpace(windowID)
	if windowID == "" {
		return fmt.Errorf("%w: window id is required", ErrWindowInvalidInput)
	}

	window, err := s.windows.FindByID(ctx, windowID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if err := s.requireEditableOrder(ctx, window.OrderID); err != nil {
		return err
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		return s.windows.Delete(txCtx, window.ID)
	})
	if err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *windowService) requireEditableOrder(ctx context.Context, orderID string) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return fmt.Errorf("%w: order %s does not exist", ErrWindowInvalidInput, orderID)
		}
		return err
	}
	if order.Status == domain.OrderStatusCompleted {
		return fmt.Errorf("%w: %s", ErrWindowOrderCompleted, orderID)
	}
	return nil
}

func (s *windowService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrWindowNotFound, err)
	}
	return err
}

func (s *windowService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}
