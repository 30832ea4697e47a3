package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/storefront/internal/apiclient"
	"github.com/ashureev/storefront/internal/domain"
)

// ErrUnknownCommand is returned for unrecognized command types.
var ErrUnknownCommand = errors.New("unknown command")

// OrderConfirmationPath is opened after a successful checkout.
const OrderConfirmationPath = "/order-confirmation"

// Command is an instruction sent by a viewer.
type Command struct {
	Type      string `json:"type"`
	Path      string `json:"path,omitempty"`
	Email     string `json:"email,omitempty"`
	Password  string `json:"password,omitempty"`
	Name      string `json:"name,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	Address   string `json:"address,omitempty"`
}

// Reply answers a Command.
type Reply struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	OrderID string `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// Navigator moves through the shell routes.
type Navigator interface {
	Push(path string)
	Back() bool
}

// Auth signs the shell in and out.
type Auth interface {
	Login(ctx context.Context, email, password string) (*domain.User, error)
	Register(ctx context.Context, email, password, name string) (*domain.User, error)
	Logout()
}

// Shopper changes the cart.
type Shopper interface {
	Add(ctx context.Context, productID string, qty int) error
	Checkout(ctx context.Context, shippingAddress string) (*domain.Order, error)
}

// Actions dispatches viewer commands to the shell.
type Actions struct {
	nav    Navigator
	auth   Auth
	cart   Shopper
	logger *slog.Logger
}

// NewActions creates a dispatcher.
func NewActions(nav Navigator, auth Auth, cart Shopper, logger *slog.Logger) *Actions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actions{nav: nav, auth: auth, cart: cart, logger: logger}
}

// Dispatch runs cmd. Failures are reported in the reply and returned.
func (a *Actions) Dispatch(ctx context.Context, cmd Command) (Reply, error) {
	reply := Reply{Type: "ack", Command: cmd.Type}

	var err error
	switch cmd.Type {
	case "ping":
		return Reply{Type: "pong"}, nil
	case "navigate":
		if !strings.HasPrefix(cmd.Path, "/") {
			err = fmt.Errorf("navigate: path must start with /, got %q", cmd.Path)
			break
		}
		a.nav.Push(cmd.Path)
	case "back":
		if !a.nav.Back() {
			err = errors.New("back: already at the first screen")
		}
	case "login":
		_, err = a.auth.Login(ctx, cmd.Email, cmd.Password)
	case "register":
		_, err = a.auth.Register(ctx, cmd.Email, cmd.Password, cmd.Name)
	case "logout":
		a.auth.Logout()
	case "add_to_cart":
		qty := cmd.Quantity
		if qty == 0 {
			qty = 1
		}
		err = a.cart.Add(ctx, cmd.ProductID, qty)
	case "checkout":
		var order *domain.Order
		order, err = a.cart.Checkout(ctx, cmd.Address)
		if err == nil {
			reply.OrderID = order.ID
			a.nav.Push(OrderConfirmationPath)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}

	if err != nil {
		a.logger.Warn("Preview command failed", "command", cmd.Type, "error", err)
		return Reply{
			Type:    "error",
			Command: cmd.Type,
			Error:   err.Error(),
			Status:  apiclient.StatusCode(err),
		}, err
	}
	return reply, nil
}
