package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/storefront/internal/domain"
	"github.com/ashureev/storefront/internal/shared"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers during checkout writes.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires ON auth_sessions(expires_at);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price_cents INTEGER NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		stock INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cart_items (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		total_cents INTEGER NOT NULL,
		status TEXT NOT NULL,
		shipping_address TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at);

	CREATE TABLE IF NOT EXISTS order_items (
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		quantity INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	query := `INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt.Unix(),
	)
	if shared.IsSQLiteUniqueError(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var createdAt int64

	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

// CreateSession records an issued access token.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.AuthSession) error {
	query := `INSERT INTO auth_sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`
	return shared.Retry(ctx, s.retry, "create_session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.ID, session.UserID, session.ExpiresAt.Unix(), session.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// GetSession retrieves an auth session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.AuthSession, error) {
	query := `SELECT id, user_id, expires_at, created_at FROM auth_sessions WHERE id = ?`

	var session domain.AuthSession
	var expiresAt, createdAt int64
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID, &session.UserID, &expiresAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.ExpiresAt = time.Unix(expiresAt, 0)
	session.CreatedAt = time.Unix(createdAt, 0)
	return &session, nil
}

// DeleteSession removes an auth session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	return shared.Retry(ctx, s.retry, "delete_session", func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// DeleteExpiredSessions removes sessions that expired before now.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := shared.Retry(ctx, s.retry, "delete_expired_sessions", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= ?`, now.Unix())
		if err != nil {
			return fmt.Errorf("delete expired sessions: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// ListProducts returns the catalog ordered by name.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT id, name, description, price_cents, image_url, stock FROM products ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close product rows", "error", closeErr)
		}
	}()

	products := []*domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.ImageURL, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// GetProduct retrieves a product by ID.
func (s *SQLiteStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	query := `SELECT id, name, description, price_cents, image_url, stock FROM products WHERE id = ?`

	var p domain.Product
	err := s.db.QueryRowContext(ctx, query, productID).Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.ImageURL, &p.Stock,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan product row: %w", err)
	}
	return &p, nil
}

// UpsertProduct creates or updates a catalog entry.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	query := `
	INSERT INTO products (id, name, description, price_cents, image_url, stock)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		price_cents = excluded.price_cents,
		image_url = excluded.image_url,
		stock = excluded.stock`

	_, err := s.db.ExecContext(ctx, query,
		product.ID, product.Name, product.Description,
		product.PriceCents, product.ImageURL, product.Stock,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// CountProducts returns the catalog size.
func (s *SQLiteStore) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// GetCart returns the user's cart priced at current catalog prices.
func (s *SQLiteStore) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	query := `
		SELECT c.product_id, p.name, p.price_cents, c.quantity
		FROM cart_items c JOIN products p ON p.id = c.product_id
		WHERE c.user_id = ?
		ORDER BY c.updated_at, c.product_id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close cart rows", "error", closeErr)
		}
	}()

	cart := &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.PriceCents, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart row: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart: %w", err)
	}
	return cart, nil
}

// SetCartItem sets the quantity of a product in the cart.
func (s *SQLiteStore) SetCartItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveCartItem(ctx, userID, productID)
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return ErrProductNotFound
	}
	if !product.InStock(quantity) {
		return ErrInsufficientStock
	}

	query := `
	INSERT INTO cart_items (user_id, product_id, quantity, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id, product_id) DO UPDATE SET
		quantity = excluded.quantity,
		updated_at = excluded.updated_at`

	return shared.Retry(ctx, s.retry, "set_cart_item", func() error {
		if _, err := s.db.ExecContext(ctx, query, userID, productID, quantity, time.Now().UnixNano()); err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}
		return nil
	})
}

// RemoveCartItem removes a product from the cart.
func (s *SQLiteStore) RemoveCartItem(ctx context.Context, userID, productID string) error {
	return shared.Retry(ctx, s.retry, "remove_cart_item", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`, userID, productID)
		if err != nil {
			return fmt.Errorf("delete cart item: %w", err)
		}
		return nil
	})
}

// ClearCart removes every line from the cart.
func (s *SQLiteStore) ClearCart(ctx context.Context, userID string) error {
	return shared.Retry(ctx, s.retry, "clear_cart", func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
}

// CreateOrderFromCart converts the cart into an order in one transaction.
func (s *SQLiteStore) CreateOrderFromCart(ctx context.Context, userID, shippingAddress string) (*domain.Order, error) {
	var order *domain.Order
	err := shared.Retry(ctx, s.retry, "create_order", func() error {
		var err error
		order, err = s.createOrderOnce(ctx, userID, shippingAddress)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *SQLiteStore) createOrderOnce(ctx context.Context, userID, shippingAddress string) (order *domain.Order, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin checkout: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back checkout", "error", rbErr, "user_id", userID)
			}
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT c.product_id, p.name, p.price_cents, c.quantity, p.stock
		FROM cart_items c JOIN products p ON p.id = c.product_id
		WHERE c.user_id = ?
		ORDER BY c.updated_at, c.product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart for checkout: %w", err)
	}

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		var stock int
		if err = rows.Scan(&item.ProductID, &item.Name, &item.PriceCents, &item.Quantity, &stock); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan checkout row: %w", err)
		}
		if item.Quantity > stock {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, item.Name)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate checkout rows: %w", err)
	}
	if err = rows.Close(); err != nil {
		return nil, fmt.Errorf("close checkout rows: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order = &domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           items,
		Status:          domain.OrderStatusPending,
		ShippingAddress: shippingAddress,
		CreatedAt:       time.Now(),
	}
	for _, item := range items {
		order.TotalCents += item.PriceCents * int64(item.Quantity)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, total_cents, status, shipping_address, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.TotalCents, string(order.Status), order.ShippingAddress, order.CreatedAt.UnixNano(),
	); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, item := range items {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, name, price_cents, quantity) VALUES (?, ?, ?, ?, ?)`,
			order.ID, item.ProductID, item.Name, item.PriceCents, item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		if err = decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("clear cart after checkout: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit checkout: %w", err)
	}
	return order, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// decrementStock takes qty units of productID, failing with
// ErrInsufficientStock when fewer are left.
func decrementStock(ctx context.Context, db execer, productID string, qty int) error {
	res, err := db.ExecContext(ctx,
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		qty, productID, qty,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, productID)
	}
	return nil
}

// ListOrders returns the user's orders, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `
		SELECT id, user_id, total_cents, status, shipping_address, created_at
		FROM orders WHERE user_id = ?
		ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close order rows", "error", err)
	}

	for _, order := range orders {
		if order.Items, err = s.orderItems(ctx, order.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// GetOrder retrieves an order owned by the user.
func (s *SQLiteStore) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	query := `
		SELECT id, user_id, total_cents, status, shipping_address, created_at
		FROM orders WHERE id = ? AND user_id = ?`

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, orderID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if order.Items, err = s.orderItems(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var status string
	var createdAt int64

	err := row.Scan(&order.ID, &order.UserID, &order.TotalCents, &status, &order.ShippingAddress, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.CreatedAt = time.Unix(0, createdAt)
	return &order, nil
}

func (s *SQLiteStore) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, name, price_cents, quantity FROM order_items WHERE order_id = ? ORDER BY rowid`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close order item rows", "error", closeErr)
		}
	}()

	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.PriceCents, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}
