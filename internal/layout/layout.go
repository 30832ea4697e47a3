// Package layout is the root of the application shell. It keeps the route
// consistent with the session, ends the session on unauthorized responses
// and renders a Frame describing what the shell shows.
package layout

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/ashureev/storefront/internal/cart"
	"github.com/ashureev/storefront/internal/domain"
	"github.com/ashureev/storefront/internal/guard"
	"github.com/ashureev/storefront/internal/interceptor"
	"github.com/ashureev/storefront/internal/navigation"
	"github.com/ashureev/storefront/internal/session"
)

// DefaultBackground is the screen background used when none is configured.
const DefaultBackground = "#F5F5F5"

// Session is the auth provider the layout reads.
type Session interface {
	State() session.State
	Resolve(ctx context.Context) error
	Logout()
	Subscribe(fn func(session.State)) func()
}

// Cart is the cart provider the layout reads.
type Cart interface {
	Count() int
	Load(ctx context.Context) error
	Reset()
	Subscribe(fn func(cart.State)) func()
}

// Router is the navigation state the layout reads and redirects.
type Router interface {
	Segments() navigation.Segments
	Replace(path string)
	Subscribe(fn func(navigation.Segments)) func()
}

// Deps are the collaborators of a RootLayout.
type Deps struct {
	Session      Session
	Cart         Cart
	Router       Router
	Stack        *navigation.Stack
	Interceptors interceptor.Registry
	Background   string
	Logger       *slog.Logger
}

// RootLayout wires the shell collaborators together.
type RootLayout struct {
	session      Session
	cart         Cart
	router       Router
	stack        *navigation.Stack
	interceptors interceptor.Registry
	background   string
	logger       *slog.Logger
}

// New creates a root layout from deps.
func New(deps Deps) *RootLayout {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stack := deps.Stack
	if stack == nil {
		stack = navigation.DefaultStack()
	}
	background := deps.Background
	if background == "" {
		background = DefaultBackground
	}
	return &RootLayout{
		session:      deps.Session,
		cart:         deps.Cart,
		router:       deps.Router,
		stack:        stack,
		interceptors: deps.Interceptors,
		background:   background,
		logger:       logger,
	}
}

// Frame is one render of the shell.
type Frame struct {
	Sequence   uint64                   `json:"sequence"`
	Loading    bool                     `json:"loading"`
	Path       string                   `json:"path"`
	Segments   []string                 `json:"segments"`
	Screen     string                   `json:"screen,omitempty"`
	Params     map[string]string        `json:"params,omitempty"`
	Options    navigation.ScreenOptions `json:"options"`
	NotFound   bool                     `json:"not_found,omitempty"`
	Background string                   `json:"background"`
	User       *domain.User             `json:"user,omitempty"`
	CartCount  int                      `json:"cart_count"`
}

func (f Frame) sameContent(other Frame) bool {
	f.Sequence, other.Sequence = 0, 0
	return reflect.DeepEqual(f, other)
}

type guardInputs struct {
	userID  string
	loading bool
	path    string
}

// Mounted is a running layout. Unmount releases it.
type Mounted struct {
	layout *RootLayout
	guard  *guard.Guard
	reg    *interceptor.Registration

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	tasks  sync.WaitGroup
	unsubs []func()
	once   sync.Once

	// owned by the event loop
	evaluated  *guardInputs
	lastUserID string

	frameMu  sync.RWMutex
	frame    Frame
	seq      uint64
	frameSub map[int]func(Frame)
	nextSub  int
}

// Mount installs the unauthorized interceptor, starts the event loop and
// begins resolving the session.
func (l *RootLayout) Mount(ctx context.Context) *Mounted {
	ctx, cancel := context.WithCancel(ctx)
	m := &Mounted{
		layout:   l,
		guard:    guard.New(l.router, l.logger),
		wake:     make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
		frameSub: make(map[int]func(Frame)),
	}

	m.reg = interceptor.Install(l.interceptors, l.session.Logout, l.logger)
	m.unsubs = append(m.unsubs,
		l.session.Subscribe(func(session.State) { m.poke() }),
		l.router.Subscribe(func(navigation.Segments) { m.poke() }),
		l.cart.Subscribe(func(cart.State) { m.poke() }),
	)

	m.process(ctx)
	go m.run(ctx)

	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		if err := l.session.Resolve(ctx); err != nil {
			l.logger.Warn("Session check failed", "error", err)
		}
	}()

	l.logger.Info("Root layout mounted", "path", l.router.Segments().Path())
	return m
}

// Unmount stops the event loop and releases the interceptor. Safe to call
// more than once.
func (m *Mounted) Unmount() {
	m.once.Do(func() {
		m.reg.Release()
		for _, unsubscribe := range m.unsubs {
			unsubscribe()
		}
		m.cancel()
		<-m.done
		m.tasks.Wait()
		m.layout.logger.Info("Root layout unmounted")
	})
}

// Frame returns the latest render.
func (m *Mounted) Frame() Frame {
	m.frameMu.RLock()
	defer m.frameMu.RUnlock()
	return m.frame
}

// Subscribe registers fn to receive every new frame. The returned function
// removes the subscription.
func (m *Mounted) Subscribe(fn func(Frame)) func() {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()

	m.nextSub++
	id := m.nextSub
	m.frameSub[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.frameMu.Lock()
			delete(m.frameSub, id)
			m.frameMu.Unlock()
		})
	}
}

// poke schedules a render. Pending wake-ups coalesce since every render
// reads the latest state.
func (m *Mounted) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mounted) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
			m.process(ctx)
		}
	}
}

func (m *Mounted) process(ctx context.Context) {
	l := m.layout
	state := l.session.State()
	segs := l.router.Segments()

	m.trackUser(ctx, state)

	inputs := guardInputs{loading: state.Loading, path: segs.Path()}
	if state.User != nil {
		inputs.userID = state.User.ID
	}
	if m.evaluated == nil || *m.evaluated != inputs {
		if m.guard.Evaluate(state.User, state.Loading, segs) != guard.ActionNone {
			segs = l.router.Segments()
			inputs.path = segs.Path()
		}
		m.evaluated = &inputs
	}

	m.publish(m.render(state, segs))
}

// trackUser clears the cart when the user signs out and loads it when a
// user signs in.
func (m *Mounted) trackUser(ctx context.Context, state session.State) {
	if state.Loading {
		return
	}
	var userID string
	if state.User != nil {
		userID = state.User.ID
	}
	if userID == m.lastUserID {
		return
	}
	previous := m.lastUserID
	m.lastUserID = userID

	if previous != "" {
		m.layout.cart.Reset()
	}
	if userID == "" {
		return
	}

	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		if err := m.layout.cart.Load(ctx); err != nil && ctx.Err() == nil {
			m.layout.logger.Warn("Failed to load cart", "user_id", userID, "error", err)
		}
	}()
}

func (m *Mounted) render(state session.State, segs navigation.Segments) Frame {
	l := m.layout
	frame := Frame{
		Loading:    state.Loading,
		Path:       segs.Path(),
		Segments:   []string(segs.Clone()),
		Background: l.background,
	}
	if state.Loading {
		return frame
	}

	frame.User = state.User
	frame.CartCount = l.cart.Count()

	screen, params, ok := l.stack.Match(segs)
	if !ok {
		frame.NotFound = true
		return frame
	}
	frame.Screen = screen.Name
	frame.Params = params
	frame.Options = screen.Options
	return frame
}

func (m *Mounted) publish(frame Frame) {
	m.frameMu.Lock()
	if m.seq > 0 && frame.sameContent(m.frame) {
		m.frameMu.Unlock()
		return
	}
	m.seq++
	frame.Sequence = m.seq
	m.frame = frame
	subs := make([]func(Frame), 0, len(m.frameSub))
	for _, fn := range m.frameSub {
		subs = append(subs, fn)
	}
	m.frameMu.Unlock()

	for _, fn := range subs {
		fn(frame)
	}
}
