package navigation

import (
	"strings"
)

// Presentation controls how a screen is shown.
type Presentation string

const (
	// PresentationCard pushes the screen onto the stack.
	PresentationCard Presentation = "card"
	// PresentationModal shows the screen over the current one.
	PresentationModal Presentation = "modal"
)

// ScreenOptions configure how a screen renders.
type ScreenOptions struct {
	HeaderShown  bool         `json:"header_shown"`
	Presentation Presentation `json:"presentation"`
	Title        string       `json:"title,omitempty"`
}

// Screen is a named entry of the stack. Names use path syntax: groups in
// parentheses match as a prefix, bracketed parts capture a parameter.
type Screen struct {
	Name    string        `json:"name"`
	Options ScreenOptions `json:"options"`
	pattern Segments
}

// NewScreen creates a screen with the given name and options.
func NewScreen(name string, opts ScreenOptions) Screen {
	if opts.Presentation == "" {
		opts.Presentation = PresentationCard
	}
	return Screen{Name: name, Options: opts, pattern: ParsePath(name)}
}

// Stack is the ordered set of screens the shell can render.
type Stack struct {
	screens []Screen
}

// NewStack creates a stack from screens. Earlier screens win on overlap.
func NewStack(screens ...Screen) *Stack {
	return &Stack{screens: screens}
}

// Screens returns the declared screens in order.
func (s *Stack) Screens() []Screen {
	out := make([]Screen, len(s.screens))
	copy(out, s.screens)
	return out
}

// Match resolves segments to a screen and its parameters. For group screens
// the remainder below the group is reported as the "screen" parameter.
func (s *Stack) Match(segs Segments) (Screen, map[string]string, bool) {
	for _, screen := range s.screens {
		if params, ok := screen.match(segs); ok {
			return screen, params, true
		}
	}
	return Screen{}, nil, false
}

func (sc Screen) match(segs Segments) (map[string]string, bool) {
	if len(sc.pattern) == 1 && IsGroup(sc.pattern[0]) {
		if segs.First() != sc.pattern[0] {
			return nil, false
		}
		child := strings.Join(segs[1:], "/")
		if child == "" {
			child = "index"
		}
		return map[string]string{"screen": child}, true
	}

	if len(segs) != len(sc.pattern) {
		return nil, false
	}
	params := map[string]string{}
	for i, part := range sc.pattern {
		if name, ok := isParam(part); ok {
			params[name] = segs[i]
			continue
		}
		if part != segs[i] {
			return nil, false
		}
	}
	return params, true
}

// DefaultStack declares the storefront screens.
func DefaultStack() *Stack {
	hidden := ScreenOptions{HeaderShown: false}
	return NewStack(
		NewScreen("(tabs)", hidden),
		NewScreen("(auth)", hidden),
		NewScreen("product/[id]", hidden),
		NewScreen("checkout", ScreenOptions{HeaderShown: true, Presentation: PresentationModal, Title: "Checkout"}),
		NewScreen("order-confirmation", hidden),
		NewScreen("my-orders", hidden),
		NewScreen("order-details/[id]", ScreenOptions{HeaderShown: true, Title: "Order Details"}),
	)
}
