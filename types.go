package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is the logging contract used across the package
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// NotificationService delivers action token links to their recipients
type NotificationService interface {
	SendActionTokenEmail(ctx context.Context, token *ActionToken, link string) error
}

// NotificationFunc adapts a function to the NotificationService interface.
type NotificationFunc func(ctx context.Context, token *ActionToken, link string) error

// SendActionTokenEmail implements NotificationService.
func (f NotificationFunc) SendActionTokenEmail(ctx context.Context, token *ActionToken, link string) error {
	if f == nil {
		return nil
	}
	return f(ctx, token, link)
}

// ConsoleNotifier writes action token links to the logger, useful in development
type ConsoleNotifier struct {
	Logger Logger
}

func (n ConsoleNotifier) SendActionTokenEmail(ctx context.Context, token *ActionToken, link string) error {
	logger := n.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("====== SENDING ACTION TOKEN =======")
	logger.Info("to: %s", token.Email)
	logger.Info("actions: %s", token.Type)
	logger.Info("link: %s", link)
	return nil
}

// Clock returns the current time
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// Page is a slice of results plus the pagination window that produced it
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPage builds a Page computing the total number of pages
func NewPage[T any](items []T, page, limit, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
	}
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Pagination is the page/limit window shared by every search
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.Limit
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
