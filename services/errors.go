package services

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrStageNotFound       = errors.New("stage not found")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrNoChain             = errors.New("competition has no chain")
)

// ErrorSink collects keyed, human-readable problems.
type ErrorSink interface {
	Add(key, message string)
	HasErrors() bool
}

type ErrorItem struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// ErrorList accumulates every problem found by one call. It is returned as an
// error when non-empty. Safe for concurrent Add.
type ErrorList struct {
	mu    sync.Mutex
	items []ErrorItem
}

func NewErrorList() *ErrorList {
	return &ErrorList{}
}

func (l *ErrorList) Add(key, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, ErrorItem{Key: key, Message: message})
}

func (l *ErrorList) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items) > 0
}

func (l *ErrorList) Items() []ErrorItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ErrorItem(nil), l.items...)
}

// Merge appends every item of other.
func (l *ErrorList) Merge(other *ErrorList) {
	for _, it := range other.Items() {
		l.Add(it.Key, it.Message)
	}
}

// Messages returns every message recorded under key.
func (l *ErrorList) Messages(key string) []string {
	var out []string
	for _, it := range l.Items() {
		if it.Key == key {
			out = append(out, it.Message)
		}
	}
	return out
}

func (l *ErrorList) Error() string {
	items := l.Items()
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.Key+": "+it.Message)
	}
	return strings.Join(parts, "; ")
}

// Err returns the list as an error, or nil when empty.
func (l *ErrorList) Err() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// AsErrorList unwraps err into an *ErrorList.
func AsErrorList(err error) (*ErrorList, bool) {
	var list *ErrorList
	if errors.As(err, &list) {
		return list, true
	}
	return nil, false
}

func single(key, message string) *ErrorList {
	l := NewErrorList()
	l.Add(key, message)
	return l
}
