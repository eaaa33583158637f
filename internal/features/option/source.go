package option

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Source is the option source attached to a catalog entry: a static list,
// a resolver, or nothing.
type Source struct {
	kind     Kind
	static   *Set
	resolver Resolver
}

func StaticSource(set *Set) *Source {
	return &Source{kind: KindList, static: set}
}

func ResolverSource(kind Kind, r Resolver) *Source {
	return &Source{kind: kind, resolver: r}
}

func (s *Source) Kind() Kind {
	if s == nil {
		return KindNone
	}
	return s.kind
}

// HasOptions reports whether the source can produce options at all.
func (s *Source) HasOptions() bool {
	return s != nil && (s.static.Len() > 0 || s.resolver != nil)
}

// Options returns the options for this request. It never fails: a missing
// account, a resolver error or a resolver panic all yield an empty set.
// A static set is shared and must be treated as read only.
func (s *Source) Options(ctx context.Context, oc Context, log *zap.Logger) *Set {
	if s == nil {
		return NewSet()
	}
	if s.static != nil {
		return s.static
	}
	if s.resolver == nil || oc.AccountID == "" {
		return NewSet()
	}
	set, err := s.resolve(ctx, oc)
	if err != nil {
		if log != nil {
			log.Error("Report option resolver failed",
				zap.String("kind", string(s.kind)),
				zap.String("account", oc.AccountID),
				zap.Error(err))
		}
		return NewSet()
	}
	if set == nil {
		return NewSet()
	}
	return set
}

// Option looks up one option by id; nil when absent.
func (s *Source) Option(ctx context.Context, id string, oc Context, log *zap.Logger) *ReportOption {
	if id == "" {
		return nil
	}
	opt, ok := s.Options(ctx, oc, log).Get(id)
	if !ok {
		return nil
	}
	return opt
}

func (s *Source) resolve(ctx context.Context, oc Context) (set *Set, err error) {
	defer func() {
		if r := recover(); r != nil {
			set, err = nil, fmt.Errorf("resolver panic: %v", r)
		}
	}()
	return s.resolver.Resolve(ctx, oc)
}
