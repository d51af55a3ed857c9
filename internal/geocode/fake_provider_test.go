package geocode

import (
	"context"
	"sync"

	"github.com/web-kovcheg/storefront/internal/address"
)

// fakeProvider answers from a query -> places table keyed by queryKey.
type fakeProvider struct {
	mu      sync.Mutex
	results map[string][]Place
	err     error
	calls   []address.Query
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{results: map[string][]Place{}}
}

func queryKey(q address.Query) string {
	if q.Structured {
		return "struct:" + q.Street + "|" + q.City + "|" + q.PostalCode
	}
	return q.Text
}

func (f *fakeProvider) on(q address.Query, places ...Place) {
	f.results[queryKey(q)] = places
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(ctx context.Context, q address.Query, limit int) ([]Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	places := f.results[queryKey(q)]
	if len(places) > limit {
		places = places[:limit]
	}
	return places, nil
}
