package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/souq/services/storefront/internal/models"
)

type recorded struct {
	method, path string
	body         map[string]any
}

func fakeCluster(t *testing.T, reply string) (*elasticsearch.Client, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		seen = append(seen, recorded{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return es, &seen
}

func TestProductIndex_IndexWritesDocumentByID(t *testing.T) {
	es, seen := fakeCluster(t, `{"result":"created"}`)
	idx := New(es, "products")

	p := &models.Product{
		ID:         uuid.New(),
		Name:       "Msemmen",
		NameAr:     "مسمن",
		Slug:       "msemmen",
		Price:      decimal.NewFromInt(25),
		IsActive:   true,
		CategoryID: uuid.New(),
	}
	require.NoError(t, idx.Index(context.Background(), p))

	require.Len(t, *seen, 1)
	got := (*seen)[0]
	assert.True(t, strings.HasPrefix(got.path, "/products/_doc/"+p.ID.String()))
	assert.Equal(t, "Msemmen", got.body["name"])
	assert.Equal(t, "25.00", got.body["price"])
}

func TestProductIndex_SearchReturnsIDsInHitOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	reply := `{"hits":{"hits":[` +
		`{"_id":"` + b.String() + `","_source":{"id":"` + b.String() + `"}},` +
		`{"_id":"` + a.String() + `","_source":{}},` +
		`{"_id":"garbage","_source":{"id":"not-a-uuid"}}]}}`
	es, seen := fakeCluster(t, reply)
	idx := New(es, "")

	ids, err := idx.Search(context.Background(), "  msemmen ", 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b, a}, ids)

	require.Len(t, *seen, 1)
	assert.Equal(t, "/products/_search", (*seen)[0].path)
	assert.EqualValues(t, 10, (*seen)[0].body["size"])
}

func TestSearchBody_FiltersInactive(t *testing.T) {
	t.Parallel()
	body := searchBody("chebakia", 5)
	q := body["query"].(map[string]any)["bool"].(map[string]any)
	assert.Equal(t, map[string]any{"term": map[string]any{"isActive": true}}, q["filter"])
	mm := q["must"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "chebakia", mm["query"])
}
