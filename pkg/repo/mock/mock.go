package mock

import (
	"net/http/httptest"
	"testing"

	"github.com/foomo/receptionsuite/pkg/handler"
	"github.com/foomo/receptionsuite/pkg/repo"
	"github.com/foomo/receptionsuite/pkg/storage"
	"go.uber.org/zap/zaptest"
)

// APIPath is the base path the mock server exposes the storage api on
const APIPath = handler.DefaultBasePath

// NewServer starts a storage server on a temp dir and returns it together with the api url
func NewServer(tb testing.TB, opts ...handler.HTTPOption) (*httptest.Server, string) {
	tb.Helper()
	l := zaptest.NewLogger(tb)
	s, err := storage.NewFilesystemStorage(tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	r := repo.New(l, s, repo.WithHistory(repo.NewHistory(l, s)))
	server := httptest.NewServer(handler.NewHTTP(l, r, opts...))
	tb.Cleanup(server.Close)
	return server, server.URL + APIPath
}

// Guests a sample guest list resource
type Guests struct {
	List []Guest `json:"list"`
}

type Guest struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Room string `json:"room,omitempty"`
}

// MakeGuests returns the guest list used throughout the tests
func MakeGuests() Guests {
	return Guests{
		List: []Guest{{ID: 1, Name: "Ana"}},
	}
}
