package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"

	"carbonmarket-backend/internal/application/activity"
	mktsvc "carbonmarket-backend/internal/application/marketplace"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/infrastructure/chain"
	"carbonmarket-backend/internal/infrastructure/filestore"
	"carbonmarket-backend/internal/infrastructure/lock"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMarketApp(t *testing.T) (*fiber.App, *filestore.Store, uint) {
	t.Helper()
	store, err := filestore.Open("")
	require.NoError(t, err)
	c := &domain.CarbonCredit{ProjectID: 1, OwnerAddress: "0xseller", Amount: decimal.NewFromInt(100), RetiredAmount: decimal.Zero, TokenID: "1"}
	require.NoError(t, store.CreateCredit(context.Background(), c))

	h := &Handlers{Service: &mktsvc.Service{
		Store:    store,
		Ledger:   chain.NewLedger("", 80002),
		Activity: &activity.Service{Repo: store},
		Locker:   lock.NewMemory(),
	}}
	app := fiber.New()
	g := app.Group("/api/v1/marketplace")
	g.Get("/listings", h.ListListings)
	g.Post("/listings", h.CreateListing)
	g.Get("/listings/:id", h.GetListing)
	g.Post("/listings/:id/buy", h.Buy)
	g.Post("/listings/:id/cancel", h.Cancel)
	g.Get("/listings/:id/trades", h.Trades)
	return app, store, c.ID
}

func send(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestListingLifecycle(t *testing.T) {
	app, store, creditID := setupMarketApp(t)

	code, out := send(t, app, "POST", "/api/v1/marketplace/listings", map[string]interface{}{
		"sellerAddress": "0xSeller", "creditId": creditID, "amount": "30", "pricePerCredit": "12.5",
	})
	require.Equal(t, 201, code)
	listing := out["data"].(map[string]interface{})
	id := strconv.Itoa(int(listing["id"].(float64)))
	assert.Equal(t, "active", listing["status"])

	code, out = send(t, app, "POST", "/api/v1/marketplace/listings/"+id+"/buy", map[string]interface{}{
		"buyerAddress": "0xSeller", "amount": 1,
	})
	assert.Equal(t, 400, code)

	code, out = send(t, app, "POST", "/api/v1/marketplace/listings/"+id+"/buy", map[string]interface{}{
		"buyerAddress": "0xBuyer", "amount": 10,
	})
	require.Equal(t, 200, code)
	trade := out["data"].(map[string]interface{})["trade"].(map[string]interface{})
	assert.Equal(t, "125", trade["totalPrice"])
	assert.Equal(t, "0xbuyer", trade["buyerAddress"])

	code, out = send(t, app, "GET", "/api/v1/marketplace/listings/"+id+"/trades", nil)
	assert.Equal(t, 200, code)
	assert.Len(t, out["data"], 1)

	code, _ = send(t, app, "POST", "/api/v1/marketplace/listings/"+id+"/cancel", map[string]interface{}{"sellerAddress": "0xbuyer"})
	assert.Equal(t, 400, code)

	code, out = send(t, app, "POST", "/api/v1/marketplace/listings/"+id+"/cancel", map[string]interface{}{"sellerAddress": "0xseller"})
	require.Equal(t, 200, code)
	assert.Equal(t, "cancelled", out["data"].(map[string]interface{})["status"])

	credit, err := store.GetCredit(context.Background(), creditID)
	require.NoError(t, err)
	assert.True(t, credit.Amount.Equal(decimal.NewFromInt(90)), credit.Amount.String())

	code, out = send(t, app, "GET", "/api/v1/marketplace/listings?status=cancelled", nil)
	assert.Equal(t, 200, code)
	assert.Len(t, out["data"], 1)

	code, _ = send(t, app, "GET", "/api/v1/marketplace/listings/999", nil)
	assert.Equal(t, 404, code)
}
