package builtin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessara/gemini-assistant/internal/store"
	"github.com/tessara/gemini-assistant/internal/tool"
)

func newTestRegistry(t *testing.T) (*tool.Registry, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)

	registry := tool.NewRegistry()
	require.NoError(t, RegisterAll(registry, st))
	return registry, st
}

func invoke(t *testing.T, registry *tool.Registry, name string, args map[string]any) (any, error) {
	t.Helper()
	handler, ok := registry.Handler(name)
	require.True(t, ok, "handler %q must be registered", name)
	return handler(context.Background(), args)
}

func TestRegisterAll_AllToolsDeclared(t *testing.T) {
	registry, _ := newTestRegistry(t)

	decls := registry.EnabledDeclarations()

	require.Len(t, decls, 3)
	assert.Equal(t, "check_stock_levels", decls[0].Name)
	assert.Equal(t, "generate_sales_report", decls[1].Name)
	assert.Equal(t, "list_overdue_invoices", decls[2].Name)
}

func TestCheckStockLevels_SumsAcrossWarehouses(t *testing.T) {
	registry, st := newTestRegistry(t)
	require.NoError(t, st.DB().Create(&store.StockLevel{ItemCode: "W-100", Warehouse: "Main", Qty: 30}).Error)
	require.NoError(t, st.DB().Create(&store.StockLevel{ItemCode: "W-100", Warehouse: "Backup", Qty: 12}).Error)

	payload, err := invoke(t, registry, "check_stock_levels", map[string]any{"item_code": "W-100"})

	require.NoError(t, err)
	result := payload.(map[string]any)
	assert.Equal(t, float64(42), result["actual_quantity"])
	assert.Contains(t, result["message"], "W-100")
}

func TestCheckStockLevels_UnknownItem_Errors(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := invoke(t, registry, "check_stock_levels", map[string]any{"item_code": "NOPE"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCheckStockLevels_MissingItemCode_Errors(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := invoke(t, registry, "check_stock_levels", map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestGenerateSalesReport_SumsRange(t *testing.T) {
	registry, st := newTestRegistry(t)
	posted := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.DB().Create(&store.Invoice{ID: "INV-1", Customer: "Acme", Total: 100, Status: "Paid", PostingDate: posted}).Error)
	require.NoError(t, st.DB().Create(&store.Invoice{ID: "INV-2", Customer: "Acme", Total: 250, Status: "Unpaid", PostingDate: posted.AddDate(0, 0, 5)}).Error)
	// Outside the range.
	require.NoError(t, st.DB().Create(&store.Invoice{ID: "INV-3", Customer: "Acme", Total: 999, Status: "Paid", PostingDate: posted.AddDate(1, 0, 0)}).Error)

	payload, err := invoke(t, registry, "generate_sales_report", map[string]any{
		"start_date": "2026-02-01",
		"end_date":   "2026-02-28",
	})

	require.NoError(t, err)
	result := payload.(map[string]any)
	assert.Equal(t, 2, result["total_orders"])
	assert.Equal(t, float64(350), result["total_sales_amount"])
}

func TestGenerateSalesReport_EmptyRange_FriendlyMessage(t *testing.T) {
	registry, _ := newTestRegistry(t)

	payload, err := invoke(t, registry, "generate_sales_report", map[string]any{
		"start_date": "2020-01-01",
		"end_date":   "2020-01-31",
	})

	require.NoError(t, err)
	result := payload.(map[string]any)
	assert.Contains(t, result["message"], "No invoices found")
}

func TestGenerateSalesReport_BadDate_Errors(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := invoke(t, registry, "generate_sales_report", map[string]any{"start_date": "last tuesday"})

	assert.Error(t, err)
}

func TestListOverdueInvoices_FiltersPaidAndFuture(t *testing.T) {
	registry, st := newTestRegistry(t)
	past := time.Now().AddDate(0, 0, -10)
	future := time.Now().AddDate(0, 0, 10)
	require.NoError(t, st.DB().Create(&store.Invoice{ID: "INV-1", Customer: "Acme", Outstanding: 100, Status: "Unpaid", DueDate: past}).Error)
	require.NoError(t, st.DB().Create(&store.Invoice{ID: "INV-2", Customer: "Acme", Outstanding: 50, Status: "Paid", DueDate: past}).Error)
	require.NoError(t, st.DB().Create(&store.Invoice{ID: "INV-3", Customer: "Acme", Outstanding: 75, Status: "Unpaid", DueDate: future}).Error)

	payload, err := invoke(t, registry, "list_overdue_invoices", map[string]any{})

	require.NoError(t, err)
	result := payload.(map[string]any)
	assert.Equal(t, 1, result["count"])
	assert.Equal(t, float64(100), result["total_outstanding"])
}

func TestListOverdueInvoices_UnknownCustomer_Errors(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := invoke(t, registry, "list_overdue_invoices", map[string]any{"customer": "Ghost Ltd"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListOverdueInvoices_NoMatches_FriendlyMessage(t *testing.T) {
	registry, st := newTestRegistry(t)
	require.NoError(t, st.DB().Create(&store.Invoice{ID: "INV-1", Customer: "Acme", Status: "Paid", DueDate: time.Now().AddDate(0, 0, -1)}).Error)

	payload, err := invoke(t, registry, "list_overdue_invoices", map[string]any{"customer": "Acme"})

	require.NoError(t, err)
	result := payload.(map[string]any)
	assert.Contains(t, result["message"], "No overdue invoices")
}
